// Package pipeline turns one adapter's raw candidate batch into categorized
// offers ready for reconciliation: clean, deduplicate, categorize, filter.
// The transformation is pure and deterministic given its inputs and clock.
package pipeline

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
)

// Titles matching these are demo versions, not real giveaways.
var demoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\W*(demo|teaser)\b`),
	regexp.MustCompile(`(?i)\b(demo|teaser)\W*$`),
	regexp.MustCompile(`(?i)\(demo\)`),
	regexp.MustCompile(`(?i)\bdemo version\b`),
}

// Titles matching these are unreleased builds. "Playable teaser" is the
// wording Ubisoft uses for pre-launch slices.
var prereleasePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\W*(alpha|beta)\b`),
	regexp.MustCompile(`(?i)\b(alpha|beta)\W*$`),
	regexp.MustCompile(`(?i)\bearly access\b`),
	regexp.MustCompile(`(?i)\bplayable teaser\b`),
}

// farFutureThreshold marks stated end dates that are really a "no expiry"
// sentinel: some sites emit a date ~100 years out instead of omitting it.
const farFutureThreshold = 100 * 24 * time.Hour

var validToLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"Jan 2 2006",
	"02.01.2006",
}

var titleCaser = cases.Title(language.English)

// Pipeline categorizes and filters candidate batches.
type Pipeline struct {
	clock  func() time.Time
	logger *slog.Logger
}

func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{clock: time.Now, logger: logger}
}

// WithClock overrides the time source, for tests.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// Run cleans, deduplicates, categorizes and filters a candidate batch. Only
// Valid offers survive; demos and prereleases are dropped and never reach
// the store. A candidate with an unparseable field is dropped with a warning
// but the batch as a whole never fails.
func (p *Pipeline) Run(candidates []model.CandidateOffer) []model.CategorizedOffer {
	now := p.clock()

	seen := make(map[string]bool, len(candidates))
	out := make([]model.CategorizedOffer, 0, len(candidates))

	for _, c := range candidates {
		c = clean(c)

		if c.Title == "" {
			p.logger.Warn("dropping candidate without title", "source", c.Source)
			continue
		}

		// Adapters sometimes double-read the same DOM element; within one
		// batch the first occurrence of a title wins.
		if seen[c.Title] {
			p.logger.Debug("dropping in-batch duplicate", "source", c.Source, "title", c.Title)
			continue
		}
		seen[c.Title] = true

		offer := p.categorize(c, now)
		if offer.Category != model.CategoryValid {
			p.logger.Debug("dropping non-valid offer",
				"source", c.Source, "title", c.Title, "category", offer.Category)
			continue
		}

		out = append(out, offer)
	}

	return out
}

func clean(c model.CandidateOffer) model.CandidateOffer {
	c.Title = strings.TrimSpace(c.Title)
	c.URL = stripNewlines(strings.TrimSpace(c.URL))
	c.ImageURL = stripNewlines(strings.TrimSpace(c.ImageURL))
	return c
}

func stripNewlines(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	return strings.ReplaceAll(s, "\r", "")
}

func (p *Pipeline) categorize(c model.CandidateOffer, now time.Time) model.CategorizedOffer {
	offer := model.CategorizedOffer{
		CandidateOffer:   c,
		Category:         model.CategoryValid,
		ProbableGameName: ProbableGameName(c.Title),
	}

	for _, re := range demoPatterns {
		if re.MatchString(c.Title) {
			offer.Category = model.CategoryDemo
			return offer
		}
	}
	for _, re := range prereleasePatterns {
		if re.MatchString(c.Title) {
			offer.Category = model.CategoryPrerelease
			return offer
		}
	}

	if c.StatedValidTo != "" {
		validTo, err := ParseValidTo(c.StatedValidTo)
		if err != nil {
			p.logger.Warn("unparseable stated end date, treating as absent",
				"source", c.Source, "title", c.Title, "stated_valid_to", c.StatedValidTo)
		} else {
			offer.ValidTo = &validTo
		}
	}

	// A stated end date far in the future is a sentinel for "no real
	// expiry"; such offers are permanently free rather than time-limited.
	if offer.ValidTo != nil && offer.ValidTo.Sub(now) >= farFutureThreshold {
		offer.Duration = model.DurationAlways
		offer.ValidTo = nil
	}

	return offer
}

// ParseValidTo parses an end date as stated by a site, trying the formats
// observed across the supported storefronts.
func ParseValidTo(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range validToLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

var gameNameNoise = regexp.MustCompile(`(?i)\s*(\(game\)|\(pc\)|- free( to keep)?( when you get it before .*)?$|free for a limited time)`)

// ProbableGameName derives the likely real game name from a scraped offer
// title by stripping marketing noise and trademark marks.
func ProbableGameName(title string) string {
	name := title
	name = strings.NewReplacer("™", "", "®", "", "©", "").Replace(name)
	name = gameNameNoise.ReplaceAllString(name, "")
	name = strings.Trim(name, " -–:|")
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return title
	}
	if name == strings.ToUpper(name) || name == strings.ToLower(name) {
		name = titleCaser.String(strings.ToLower(name))
	}
	return name
}
