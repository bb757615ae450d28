package model

import "time"

// Source identifies the storefront an offer came from.
type Source string

const (
	SourceAmazon  Source = "amazon"
	SourceEpic    Source = "epic"
	SourceGOG     Source = "gog"
	SourceHumble  Source = "humble"
	SourceItch    Source = "itch"
	SourceSteam   Source = "steam"
	SourceUbisoft Source = "ubisoft"
)

// OfferType distinguishes what is actually given away.
type OfferType string

const (
	TypeGame OfferType = "game"
	TypeDLC  OfferType = "dlc"
	TypeLoot OfferType = "loot"
)

// Duration describes how long an offer can be obtained.
type Duration string

const (
	// DurationClaimable offers are kept forever once claimed during the window.
	DurationClaimable Duration = "claimable"
	// DurationAlways offers are permanently free; no real validity window.
	DurationAlways Duration = "always"
	// DurationTemporary offers are only playable while the promotion lasts.
	DurationTemporary Duration = "temporary"
)

// Platform is the platform family the offer applies to.
type Platform string

const (
	PlatformPC      Platform = "pc"
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// Category is the pipeline's classification of a scraped title.
type Category string

const (
	CategoryValid      Category = "valid"
	CategoryDemo       Category = "demo"
	CategoryPrerelease Category = "prerelease"
	CategoryCheap      Category = "cheap"
)

// CandidateOffer is one freshly scraped observation. It only lives for the
// duration of a single pipeline invocation and is never persisted as such.
type CandidateOffer struct {
	Source   Source
	Type     OfferType
	Duration Duration
	Platform Platform

	Title    string
	URL      string
	ImageURL string

	// StatedValidTo is the raw end-date text as found on the site, possibly
	// empty and possibly nonsense.
	StatedValidTo string

	// ValidFrom is set by adapters whose source states a start date.
	ValidFrom *time.Time

	// RawSnapshot holds the serialized source fields so cleaned titles can be
	// re-derived later without re-scraping.
	RawSnapshot string
}

// CategorizedOffer is a candidate that survived cleaning with its category
// and parsed end date attached.
type CategorizedOffer struct {
	CandidateOffer

	Category         Category
	ProbableGameName string

	// ValidTo is StatedValidTo parsed into a timestamp, nil when the site
	// stated none (or stated garbage).
	ValidTo *time.Time
}

// Offer is the canonical, persisted record of a real-world offer instance.
// Records are append-only: reconciliation only fills previously null fields
// and bumps SeenLast, it never overwrites or deletes.
type Offer struct {
	ID int64

	Source   Source
	Type     OfferType
	Duration Duration
	Platform Platform

	Title            string
	ProbableGameName string

	SeenFirst time.Time
	SeenLast  time.Time

	ValidFrom *time.Time
	ValidTo   *time.Time

	RawSnapshot string
	URL         *string
	ImageURL    *string

	Category Category

	// EnrichmentID is owned by the enrichment collaborator; the core never
	// writes it during reconciliation.
	EnrichmentID *int64
}

// Key returns the identity tuple used for reconciliation matching. The
// platform is part of the identity.
func (o *Offer) Key() OfferKey {
	return OfferKey{
		Source:   o.Source,
		Type:     o.Type,
		Duration: o.Duration,
		Platform: o.Platform,
		Title:    o.Title,
	}
}

// OfferKey is the exact-match part of the identity of an offer instance.
// Together with a ±1 day tolerance window on ValidTo it identifies "the same
// real-world offer" across repeated observations.
type OfferKey struct {
	Source   Source
	Type     OfferType
	Duration Duration
	Platform Platform
	Title    string
}
