// Package downstream fans a run's new and modified offer ids out to the
// collaborators that consume canonical state: enrichment, feed
// regeneration, upload and chat announcements. All of them are idempotent,
// so at-least-once invocation is safe.
package downstream

import (
	"context"
	"log/slog"
	"time"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/announce"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/storage"
)

// Enricher looks up metadata for one offer.
type Enricher interface {
	Enrich(ctx context.Context, offerID int64) error
}

// FeedWriter regenerates all feed documents from canonical state.
type FeedWriter interface {
	Regenerate(ctx context.Context) error
}

// Uploader pushes the regenerated documents to their host.
type Uploader interface {
	UploadDir(ctx context.Context, dir string) error
}

// Fanout implements the scheduler's Downstream contract. Every collaborator
// is optional; errors are logged and never propagate back into the run.
type Fanout struct {
	offers     storage.OfferStore
	enricher   Enricher
	feedWriter FeedWriter
	uploader   Uploader
	feedDir    string
	announcers []announce.Announcer
	timeout    time.Duration
	logger     *slog.Logger
}

func NewFanout(offers storage.OfferStore, logger *slog.Logger) *Fanout {
	return &Fanout{
		offers:  offers,
		timeout: 5 * time.Minute,
		logger:  logger,
	}
}

func (f *Fanout) WithEnricher(e Enricher) *Fanout {
	f.enricher = e
	return f
}

func (f *Fanout) WithFeeds(w FeedWriter) *Fanout {
	f.feedWriter = w
	return f
}

func (f *Fanout) WithUpload(u Uploader, feedDir string) *Fanout {
	f.uploader = u
	f.feedDir = feedDir
	return f
}

func (f *Fanout) WithAnnouncers(announcers ...announce.Announcer) *Fanout {
	f.announcers = append(f.announcers, announcers...)
	return f
}

// OffersChanged is invoked by the scheduler after a run with new or
// modified offers. Enrichment runs per id; announcements go out only for
// newly created offers; feeds are regenerated from full state afterwards.
func (f *Fanout) OffersChanged(ctx context.Context, created, modified []int64) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if f.enricher != nil {
		for _, id := range append(append([]int64{}, created...), modified...) {
			if err := f.enricher.Enrich(ctx, id); err != nil {
				f.logger.Warn("enrichment failed", "offer_id", id, "error", err)
			}
		}
	}

	for _, id := range created {
		f.announceOffer(ctx, id)
	}

	if f.feedWriter != nil {
		if err := f.feedWriter.Regenerate(ctx); err != nil {
			f.logger.Error("feed regeneration failed", "error", err)
		} else if f.uploader != nil {
			if err := f.uploader.UploadDir(ctx, f.feedDir); err != nil {
				f.logger.Error("feed upload failed", "error", err)
			}
		}
	}
}

func (f *Fanout) announceOffer(ctx context.Context, id int64) {
	if len(f.announcers) == 0 {
		return
	}

	offer, err := f.offers.Get(ctx, id)
	if err != nil {
		f.logger.Warn("cannot load offer for announcement", "offer_id", id, "error", err)
		return
	}

	for _, a := range f.announcers {
		if err := a.Announce(ctx, offer); err != nil {
			f.logger.Warn("announcement failed",
				"announcer", a.Name(), "offer_id", id, "error", err)
		}
	}
}
