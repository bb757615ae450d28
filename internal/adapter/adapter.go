// Package adapter defines the closed interface every source-specific
// scraper implements, plus the registry the scheduler resolves adapters
// from. Adapters are built once at startup from the active configuration;
// there is no inheritance hierarchy, shared behavior lives in plain helper
// functions.
package adapter

import (
	"context"
	"fmt"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/browser"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
)

// Adapter produces candidate offers for one source/type/duration/platform
// combination.
//
// Scrape borrows the shared browser session for the duration of the call
// and must never close it. Extraction errors on individual items are
// handled inside the adapter and yield a partial (possibly empty) batch; a
// returned error means the session itself became unusable.
type Adapter interface {
	Name() string

	// Schedule returns one or more cron expressions (five-field, standard
	// syntax) describing when the adapter wants to run.
	Schedule() []string

	Scrape(ctx context.Context, sess *browser.Session) ([]model.CandidateOffer, error)
}

// Registry holds the active adapters keyed by name, in registration order.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(a Adapter) error {
	if _, exists := r.adapters[a.Name()]; exists {
		return fmt.Errorf("adapter %s already registered", a.Name())
	}
	r.adapters[a.Name()] = a
	r.order = append(r.order, a.Name())
	return nil
}

// Get resolves an adapter by name; ok is false when the adapter is no
// longer part of the active configuration.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the registered adapter names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// All returns the registered adapters in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}
