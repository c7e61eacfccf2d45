package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Source yields handler candidates.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]*Descriptor, error)
}

// Registry maps command names to handlers. Lookups are safe during reloads;
// a reload replaces the whole table at once.
type Registry struct {
	mu      sync.RWMutex
	sources []Source
	table   map[string]*Descriptor
}

// NewRegistry creates an empty registry over the given sources. Sources are
// loaded in order; later registrations of a name replace earlier ones.
func NewRegistry(sources ...Source) *Registry {
	return &Registry{
		sources: sources,
		table:   make(map[string]*Descriptor),
	}
}

// AddSource appends a source. It takes effect on the next Load.
func (r *Registry) AddSource(src Source) {
	r.mu.Lock()
	r.sources = append(r.sources, src)
	r.mu.Unlock()
}

// Load rebuilds the table from every source and swaps it in. A failing
// source is skipped; its error is returned alongside the new table.
func (r *Registry) Load(ctx context.Context) (map[string]*Descriptor, error) {
	r.mu.RLock()
	sources := make([]Source, len(r.sources))
	copy(sources, r.sources)
	r.mu.RUnlock()

	table := make(map[string]*Descriptor)
	var errs []error

	for _, src := range sources {
		candidates, err := src.Load(ctx)
		if err != nil {
			log.Warn().Err(err).Str("source", src.Name()).Msg("failed to load handler source")
			errs = append(errs, fmt.Errorf("source %s: %w", src.Name(), err))
			continue
		}
		for _, d := range candidates {
			if d == nil || Key(d.Name) == "" {
				log.Warn().Str("source", src.Name()).Msg("skipping handler without a name")
				continue
			}
			if d.Execute == nil {
				log.Warn().Str("source", src.Name()).Str("handler", d.Name).Msg("skipping handler without an execute function")
				continue
			}
			key := Key(d.Name)
			if prev, ok := table[key]; ok {
				log.Debug().Str("handler", key).Str("replaced", prev.Source).Str("by", d.Source).Msg("handler replaced")
			}
			table[key] = d
		}
	}

	r.mu.Lock()
	r.table = table
	r.mu.Unlock()

	log.Info().Int("handlers", len(table)).Msg("handler registry loaded")

	snapshot := make(map[string]*Descriptor, len(table))
	for k, v := range table {
		snapshot[k] = v
	}
	return snapshot, errors.Join(errs...)
}

// Get finds a handler by name, ignoring case.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.table[Key(name)]
	return d, ok
}

// List returns all handlers sorted by name.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	list := make([]*Descriptor, 0, len(r.table))
	for _, d := range r.table {
		list = append(list, d)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.table)
}
