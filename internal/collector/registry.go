package collector

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Factory constructs one live collector instance. Construction may fail
// (missing config, bad template compilation); discovery treats a failing
// factory as a skippable entry, not a fatal condition.
type Factory func() (Collector, error)

// Registry holds the compiled-in collector factories and the live instances
// produced by Discover. Iteration follows registration order.
type Registry struct {
	factories map[string]Factory
	order     []string

	live      map[string]Collector
	liveOrder []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		live:      make(map[string]Collector),
	}
}

// Register adds a collector factory under a stable name. Registering the
// same name twice replaces the factory but keeps its original position.
func (r *Registry) Register(name string, f Factory) {
	if _, ok := r.factories[name]; !ok {
		r.order = append(r.order, name)
	}
	r.factories[name] = f
}

// Discover instantiates every registered factory and probes the result's
// Info() for a usable identity. Entries that fail to instantiate or fail
// the probe are skipped with a warning; discovery never aborts on a single
// bad entry. Returns the number of live collectors.
func (r *Registry) Discover() int {
	log := zap.L().With(zap.String("component", "collector.registry"))

	r.live = make(map[string]Collector, len(r.factories))
	r.liveOrder = r.liveOrder[:0]

	for _, name := range r.order {
		c, err := r.factories[name]()
		if err != nil {
			log.Warn("skipping collector: instantiation failed",
				zap.String("collector", name),
				zap.Error(err),
			)
			continue
		}

		info := c.Info()
		if info.Name == "" || info.Website == "" {
			log.Warn("skipping collector: incomplete info",
				zap.String("collector", name),
				zap.String("name", info.Name),
				zap.String("website", info.Website),
			)
			continue
		}

		r.live[name] = c
		r.liveOrder = append(r.liveOrder, name)
		log.Debug("collector discovered",
			zap.String("collector", name),
			zap.String("website", info.Website),
			zap.String("version", info.Version),
		)
	}

	return len(r.live)
}

// Get returns a discovered collector by name. The error for an unknown name
// enumerates the names that are available.
func (r *Registry) Get(name string) (Collector, error) {
	c, ok := r.live[name]
	if !ok {
		available := append([]string(nil), r.liveOrder...)
		sort.Strings(available)
		return nil, eris.Errorf("collector %q not found (available: %s)",
			name, strings.Join(available, ", "))
	}
	return c, nil
}

// Names returns the discovered collector names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.liveOrder))
	copy(out, r.liveOrder)
	return out
}
