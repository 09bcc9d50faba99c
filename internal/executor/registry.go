package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// StrategyInfo pairs a strategy name with its configuration and counters.
type StrategyInfo struct {
	Name         string       `json:"name"`
	Capabilities Capabilities `json:"capabilities"`
	Stats        Stats        `json:"stats"`
}

// Registry holds the strategies configured at startup and resolves them by
// name. Strategies are registered once before serving and never replaced.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy under the given name. Registering a name twice is
// an error.
func (r *Registry) Register(name string, s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[name]; ok {
		return fmt.Errorf("strategy %q is already registered", name)
	}
	r.strategies[name] = s
	return nil
}

// Resolve returns the strategy registered under name.
func (r *Registry) Resolve(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("strategy %q is not registered", name)
	}
	return s, nil
}

// List returns information about all registered strategies, sorted by name
// for a stable API response.
func (r *Registry) List() []StrategyInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]StrategyInfo, 0, len(r.strategies))
	for name, s := range r.strategies {
		infos = append(infos, StrategyInfo{
			Name:         name,
			Capabilities: s.Capabilities(),
			Stats:        s.Stats(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Shutdown shuts every registered strategy down and joins their errors.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, s := range r.strategies {
		if err := s.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
