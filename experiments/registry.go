package experiments

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrDuplicateName is returned when registering an experiment under a
	// name that is already taken.
	ErrDuplicateName = errors.New("experiment name already registered")

	// ErrExperimentNotFound is returned when no experiment is registered
	// under a name.
	ErrExperimentNotFound = errors.New("experiment not found")
)

// Registry is the arena owning every registered experiment, keyed by fully
// qualified name. Registration happens serially at load time; lookups may
// run concurrently afterwards.
type Registry struct {
	mu sync.Mutex
	// exps holds the registered experiments by qualified name.
	exps map[string]*Experiment
	// names preserves registration order for listings.
	names []string
}

// NewRegistry creates an empty experiment registry.
func NewRegistry() *Registry {
	return &Registry{
		exps: make(map[string]*Experiment),
	}
}

// register adds exp under its qualified name, enforcing process-wide
// uniqueness among non-root experiments.
func (r *Registry) register(exp *Experiment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := exp.Name()
	if _, ok := r.exps[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	r.exps[name] = exp
	r.names = append(r.names, name)

	return nil
}

// Get returns the experiment registered under name.
func (r *Registry) Get(name string) (*Experiment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.exps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExperimentNotFound, name)
	}

	return exp, nil
}

// Names returns every registered name in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.names)
}

// All returns every registered experiment in registration order.
func (r *Registry) All() []*Experiment {
	r.mu.Lock()
	defer r.mu.Unlock()

	exps := make([]*Experiment, 0, len(r.names))
	for _, name := range r.names {
		exps = append(exps, r.exps[name])
	}

	return exps
}
