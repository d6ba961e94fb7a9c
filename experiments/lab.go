package experiments

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/zhengpingwan/artemis/pkg/logger"
	"github.com/zhengpingwan/artemis/plotting"
)

// workerEnv names the experiment a re-executed worker process should run.
const workerEnv = "ARTEMIS_WORKER_EXPERIMENT"

// Lab bundles everything experiments need to run: the logger, the record
// store, the registry and the run defaults. Programs build one Lab at load
// time, register their experiments against it and keep it for the process
// lifetime.
type Lab struct {
	lggr     logger.Logger
	store    *Store
	registry *Registry
	template Template
	showMode *plotting.ShowMode
	workers  int

	// spawn starts one worker process for a run-all fan-out. Swapped out in
	// tests.
	spawn func(ctx context.Context, name string) error

	mu        sync.Mutex
	ephemeral []string
}

// LabOption configures a Lab.
type LabOption func(*labConfig)

type labConfig struct {
	lggr     logger.Logger
	dir      string
	template Template
	showMode *plotting.ShowMode
	workers  int
}

// WithLogger sets the Lab's logger. Defaults to a production logger.
func WithLogger(lggr logger.Logger) LabOption {
	return func(c *labConfig) {
		c.lggr = lggr
	}
}

// WithDir sets the record store directory. Defaults to
// "~/.artemis/experiments".
func WithDir(dir string) LabOption {
	return func(c *labConfig) {
		c.dir = dir
	}
}

// WithTemplate sets the identifier template. Defaults to DefaultTemplate.
func WithTemplate(t Template) LabOption {
	return func(c *labConfig) {
		c.template = t
	}
}

// WithDefaultShowMode sets the figure show mode runs use unless overridden
// per run. Without it, runs hang on shown figures and test-mode runs draw.
func WithDefaultShowMode(mode plotting.ShowMode) LabOption {
	return func(c *labConfig) {
		c.showMode = &mode
	}
}

// WithWorkers sets the worker pool size for run-all fan-out. Defaults to the
// available CPU count.
func WithWorkers(n int) LabOption {
	return func(c *labConfig) {
		c.workers = n
	}
}

// NewLab creates a Lab with its record store opened and an empty registry.
func NewLab(opts ...LabOption) (*Lab, error) {
	cfg := labConfig{
		template: DefaultTemplate,
		workers:  runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.lggr == nil {
		lggr, err := logger.New()
		if err != nil {
			return nil, err
		}
		cfg.lggr = lggr
	}

	if cfg.dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve default record dir: %w", err)
		}
		cfg.dir = filepath.Join(home, ".artemis", "experiments")
	}

	if cfg.workers < 1 {
		cfg.workers = 1
	}

	store, err := NewStore(cfg.dir, WithStoreLogger(cfg.lggr), WithStoreTemplate(cfg.template))
	if err != nil {
		return nil, err
	}

	l := &Lab{
		lggr:     cfg.lggr,
		store:    store,
		registry: NewRegistry(),
		template: cfg.template,
		showMode: cfg.showMode,
		workers:  cfg.workers,
	}
	l.spawn = l.spawnWorker

	return l, nil
}

// Experiment wraps fn into a named experiment and registers it. It is the
// factory every experiment definition goes through.
func (l *Lab) Experiment(name string, fn Func, opts ...ExperimentOption) (*Experiment, error) {
	if err := validateNameSegment(name); err != nil {
		return nil, err
	}

	exp := &Experiment{
		name: name,
		fn:   fn,
		lab:  l,
	}
	for _, opt := range opts {
		opt(exp)
	}

	if !exp.isRoot {
		if err := l.registry.register(exp); err != nil {
			return nil, err
		}
	}

	return exp, nil
}

// Get returns the registered experiment under name.
func (l *Lab) Get(name string) (*Experiment, error) {
	return l.registry.Get(name)
}

// Run resolves name through the registry and runs it.
func (l *Lab) Run(ctx context.Context, name string, opts ...RunOption) (*Record, error) {
	exp, err := l.registry.Get(name)
	if err != nil {
		return nil, err
	}

	return exp.Run(ctx, opts...)
}

// Registry returns the Lab's experiment registry.
func (l *Lab) Registry() *Registry {
	return l.registry
}

// Store returns the Lab's record store.
func (l *Lab) Store() *Store {
	return l.store
}

// Logger returns the Lab's logger.
func (l *Lab) Logger() logger.Logger {
	return l.lggr
}

// trackEphemeral schedules a non-persistent record directory for removal at
// Close.
func (l *Lab) trackEphemeral(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ephemeral = append(l.ephemeral, dir)
}

// Close removes the directories of ephemeral runs. Programs defer it after
// building the Lab; calling it again is a no-op.
func (l *Lab) Close() error {
	l.mu.Lock()
	dirs := l.ephemeral
	l.ephemeral = nil
	l.mu.Unlock()

	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			l.lggr.Warnw("Failed to remove ephemeral record directory", "dir", dir, "error", err)
		}
	}

	return nil
}
