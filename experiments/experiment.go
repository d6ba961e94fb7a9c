package experiments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
)

var (
	// ErrDuplicateVariant is returned when a parent already has a variant
	// under the requested name.
	ErrDuplicateVariant = errors.New("variant already exists")

	// ErrVariantNotFound is returned when a variant path cannot be resolved.
	ErrVariantNotFound = errors.New("variant not found")

	// ErrNoDisplayFunc is returned when displaying results of an experiment
	// that has no display function configured.
	ErrNoDisplayFunc = errors.New("experiment has no display function")
)

// Func is the callable an experiment wraps. It receives the fully resolved
// named arguments and returns the run's result, which must be JSON
// serializable to be persisted.
type Func func(ctx context.Context, args Args) (any, error)

// DisplayFunc consumes a run's result for presentation. After a run it
// receives the in-memory value the function returned; when replaying a
// persisted record it receives the JSON-decoded value.
type DisplayFunc func(result any) error

// infoField is one static metadata field attached to an experiment.
type infoField struct {
	Key   string
	Value any
}

// Experiment pairs a function with a name, run configuration and optional
// child variants. Experiments are built through Lab.Experiment and
// AddVariant; they live for the whole process.
type Experiment struct {
	name        string
	fn          Func
	display     DisplayFunc
	params      []Param
	version     *semver.Version
	description string
	isRoot      bool

	// overrides are the arguments this variant pre-binds over its parent.
	overrides Args
	parent    *Experiment

	lab *Lab

	mu           sync.Mutex
	variants     map[string]*Experiment
	variantOrder []string
	info         []infoField
	notes        []string
}

// ExperimentOption configures an experiment at creation time.
type ExperimentOption func(*Experiment)

// WithParams declares the function's named parameters and defaults. With
// params declared, variant overrides are validated and every run records the
// fully resolved argument set.
func WithParams(params ...Param) ExperimentOption {
	return func(e *Experiment) {
		e.params = params
	}
}

// WithDisplay sets the function used to present run results.
func WithDisplay(fn DisplayFunc) ExperimentOption {
	return func(e *Experiment) {
		e.display = fn
	}
}

// WithVersion versions the experiment. Versioned runs record and look up
// identifiers under "<name>-<version>", partitioning the identifier space.
func WithVersion(v *semver.Version) ExperimentOption {
	return func(e *Experiment) {
		e.version = v
	}
}

// WithDescription attaches a human readable description, recorded on every
// run.
func WithDescription(d string) ExperimentOption {
	return func(e *Experiment) {
		e.description = d
	}
}

// WithInfo attaches a static info field merged into every run's record.
func WithInfo(field string, value any) ExperimentOption {
	return func(e *Experiment) {
		e.info = append(e.info, infoField{Key: field, Value: value})
	}
}

// AsRoot marks the experiment as a variant base: it is never registered and
// is excluded from run-all traversals.
func AsRoot() ExperimentOption {
	return func(e *Experiment) {
		e.isRoot = true
	}
}

// Name returns the fully qualified dot-joined name.
func (e *Experiment) Name() string {
	return e.name
}

// IsRoot reports whether the experiment is a variant base.
func (e *Experiment) IsRoot() bool {
	return e.isRoot
}

// Version returns the experiment's version, or nil.
func (e *Experiment) Version() *semver.Version {
	return e.version
}

// Description returns the experiment's description.
func (e *Experiment) Description() string {
	return e.description
}

// AddNote queues a note to be appended to every subsequent run's record.
func (e *Experiment) AddNote(note string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.notes = append(e.notes, note)
}

// AddVariant creates a child experiment that runs the same function with
// overrides pre-bound, registered under the dot-qualified name
// "<parent>.<name>".
func (e *Experiment) AddVariant(name string, overrides Args) (*Experiment, error) {
	return e.addVariant(name, overrides, false)
}

// AddRootVariant is AddVariant for a child that only serves as a base for
// further variants: it is not registered and run-all skips it.
func (e *Experiment) AddRootVariant(name string, overrides Args) (*Experiment, error) {
	return e.addVariant(name, overrides, true)
}

func (e *Experiment) addVariant(name string, overrides Args, isRoot bool) (*Experiment, error) {
	if err := validateNameSegment(name); err != nil {
		return nil, err
	}
	if err := validateOverrides(e.params, overrides); err != nil {
		return nil, fmt.Errorf("invalid overrides for variant %q of %s: %w", name, e.name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.variants[name]; ok {
		return nil, fmt.Errorf("%w: %q under %s", ErrDuplicateVariant, name, e.name)
	}

	child := &Experiment{
		name:      e.name + "." + name,
		fn:        e.fn,
		display:   e.display,
		params:    e.params,
		version:   e.version,
		isRoot:    isRoot,
		overrides: overrides,
		parent:    e,
		lab:       e.lab,
	}

	if !isRoot {
		if err := e.lab.registry.register(child); err != nil {
			return nil, err
		}
	}

	if e.variants == nil {
		e.variants = make(map[string]*Experiment)
	}
	e.variants[name] = child
	e.variantOrder = append(e.variantOrder, name)

	return child, nil
}

// Variant resolves a dotted path below this experiment, e.g. "big.slow".
func (e *Experiment) Variant(path string) (*Experiment, error) {
	cur := e
	for _, segment := range strings.Split(path, ".") {
		cur.mu.Lock()
		next, ok := cur.variants[segment]
		cur.mu.Unlock()

		if !ok {
			return nil, fmt.Errorf("%w: %s has no variant %q", ErrVariantNotFound, cur.name, segment)
		}
		cur = next
	}

	return cur, nil
}

// AllVariants returns this experiment and every descendant in pre-order.
// Roots are excluded unless includeRoots is set; their children are always
// traversed.
func (e *Experiment) AllVariants(includeRoots bool) []*Experiment {
	var out []*Experiment
	e.collectVariants(includeRoots, &out)

	return out
}

func (e *Experiment) collectVariants(includeRoots bool, out *[]*Experiment) {
	if includeRoots || !e.isRoot {
		*out = append(*out, e)
	}

	e.mu.Lock()
	order := make([]string, len(e.variantOrder))
	copy(order, e.variantOrder)
	variants := e.variants
	e.mu.Unlock()

	for _, name := range order {
		variants[name].collectVariants(includeRoots, out)
	}
}

// overrideChain returns the argument layers pre-bound along the path from
// the tree's base down to this experiment.
func (e *Experiment) overrideChain() []Args {
	var chain []Args
	for cur := e; cur != nil; cur = cur.parent {
		if cur.overrides != nil {
			chain = append(chain, cur.overrides)
		}
	}
	slices.Reverse(chain)

	return chain
}

// recordName is the name identifiers are minted and matched under.
func (e *Experiment) recordName() string {
	return recordName(e.name, e.version)
}

// Records returns the identifiers of every persisted run of this experiment.
func (e *Experiment) Records() ([]string, error) {
	return e.lab.store.ListFor(e.name, e.version)
}

// LatestIdentifier returns the identifier of the most recent persisted run.
func (e *Experiment) LatestIdentifier() (string, error) {
	return e.lab.store.Latest(e.name, e.version)
}

// LatestRecord returns the most recent persisted run.
func (e *Experiment) LatestRecord() (*Record, error) {
	id, err := e.LatestIdentifier()
	if err != nil {
		return nil, err
	}

	return e.lab.store.Get(id)
}

// ClearRecords deletes every persisted run of this experiment, best effort.
func (e *Experiment) ClearRecords() error {
	ids, err := e.Records()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := e.lab.store.Delete(id); err != nil {
			e.lab.lggr.Warnw("Failed to delete record, continuing", "identifier", id, "error", err)
		}
	}

	return nil
}

// DisplayLatest loads the most recent persisted result and hands it to the
// display function.
func (e *Experiment) DisplayLatest() error {
	if e.display == nil {
		return fmt.Errorf("%w: %s", ErrNoDisplayFunc, e.name)
	}

	rec, err := e.LatestRecord()
	if err != nil {
		return err
	}

	raw, ok, err := rec.Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("record %s has no result", rec.Identifier())
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("failed to decode result of record %s: %w", rec.Identifier(), err)
	}

	return e.display(value)
}

// validateNameSegment rejects names that would break identifier parsing or
// variant paths.
func validateNameSegment(name string) error {
	if name == "" {
		return errors.New("experiment name must not be empty")
	}
	if strings.ContainsAny(name, "./\\% \t\n") {
		return fmt.Errorf("invalid experiment name %q: must not contain dots, slashes, percent signs or whitespace", name)
	}

	return nil
}
