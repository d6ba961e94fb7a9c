package experiments

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/zhengpingwan/artemis/capture"
	"github.com/zhengpingwan/artemis/plotting"
)

const (
	statusSuccess     = "Ran Successfully"
	statusErrorPrefix = "Had an Error: "
)

// RunError captures the kind and message of a failed run for the record's
// Status field. The original error still propagates unchanged; RunError only
// annotates the record.
type RunError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewRunError derives the structured failure from err, using the concrete
// error type as the kind.
func NewRunError(err error) *RunError {
	return &RunError{
		Kind:    errKind(err),
		Message: err.Error(),
	}
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func errKind(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "error"
	}

	return t.String()
}

// RunConfig holds the per-run settings resolved from options.
type RunConfig struct {
	testMode   *bool
	keepRecord *bool
	args       Args
	showMode   *plotting.ShowMode
	echo       bool
}

// RunOption configures a single run.
type RunOption func(*RunConfig)

// WithTestMode overrides the ambient test-mode flag for this run.
func WithTestMode(on bool) RunOption {
	return func(c *RunConfig) {
		c.testMode = &on
	}
}

// WithKeepRecord overrides whether the record persists. By default records
// are kept unless the run is in test mode.
func WithKeepRecord(keep bool) RunOption {
	return func(c *RunConfig) {
		c.keepRecord = &keep
	}
}

// WithArgs supplies call-time argument overrides, applied after the variant
// chain.
func WithArgs(args Args) RunOption {
	return func(c *RunConfig) {
		c.args = args
	}
}

// WithShowMode overrides how shown figures behave during this run.
func WithShowMode(mode plotting.ShowMode) RunOption {
	return func(c *RunConfig) {
		c.showMode = &mode
	}
}

// WithEcho controls whether captured console output also reaches the real
// console. Defaults to true.
func WithEcho(echo bool) RunOption {
	return func(c *RunConfig) {
		c.echo = echo
	}
}

// Run executes the experiment once: it acquires the process run guard,
// allocates an execution record, captures console output and figures while
// the wrapped function runs, annotates the record on success and failure,
// and persists the returned result.
//
// A failure inside the function aborts the run but the partial record is
// still returned alongside the unchanged error, so failures stay
// diagnosable. Records of test-mode runs are ephemeral unless
// WithKeepRecord(true) is given; their directories are removed when the
// Lab closes.
func (e *Experiment) Run(ctx context.Context, opts ...RunOption) (*Record, error) {
	cfg := RunConfig{echo: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	testMode := TestMode()
	if cfg.testMode != nil {
		testMode = *cfg.testMode
	}
	keep := !testMode
	if cfg.keepRecord != nil {
		keep = *cfg.keepRecord
	}

	prevTestMode := SetTestMode(testMode)
	defer SetTestMode(prevTestMode)

	identifier := e.lab.template.Identifier(e.recordName(), time.Now())

	// Register before allocating anything: a second run starting while one
	// is active must fail without leaving a trace.
	if err := runGuard.Register(e.name, identifier); err != nil {
		return nil, err
	}

	rec, err := e.allocateRecord(identifier, keep)
	if err != nil {
		runGuard.Deregister()

		return nil, err
	}
	runGuard.attachRecord(rec)

	e.lab.lggr.Infow("Starting experiment run",
		"experiment", e.name, "identifier", identifier, "testMode", testMode, "keepRecord", keep,
	)

	var result any
	func() {
		defer runGuard.Deregister()
		err = e.runRecorded(ctx, cfg, rec, &result)
	}()
	if err != nil {
		e.lab.lggr.Errorw("Experiment run failed",
			"experiment", e.name, "identifier", identifier, "error", err,
		)

		return rec, err
	}

	if err := rec.SaveResult(result); err != nil {
		return rec, err
	}

	if e.display != nil {
		if err := e.display(result); err != nil {
			return rec, fmt.Errorf("display function failed for %s: %w", e.name, err)
		}
	}

	e.lab.lggr.Infow("Experiment run complete", "experiment", e.name, "identifier", identifier)

	return rec, nil
}

// allocateRecord creates the run's directory: in the persistent store when
// keeping, or in temporary storage scheduled for removal at Lab close.
func (e *Experiment) allocateRecord(identifier string, keep bool) (*Record, error) {
	if keep {
		return e.lab.store.Create(identifier)
	}

	dir, err := os.MkdirTemp("", "artemis-"+e.name+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create ephemeral record directory: %w", err)
	}
	e.lab.trackEphemeral(dir)

	return newRecord(identifier, dir), nil
}

// runRecorded is the scoped region of a run: console capture, figure
// interception and record bookkeeping around the wrapped function. The
// returned error is the function's own failure, unchanged, or the first
// setup failure.
func (e *Experiment) runRecorded(ctx context.Context, cfg RunConfig, rec *Record, result *any) (err error) {
	capScope, err := capture.Open(rec.LogPath(), cfg.echo)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := capScope.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	showScope := plotting.OpenShowScope(e.showMode(cfg))
	defer showScope.Close()

	saveScope := plotting.OpenSaveScope(filepath.Join(rec.Dir(), figureFileTemplate))
	defer saveScope.Close()

	if err := e.writeInitialInfo(rec); err != nil {
		return err
	}

	args, err := resolveArgs(e.params, append(e.overrideChain(), cfg.args)...)
	if err != nil {
		return fmt.Errorf("failed to resolve arguments for %s: %w", e.name, err)
	}
	if err := rec.AddInfo("Args", args); err != nil {
		return err
	}

	start := time.Now()
	defer e.finalizeInfo(rec, saveScope, start)

	out, runErr := e.fn(ctx, args)
	if runErr != nil {
		if err := rec.AddInfo("Status", statusErrorPrefix+NewRunError(runErr).Error()); err != nil {
			e.lab.lggr.Warnw("Failed to record failure status", "identifier", rec.Identifier(), "error", err)
		}

		return runErr
	}

	*result = out

	return rec.AddInfo("Status", statusSuccess)
}

// writeInitialInfo stamps the record with its identity fields before the
// function runs.
func (e *Experiment) writeInitialInfo(rec *Record) error {
	module, function := funcSymbol(e.fn)

	fields := []infoField{
		{Key: "Name", Value: e.name},
		{Key: "Identifier", Value: rec.Identifier()},
		{Key: "Directory", Value: rec.Dir()},
		{Key: "Run ID", Value: uuid.New().String()},
		{Key: "Function", Value: function},
		{Key: "Module", Value: module},
	}
	if e.version != nil {
		fields = append(fields, infoField{Key: "Version", Value: e.version.String()})
	}
	if e.description != "" {
		fields = append(fields, infoField{Key: "Description", Value: e.description})
	}

	for _, f := range fields {
		if err := rec.AddInfo(f.Key, f.Value); err != nil {
			return err
		}
	}

	return nil
}

// finalizeInfo records the figure and timing bookkeeping plus the
// experiment's static info and notes. It runs on success and failure alike;
// individual write failures are logged rather than masking the run's own
// outcome.
func (e *Experiment) finalizeInfo(rec *Record, saveScope *plotting.SaveScope, start time.Time) {
	figures := saveScope.SavedPaths()
	names := make([]string, 0, len(figures))
	for _, f := range figures {
		names = append(names, filepath.Base(f))
	}

	fields := []infoField{
		{Key: "# Figures Generated", Value: len(figures)},
		{Key: "Figures Generated", Value: names},
		{Key: "Run Time", Value: time.Since(start).String()},
	}

	e.mu.Lock()
	static := make([]infoField, len(e.info))
	copy(static, e.info)
	notes := make([]string, len(e.notes))
	copy(notes, e.notes)
	e.mu.Unlock()

	fields = append(fields, static...)

	for _, f := range fields {
		if err := rec.AddInfo(f.Key, f.Value); err != nil {
			e.lab.lggr.Warnw("Failed to record info field", "field", f.Key, "identifier", rec.Identifier(), "error", err)
		}
	}
	for _, n := range notes {
		if err := rec.AddNote(n); err != nil {
			e.lab.lggr.Warnw("Failed to record note", "identifier", rec.Identifier(), "error", err)
		}
	}
}

// showMode resolves the figure policy for a run: the run option, else the
// lab default, else draw under test mode and hang otherwise.
func (e *Experiment) showMode(cfg RunConfig) plotting.ShowMode {
	if cfg.showMode != nil {
		return *cfg.showMode
	}
	if e.lab.showMode != nil {
		return *e.lab.showMode
	}
	if TestMode() {
		return plotting.ModeDraw
	}

	return plotting.ModeHang
}
