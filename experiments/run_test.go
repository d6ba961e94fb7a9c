package experiments

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhengpingwan/artemis/plotting"
)

// The run tests stay serial: a run swaps the process stdout and stderr for
// capture and holds the process run guard.

type sumResult struct {
	Sum int `json:"sum"`
}

func Test_Run_Success(t *testing.T) {
	lab := newTestLab(t)

	exp, err := lab.Experiment("demo", func(_ context.Context, args Args) (any, error) {
		fmt.Println("hello from demo")

		return sumResult{Sum: args["a"].(int) + args["b"].(int)}, nil
	},
		WithParams(Param{Name: "a", Default: 1}, Param{Name: "b", Default: 2}),
		WithVersion(semver.MustParse("1.2.3")),
		WithDescription("adds two numbers"),
	)
	require.NoError(t, err)

	rec, err := exp.Run(context.Background(), WithArgs(Args{"b": 5}), WithEcho(false))
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.True(t, strings.HasSuffix(rec.Identifier(), "-demo-1.2.3"))
	assert.True(t, lab.Store().Exists(rec.Identifier()))

	field := func(key string) string {
		v, err := rec.InfoField(key)
		require.NoError(t, err)

		return v
	}

	assert.Equal(t, statusSuccess, field("Status"))
	assert.Equal(t, "demo", field("Name"))
	assert.Equal(t, rec.Identifier(), field("Identifier"))
	assert.Equal(t, rec.Dir(), field("Directory"))
	assert.Equal(t, "1.2.3", field("Version"))
	assert.Equal(t, "adds two numbers", field("Description"))
	assert.JSONEq(t, `{"a": 1, "b": 5}`, field("Args"))
	assert.Equal(t, "0", field("# Figures Generated"))
	assert.JSONEq(t, `[]`, field("Figures Generated"))
	assert.NotEmpty(t, field("Run Time"))

	_, err = uuid.Parse(field("Run ID"))
	require.NoError(t, err)
	assert.Contains(t, field("Module"), "experiments")
	assert.Contains(t, field("Function"), "Test_Run_Success")

	log, err := rec.Log()
	require.NoError(t, err)
	assert.Contains(t, log, "hello from demo")

	got, ok, err := ResultAs[sumResult](rec)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sumResult{Sum: 6}, got)

	ids, err := exp.Records()
	require.NoError(t, err)
	assert.Equal(t, []string{rec.Identifier()}, ids)

	latest, err := exp.LatestRecord()
	require.NoError(t, err)
	assert.Equal(t, rec.Identifier(), latest.Identifier())
}

type boomError struct{}

func (boomError) Error() string { return "boom" }

func Test_Run_FailurePropagates(t *testing.T) {
	lab := newTestLab(t)

	exp, err := lab.Experiment("fails", func(_ context.Context, _ Args) (any, error) {
		return nil, boomError{}
	})
	require.NoError(t, err)

	rec, err := exp.Run(context.Background(), WithEcho(false))
	require.Error(t, err)
	require.NotNil(t, rec)

	// The original error comes back unchanged.
	var berr boomError
	require.ErrorAs(t, err, &berr)

	// The partial record is kept for diagnosis.
	assert.True(t, lab.Store().Exists(rec.Identifier()))

	status, err := rec.InfoField("Status")
	require.NoError(t, err)
	assert.Equal(t, "Had an Error: experiments.boomError: boom", status)

	// Timing bookkeeping still lands on failed runs.
	runTime, err := rec.InfoField("Run Time")
	require.NoError(t, err)
	assert.NotEmpty(t, runTime)

	// No result artifact was written.
	_, ok, err := rec.Result()
	require.NoError(t, err)
	assert.False(t, ok)

	// The guard is released, so the next run proceeds.
	assert.False(t, runGuard.Active())
	next, err := lab.Experiment("after", noopFn)
	require.NoError(t, err)
	_, err = next.Run(context.Background(), WithEcho(false))
	require.NoError(t, err)
}

func Test_Run_TestModeEphemeral(t *testing.T) {
	lab := newTestLab(t)

	exp, err := lab.Experiment("scratch", noopFn)
	require.NoError(t, err)

	rec, err := exp.Run(context.Background(), WithTestMode(true), WithEcho(false))
	require.NoError(t, err)

	// The record lives outside the store and the ambient flag is restored.
	assert.False(t, lab.Store().Exists(rec.Identifier()))
	assert.False(t, TestMode())
	assert.DirExists(t, rec.Dir())

	status, err := rec.InfoField("Status")
	require.NoError(t, err)
	assert.Equal(t, statusSuccess, status)

	// Closing the lab removes ephemeral record directories.
	require.NoError(t, lab.Close())
	assert.NoDirExists(t, rec.Dir())
}

func Test_Run_TestModeKeepRecord(t *testing.T) {
	lab := newTestLab(t)

	exp, err := lab.Experiment("kept", noopFn)
	require.NoError(t, err)

	rec, err := exp.Run(context.Background(),
		WithTestMode(true), WithKeepRecord(true), WithEcho(false),
	)
	require.NoError(t, err)

	assert.True(t, lab.Store().Exists(rec.Identifier()))
	assert.False(t, TestMode())
}

func Test_Run_AmbientTestMode(t *testing.T) {
	lab := newTestLab(t)

	exp, err := lab.Experiment("ambient", noopFn)
	require.NoError(t, err)

	prev := SetTestMode(true)
	defer SetTestMode(prev)

	rec, err := exp.Run(context.Background(), WithEcho(false))
	require.NoError(t, err)

	// With the ambient flag set and no option given, the run is ephemeral.
	assert.False(t, lab.Store().Exists(rec.Identifier()))
	assert.True(t, TestMode())
}

func Test_Run_GuardBlocksNestedRun(t *testing.T) {
	lab := newTestLab(t)

	_, err := lab.Experiment("inner", noopFn)
	require.NoError(t, err)

	var (
		nestedErr error
		innerName string
		innerID   string
	)
	outer, err := lab.Experiment("outer", func(ctx context.Context, _ Args) (any, error) {
		innerName, _ = CurrentName()
		cur, err := CurrentRecord()
		if err != nil {
			return nil, err
		}
		innerID = cur.Identifier()

		_, nestedErr = lab.Run(ctx, "inner")

		return nil, nil
	})
	require.NoError(t, err)

	rec, err := outer.Run(context.Background(), WithEcho(false))
	require.NoError(t, err)

	// The in-flight accessors resolve to the running experiment.
	assert.Equal(t, "outer", innerName)
	assert.Equal(t, rec.Identifier(), innerID)

	// The nested attempt was rejected, naming both runs, and left no record.
	require.Error(t, nestedErr)
	assert.Contains(t, nestedErr.Error(), "has been stopped")
	assert.Contains(t, nestedErr.Error(), "inner")
	assert.Contains(t, nestedErr.Error(), rec.Identifier())

	ids, err := lab.Store().List()
	require.NoError(t, err)
	assert.Equal(t, []string{rec.Identifier()}, ids)

	// The guard is free again after the outer run.
	assert.False(t, runGuard.Active())
}

func Test_Run_DisplayFunc(t *testing.T) {
	lab := newTestLab(t)

	var displayed []any
	exp, err := lab.Experiment("display", func(_ context.Context, _ Args) (any, error) {
		return sumResult{Sum: 7}, nil
	}, WithDisplay(func(result any) error {
		displayed = append(displayed, result)

		return nil
	}))
	require.NoError(t, err)

	_, err = exp.Run(context.Background(), WithEcho(false))
	require.NoError(t, err)

	// After a run, display receives the in-memory value.
	require.Len(t, displayed, 1)
	assert.Equal(t, sumResult{Sum: 7}, displayed[0])

	// Replaying the persisted record hands display the JSON-decoded value.
	require.NoError(t, exp.DisplayLatest())
	require.Len(t, displayed, 2)
	assert.Equal(t, map[string]any{"sum": float64(7)}, displayed[1])
}

func Test_Run_DisplayFuncError(t *testing.T) {
	lab := newTestLab(t)

	exp, err := lab.Experiment("baddisplay", func(_ context.Context, _ Args) (any, error) {
		return 1, nil
	}, WithDisplay(func(any) error {
		return errors.New("render failed")
	}))
	require.NoError(t, err)

	rec, err := exp.Run(context.Background(), WithEcho(false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "display function failed for baddisplay")

	// The run itself succeeded and was persisted before display ran.
	status, err := rec.InfoField("Status")
	require.NoError(t, err)
	assert.Equal(t, statusSuccess, status)
}

func Test_Run_VariantArgs(t *testing.T) {
	lab := newTestLab(t)

	base, err := lab.Experiment("base", func(_ context.Context, args Args) (any, error) {
		return args["a"], nil
	},
		WithParams(Param{Name: "a", Default: 1}, Param{Name: "b", Default: 2}),
		AsRoot(),
	)
	require.NoError(t, err)

	_, err = base.AddVariant("big", Args{"a": 100})
	require.NoError(t, err)

	rec, err := lab.Run(context.Background(), "base.big", WithEcho(false))
	require.NoError(t, err)

	name, err := rec.InfoField("Name")
	require.NoError(t, err)
	assert.Equal(t, "base.big", name)

	args, err := rec.InfoField("Args")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 100, "b": 2}`, args)

	// Call-time args win over the variant's overrides.
	rec2, err := lab.Run(context.Background(), "base.big", WithArgs(Args{"a": 7}), WithEcho(false))
	require.NoError(t, err)

	args, err = rec2.InfoField("Args")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 7, "b": 2}`, args)
}

func Test_Run_StaticInfoAndNotes(t *testing.T) {
	lab := newTestLab(t)

	exp, err := lab.Experiment("annotated", noopFn,
		WithInfo("Owner", "qa"),
		WithInfo("Batch", 3),
	)
	require.NoError(t, err)
	exp.AddNote("check units")
	exp.AddNote("rerun with more data")

	rec, err := exp.Run(context.Background(), WithEcho(false))
	require.NoError(t, err)

	owner, err := rec.InfoField("Owner")
	require.NoError(t, err)
	assert.Equal(t, "qa", owner)

	batch, err := rec.InfoField("Batch")
	require.NoError(t, err)
	assert.Equal(t, "3", batch)

	notes, err := rec.InfoField("Notes")
	require.NoError(t, err)
	assert.JSONEq(t, `["check units", "rerun with more data"]`, notes)
}

func Test_Run_SavesShownFigures(t *testing.T) {
	lab := newTestLab(t)

	exp, err := lab.Experiment("plots", func(_ context.Context, _ Args) (any, error) {
		return nil, plotting.Show(plotting.Figure{Label: "loss", Data: []byte("fake png")})
	})
	require.NoError(t, err)

	rec, err := exp.Run(context.Background(), WithEcho(false))
	require.NoError(t, err)

	figs, err := rec.FigurePaths()
	require.NoError(t, err)
	require.Len(t, figs, 1)

	base := filepath.Base(figs[0])
	assert.True(t, strings.HasPrefix(base, "fig-"))
	assert.True(t, strings.HasSuffix(base, "-loss.png"))

	count, err := rec.InfoField("# Figures Generated")
	require.NoError(t, err)
	assert.Equal(t, "1", count)

	names, err := rec.InfoField("Figures Generated")
	require.NoError(t, err)
	assert.Contains(t, names, base)
}

func Test_Run_ArgsResolutionErrors(t *testing.T) {
	lab := newTestLab(t)

	invoked := false
	exp, err := lab.Experiment("strict", func(_ context.Context, _ Args) (any, error) {
		invoked = true

		return nil, nil
	}, WithParams(Param{Name: "a", Default: 1}, Param{Name: "req", Default: nil}))
	require.NoError(t, err)

	_, err = exp.Run(context.Background(), WithArgs(Args{"a": 2, "zz": 3}), WithEcho(false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown argument "zz"`)
	assert.False(t, invoked)

	_, err = exp.Run(context.Background(), WithArgs(Args{"a": 2}), WithEcho(false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required argument "req"`)
	assert.False(t, invoked)

	rec, err := exp.Run(context.Background(), WithArgs(Args{"a": 2, "req": true}), WithEcho(false))
	require.NoError(t, err)
	assert.True(t, invoked)

	args, err := rec.InfoField("Args")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 2, "req": true}`, args)
}
