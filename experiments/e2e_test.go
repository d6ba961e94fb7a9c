package experiments_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhengpingwan/artemis/experiments"
	"github.com/zhengpingwan/artemis/experiments/exptest"
)

// Test_ExperimentLifecycle drives the public API the way an embedding program
// does: define, run, inspect, replay and clear.
func Test_ExperimentLifecycle(t *testing.T) {
	lab := exptest.NewLab(t)

	var displayed []any
	exp, err := lab.Experiment("tuning", func(_ context.Context, args experiments.Args) (any, error) {
		fmt.Printf("rate=%v\n", args["rate"])

		return map[string]any{"loss": 0.5}, nil
	},
		experiments.WithParams(experiments.Param{Name: "rate", Default: 0.1}),
		experiments.WithDisplay(func(result any) error {
			displayed = append(displayed, result)

			return nil
		}),
		experiments.WithDescription("sweeps the learning rate"),
	)
	require.NoError(t, err)

	rec1, err := exp.Run(context.Background(), experiments.WithEcho(false))
	require.NoError(t, err)
	rec2, err := exp.Run(context.Background(),
		experiments.WithArgs(experiments.Args{"rate": 0.2}), experiments.WithEcho(false),
	)
	require.NoError(t, err)

	ids, err := exp.Records()
	require.NoError(t, err)
	assert.Equal(t, []string{rec1.Identifier(), rec2.Identifier()}, ids)

	latest, err := exp.LatestIdentifier()
	require.NoError(t, err)
	assert.Equal(t, rec2.Identifier(), latest)

	// Records stay valid across processes: a fresh store over the same
	// directory resolves them.
	store, err := experiments.NewStore(lab.Store().Dir())
	require.NoError(t, err)
	again, err := store.Get(rec2.Identifier())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, again.Show(&buf))
	out := buf.String()
	assert.Contains(t, out, "Experiment Record: "+rec2.Identifier())
	assert.Contains(t, out, "Name: tuning")
	assert.Contains(t, out, "Status: Ran Successfully")
	assert.Contains(t, out, "rate=0.2")

	// Each run displayed its in-memory result; replay decodes the persisted
	// JSON.
	require.Len(t, displayed, 2)
	require.NoError(t, exp.DisplayLatest())
	require.Len(t, displayed, 3)
	assert.Equal(t, map[string]any{"loss": 0.5}, displayed[2])

	require.NoError(t, exp.ClearRecords())
	ids, err = exp.Records()
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = exp.LatestIdentifier()
	require.ErrorIs(t, err, experiments.ErrRecordNotFound)
}

// Test_VariantSweep exercises a variant tree end to end, the way parameter
// sweeps are defined in practice.
func Test_VariantSweep(t *testing.T) {
	lab := exptest.NewLab(t)

	base, err := lab.Experiment("sweep", func(_ context.Context, args experiments.Args) (any, error) {
		return args["size"], nil
	},
		experiments.WithParams(experiments.Param{Name: "size", Default: 10}),
		experiments.AsRoot(),
	)
	require.NoError(t, err)

	for name, size := range map[string]int{"small": 1, "large": 100} {
		_, err = base.AddVariant(name, experiments.Args{"size": size})
		require.NoError(t, err)
	}

	records, err := base.RunAll(context.Background(), experiments.WithEcho(false))
	require.NoError(t, err)
	require.Len(t, records, 2)

	for _, rec := range records {
		name, err := rec.InfoField("Name")
		require.NoError(t, err)

		size, ok, err := experiments.ResultAs[int](rec)
		require.NoError(t, err)
		require.True(t, ok)

		switch name {
		case "sweep.small":
			assert.Equal(t, 1, size)
		case "sweep.large":
			assert.Equal(t, 100, size)
		default:
			t.Fatalf("unexpected record name %q", name)
		}
	}
}
