// Package exptest provides utilities for experiment testing.
package exptest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhengpingwan/artemis/experiments"
	"github.com/zhengpingwan/artemis/pkg/logger"
	"github.com/zhengpingwan/artemis/plotting"
)

// NewLab creates a lab for testing with a no-op logger, a record store under
// a test temp directory and figure showing suppressed. The lab is closed
// when the test finishes.
func NewLab(t *testing.T) *experiments.Lab {
	t.Helper()

	lab, err := experiments.NewLab(
		experiments.WithLogger(logger.Nop()),
		experiments.WithDir(t.TempDir()),
		experiments.WithDefaultShowMode(plotting.ModeSuppress),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, lab.Close())
	})

	return lab
}
