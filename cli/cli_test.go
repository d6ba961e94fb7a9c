package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func Test_App_AddCommand(t *testing.T) {
	t.Parallel()

	app := App{
		rootCmd: &cobra.Command{},
	}

	give := &cobra.Command{}

	app.AddCommand(give)

	assert.Equal(t, []*cobra.Command{give}, app.rootCmd.Commands())
}

func Test_App_Run(t *testing.T) {
	t.Parallel()

	var val string

	app := App{
		rootCmd: &cobra.Command{
			Use: "test",
			RunE: func(cmd *cobra.Command, args []string) error {
				val = "ran"

				return nil
			},
		},
	}

	err := app.Run()
	require.NoError(t, err)
	assert.Equal(t, "ran", val)
}

func Test_NewLogger(t *testing.T) {
	t.Parallel()

	log, err := NewLogger(zapcore.DebugLevel)
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func Test_NewLogger_ConsoleFormat(t *testing.T) { //nolint:paralleltest // mutates LOG_FORMAT
	t.Setenv("LOG_FORMAT", "console")

	log, err := NewLogger(zapcore.InfoLevel)
	require.NoError(t, err)
	assert.NotNil(t, log)
}
