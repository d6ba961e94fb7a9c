// Package cli provides a base struct for creating CLI applications using Cobra. It contains common
// functionality for creating CLI applications, such as providing a logger, adding commands and
// running the root command.
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zhengpingwan/artemis/pkg/logger"
)

// App is a base struct for creating CLI applications using Cobra. This should be embedded into
// a struct that contains the specific commands for the CLI application.
type App struct {
	Log logger.Logger

	rootCmd *cobra.Command
}

// NewApp creates a new App instance.
func NewApp(log logger.Logger, rootCmd *cobra.Command) *App {
	return &App{
		Log:     log,
		rootCmd: rootCmd,
	}
}

// AddCommand adds one or more commands to the root command of the CLI application.
func (a *App) AddCommand(cmds ...*cobra.Command) {
	a.rootCmd.AddCommand(cmds...)
}

// Run executes the root command of the CLI application.
func (a *App) Run() error {
	return a.rootCmd.Execute()
}

// RootCmd returns the root command of the CLI application.
func (a *App) RootCmd() *cobra.Command {
	return a.rootCmd
}

// NewLogger creates a logger for CLI use. It emits JSON by default and
// switches to a colored console encoding when LOG_FORMAT is "console" or
// "human". This is a helper function to initialize a logger to provide to
// `NewApp`.
func NewLogger(level zapcore.Level) (logger.Logger, error) {
	c := logger.Config{Level: level}
	if os.Getenv("LOG_FORMAT") == "console" || os.Getenv("LOG_FORMAT") == "human" {
		return logger.NewWith(func(config *zap.Config) {
			config.Level.SetLevel(level)
			config.Development = true
			config.DisableStacktrace = true
			config.Encoding = "console"
			config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		})
	}

	return c.New()
}
