// Package flags provides reusable flag helpers for CLI commands.
//
// This package should only contain common flags that can be used by multiple commands
// to ensure unified naming and consistent behavior across the CLI.
// Command-specific flags should be defined locally in the command file.
package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// MustString returns the string value, ignoring the error.
// Safe to use with registered flags where GetString cannot fail.
func MustString(s string, _ error) string { return s }

// MustBool returns the bool value, ignoring the error.
// Safe to use with registered flags where GetBool cannot fail.
func MustBool(b bool, _ error) bool { return b }

// Experiment adds the optional --experiment/-e filter flag to a command.
// Retrieve the value with cmd.Flags().GetString("experiment").
//
// Usage:
//
//	flags.Experiment(cmd, "Only list records of this experiment")
//	// later in RunE:
//	name := flags.MustString(cmd.Flags().GetString("experiment"))
func Experiment(cmd *cobra.Command, usage string) {
	cmd.Flags().StringP("experiment", "e", "", usage)

	// Normalize --exp to --experiment, matching the alias of the experiments
	// command group (silent)
	existingNormalize := cmd.Flags().GetNormalizeFunc()
	cmd.Flags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "exp" {
			return pflag.NormalizedName("experiment")
		}
		if existingNormalize != nil {
			return existingNormalize(f, name)
		}

		return pflag.NormalizedName(name)
	})
}
