package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhengpingwan/artemis/cli"
	"github.com/zhengpingwan/artemis/experiments"
	"github.com/zhengpingwan/artemis/plotting"
)

// NewExperimentCmds holds the commands for listing and running experiments.
func (c *Commands) NewExperimentCmds() *cobra.Command {
	expCmd := &cobra.Command{
		Use:     "experiments",
		Aliases: []string{"exp"},
		Short:   "Manage and run registered experiments",
	}

	expCmd.AddCommand(
		c.newExperimentList(),
		c.newExperimentRun(),
	)

	return expCmd
}

var (
	// experiment list cmd
	expListLong = cli.LongDesc(`
	List every registered experiment with its version, description and the
	number of persisted records.
	`)
	expListExample = cli.Examples(`
	# List all registered experiments
	artemis experiments list
	`)
)

// newExperimentList lists the registered experiments in a table.
func (c *Commands) newExperimentList() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered experiments",
		Long:    expListLong,
		Example: expListExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			exps := c.lab.Registry().All()

			rows := make([][]string, 0, len(exps))
			for _, exp := range exps {
				version := ""
				if v := exp.Version(); v != nil {
					version = v.String()
				}

				ids, err := exp.Records()
				if err != nil {
					return err
				}

				rows = append(rows, []string{exp.Name(), version, exp.Description(), strconv.Itoa(len(ids))})
			}

			writeExperimentTable(cmd.OutOrStdout(), rows)

			return nil
		},
	}
}

var (
	// experiment run cmd
	expRunLong = cli.LongDesc(`
	Run a registered experiment, capturing its console output, figures and
	result into a new record.

	With --all the experiment's whole variant tree runs sequentially, and
	with --parallel the variants are fanned out across worker processes.
	Per-run flags do not reach worker processes, so --parallel excludes them.
	`)
	expRunExample = cli.Examples(`
	# Run one experiment
	artemis experiments run tuning

	# Run a test iteration without keeping the record
	artemis experiments run tuning --test

	# Run every variant with arguments loaded from a file
	artemis experiments run tuning --all --args-file args.toml

	# Fan the variants out across worker processes
	artemis experiments run tuning --all --parallel
	`)
)

// newExperimentRun runs one experiment or its whole variant tree.
func (c *Commands) newExperimentRun() *cobra.Command {
	var (
		testMode   bool
		keepRecord bool
		show       string
		all        bool
		parallel   bool
		argsFile   string
	)

	cmd := &cobra.Command{
		Use:     "run <name>",
		Short:   "Run an experiment and record the results",
		Long:    expRunLong,
		Example: expRunExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if parallel && !all {
				return errors.New("--parallel requires --all")
			}

			runOpts := make([]experiments.RunOption, 0, 4)
			if cmd.Flags().Changed("test") {
				runOpts = append(runOpts, experiments.WithTestMode(testMode))
			}
			if cmd.Flags().Changed("keep-record") {
				runOpts = append(runOpts, experiments.WithKeepRecord(keepRecord))
			}
			if show != "" {
				mode, err := plotting.ParseShowMode(show)
				if err != nil {
					return err
				}
				runOpts = append(runOpts, experiments.WithShowMode(mode))
			}
			if argsFile != "" {
				fileArgs, err := loadArgsFile(argsFile)
				if err != nil {
					return err
				}
				runOpts = append(runOpts, experiments.WithArgs(fileArgs))
			}

			switch {
			case parallel:
				exp, err := c.lab.Get(name)
				if err != nil {
					return err
				}

				return exp.RunAllParallel(cmd.Context())
			case all:
				exp, err := c.lab.Get(name)
				if err != nil {
					return err
				}

				records, err := exp.RunAll(cmd.Context(), runOpts...)
				for _, rec := range records {
					fmt.Fprintln(cmd.OutOrStdout(), rec.Identifier())
				}

				return err
			default:
				rec, err := c.lab.Run(cmd.Context(), name, runOpts...)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), rec.Identifier())

				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&testMode, "test", false, "Run in test mode; the record is ephemeral unless kept")
	cmd.Flags().BoolVar(&keepRecord, "keep-record", false, "Keep the record even for test mode runs")
	cmd.Flags().StringVar(&show, "show", "", "Figure show mode ["+strings.Join(validShowModes, "|")+"]")
	cmd.Flags().BoolVar(&all, "all", false, "Run the experiment's whole variant tree")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Fan variants out across worker processes (requires --all)")
	cmd.Flags().StringVar(&argsFile, "args-file", "", "Path to a TOML or YAML file with call-time arguments")

	for _, flag := range []string{"test", "keep-record", "show", "args-file"} {
		cmd.MarkFlagsMutuallyExclusive("parallel", flag)
	}

	return cmd
}
