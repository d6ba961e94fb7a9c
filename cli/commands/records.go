package commands

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zhengpingwan/artemis/cli"
	"github.com/zhengpingwan/artemis/cli/flags"
	"github.com/zhengpingwan/artemis/experiments"
	"github.com/zhengpingwan/artemis/kvstore"
)

// NewRecordCmds holds the commands for inspecting and maintaining experiment
// records.
func (c *Commands) NewRecordCmds() *cobra.Command {
	recCmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"rec"},
		Short:   "Inspect and maintain experiment records",
	}

	recCmd.AddCommand(
		c.newRecordList(),
		c.newRecordShow(),
		c.newRecordDelete(),
		c.newRecordClear(),
	)

	return recCmd
}

var (
	// record list cmd
	recordListLong = cli.LongDesc(`
	List persisted experiment records with their status and run time,
	oldest first. With --experiment only that experiment's records are
	listed.
	`)
	recordListExample = cli.Examples(`
	# List every record
	artemis records list

	# List the records of one experiment
	artemis records list --experiment tuning
	`)
)

// newRecordList lists persisted records in a table.
func (c *Commands) newRecordList() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List persisted experiment records",
		Long:    recordListLong,
		Example: recordListExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			experiment := flags.MustString(cmd.Flags().GetString("experiment"))

			ids, err := c.listIdentifiers(experiment)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(ids))
			for _, id := range ids {
				rec, err := c.lab.Store().Get(id)
				if err != nil {
					return err
				}
				rows = append(rows, recordRow(rec))
			}

			writeRecordTable(cmd.OutOrStdout(), rows)

			return nil
		},
	}

	flags.Experiment(cmd, "Only list records of this experiment")

	return cmd
}

func (c *Commands) listIdentifiers(experiment string) ([]string, error) {
	if experiment == "" {
		return c.lab.Store().List()
	}

	exp, err := c.lab.Get(experiment)
	if err != nil {
		return nil, err
	}

	return exp.Records()
}

// recordRow renders one table row, best effort: records of failed or foreign
// runs may lack fields.
func recordRow(rec *experiments.Record) []string {
	status, err := rec.InfoField("Status")
	if err != nil {
		status = ""
	}
	runTime, err := rec.InfoField("Run Time")
	if err != nil {
		runTime = ""
	}

	return []string{rec.Identifier(), status, runTime}
}

var (
	// record show cmd
	recordShowLong = cli.LongDesc(`
	Show one record: its info fields, captured log and saved figures.
	The yaml format emits a machine readable rendering including the
	serialized result.
	`)
	recordShowExample = cli.Examples(`
	# Show a record
	artemis records show 2026.01.02-15.04.05.000000-tuning

	# Show a record as YAML
	artemis records show 2026.01.02-15.04.05.000000-tuning -f yaml
	`)
)

// recordView is the YAML rendering of a record.
type recordView struct {
	Identifier string          `yaml:"identifier"`
	Directory  string          `yaml:"directory"`
	Info       []kvstore.Entry `yaml:"info"`
	Log        string          `yaml:"log,omitempty"`
	Figures    []string        `yaml:"figures,omitempty"`
	Result     string          `yaml:"result,omitempty"`
}

// newRecordShow renders one record to the console.
func (c *Commands) newRecordShow() *cobra.Command {
	var (
		format       string
		validFormats = []string{"text", "yaml"}
	)

	cmd := &cobra.Command{
		Use:     "show <identifier>",
		Short:   "Show one record's info, log and figures",
		Long:    recordShowLong,
		Example: recordShowExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if !slices.Contains(validFormats, format) {
				return fmt.Errorf("invalid format '%s'", format)
			}

			rec, err := c.lab.Store().Get(args[0])
			if err != nil {
				return err
			}

			if format == "text" {
				return rec.Show(cmd.OutOrStdout())
			}

			view, err := buildRecordView(rec)
			if err != nil {
				return err
			}

			b, err := yaml.Marshal(view)
			if err != nil {
				return fmt.Errorf("failed to marshal record %s: %w", rec.Identifier(), err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(b))

			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format ["+strings.Join(validFormats, "|")+"]")

	return cmd
}

func buildRecordView(rec *experiments.Record) (*recordView, error) {
	view := &recordView{
		Identifier: rec.Identifier(),
		Directory:  rec.Dir(),
	}

	info, err := rec.Info()
	if err != nil && !errors.Is(err, experiments.ErrRecordNotFound) {
		return nil, err
	}
	view.Info = info

	log, err := rec.Log()
	if err != nil && !errors.Is(err, experiments.ErrLogNotFound) {
		return nil, err
	}
	view.Log = log

	figs, err := rec.FigurePaths()
	if err != nil {
		return nil, err
	}
	view.Figures = figs

	if raw, ok, err := rec.Result(); err != nil {
		return nil, err
	} else if ok {
		view.Result = string(raw)
	}

	return view, nil
}

// newRecordDelete deletes one record.
func (c *Commands) newRecordDelete() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <identifier>",
		Aliases: []string{"rm"},
		Short:   "Delete one record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.lab.Store().Delete(args[0]); err != nil {
				return err
			}
			c.lggr.Infof("Deleted record %s", args[0])

			return nil
		},
	}
}

var (
	// record clear cmd
	recordClearLong = cli.LongDesc(`
	Delete persisted records, best effort: records that fail to delete are
	skipped with a warning. With --experiment only that experiment's
	records are cleared.
	`)
)

// newRecordClear deletes records in bulk.
func (c *Commands) newRecordClear() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete persisted records",
		Long:  recordClearLong,
		RunE: func(cmd *cobra.Command, args []string) error {
			experiment := flags.MustString(cmd.Flags().GetString("experiment"))
			if experiment == "" {
				c.lggr.Infof("Clearing all records under %s", c.lab.Store().Dir())

				return c.lab.Store().ClearAll()
			}

			exp, err := c.lab.Get(experiment)
			if err != nil {
				return err
			}
			c.lggr.Infof("Clearing records of %s", experiment)

			return exp.ClearRecords()
		},
	}

	flags.Experiment(cmd, "Only clear records of this experiment")

	return cmd
}
