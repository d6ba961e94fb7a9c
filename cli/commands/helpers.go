package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pelletier/go-toml/v2"
	"github.com/suzuki-shunsuke/go-convmap/convmap"
	"gopkg.in/yaml.v3"

	"github.com/zhengpingwan/artemis/experiments"
)

// validShowModes are the accepted --show values.
var validShowModes = []string{"hang", "draw", "suppress"}

// loadArgsFile reads call-time experiment arguments from a TOML or YAML file.
func loadArgsFile(path string) (experiments.Args, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read args file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var raw map[string]any
		if err := toml.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		return experiments.Args(raw), nil
	case ".yaml", ".yml":
		var raw map[string]any
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		// Convert YAML-decoded values to a JSON-safe format so they encode
		// cleanly into the record's info store.
		safe, err := convmap.Convert(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s: %w", path, err)
		}
		m, ok := safe.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("args file %s must contain a mapping", path)
		}

		return experiments.Args(m), nil
	default:
		return nil, fmt.Errorf("unsupported args file extension %q (expected .toml, .yaml or .yml)", filepath.Ext(path))
	}
}

func writeExperimentTable(w io.Writer, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Version", "Description", "Records"})
	table.SetBorders(tablewriter.Border{
		Left:   false,
		Right:  false,
		Top:    true,
		Bottom: true,
	})
	table.AppendBulk(rows)
	table.Render()
}

func writeRecordTable(w io.Writer, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Identifier", "Status", "Run Time"})
	table.SetBorders(tablewriter.Border{
		Left:   false,
		Right:  false,
		Top:    true,
		Bottom: true,
	})
	table.AppendBulk(rows)
	table.Render()
}
