// Package commands provides the CLI command set for the experiment harness.
//
// Commands are created through the Commands factory, which shares the logger
// and the lab across the whole command tree:
//
//	cmds := commands.New(lggr, lab)
//	app.AddCommand(
//	    cmds.NewExperimentCmds(),
//	    cmds.NewRecordCmds(),
//	)
package commands

import (
	"github.com/zhengpingwan/artemis/experiments"
	"github.com/zhengpingwan/artemis/pkg/logger"
)

// Commands provides a factory for creating CLI commands with shared
// configuration. The logger and lab are set once and reused across all
// commands created by this factory.
type Commands struct {
	lggr logger.Logger
	lab  *experiments.Lab
}

// New creates a new Commands factory with the given logger and lab.
func New(lggr logger.Logger, lab *experiments.Lab) *Commands {
	return &Commands{lggr: lggr, lab: lab}
}
