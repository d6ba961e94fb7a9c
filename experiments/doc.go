/*
Package experiments provides an experiment-tracking harness for research
code: it wraps a plain function in a record-keeping envelope that captures
console output, generated figures and the returned result into a per-run
directory, and organizes related runs into a named variant tree.

# Experiments API

The Experiments API enables:
- Defining named, versioned experiments around plain functions
- Running experiments with console capture and figure interception
- Persisting per-run records with metadata, logs, figures and results
- Deriving variants with pre-bound arguments and running whole trees

# Core Components

Experiment:
  - Pairs a function with a name, declared parameters and run configuration
  - Supports versioning, a display function and static info fields
  - Owns a tree of variants registered under dot-qualified names

Record:
  - The persisted artifact set produced by one run
  - Holds the captured log, keyed info store, figures and a serialized result
  - Addressable by identifier after the defining process is gone

Store:
  - Maps record identifiers to directories under one root
  - Creates, enumerates, looks up and deletes records
  - Resolves "latest run" through identifier matching

Guard:
  - Ensures at most one experiment executes at a time per process
  - Exposes the current run to the running function
  - Fails fast on nested or concurrent run attempts

Lab:
  - Bundles the logger, store, registry and run defaults
  - The factory every experiment definition goes through
  - Hosts the worker hook for multi-process run-all fan-out

# Basic Usage

	// Build a lab and define an experiment
	lab, err := experiments.NewLab()
	exp, err := lab.Experiment("demo", run,
		experiments.WithParams(
			experiments.Param{Name: "a", Default: 1},
			experiments.Param{Name: "b", Default: 2},
		),
	)

	// Run it and inspect the record
	rec, err := exp.Run(ctx)
	status, err := rec.InfoField("Status")
*/
package experiments
