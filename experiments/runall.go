package experiments

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/segmentio/ksuid"
)

// RunAll runs every non-root variant in the tree sequentially, in pre-order,
// and returns their records. It stops at the first failure, returning the
// records completed so far alongside the error.
func (e *Experiment) RunAll(ctx context.Context, opts ...RunOption) ([]*Record, error) {
	variants := e.AllVariants(false)

	records := make([]*Record, 0, len(variants))
	for _, exp := range variants {
		rec, err := exp.Run(ctx, opts...)
		if err != nil {
			return records, fmt.Errorf("run %s: %w", exp.Name(), err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// RunAllParallel fans the tree's non-root variants out across a fixed pool
// of worker processes, each running one full experiment lifecycle in
// isolation. Workers re-execute this program with the experiment name in the
// environment; the embedding program must call Lab.InitWorker at the top of
// main for the fan-out to work. Failures are aggregated after all names have
// been dispatched.
func (e *Experiment) RunAllParallel(ctx context.Context) error {
	variants := e.AllVariants(false)
	names := make([]string, 0, len(variants))
	for _, exp := range variants {
		names = append(names, exp.Name())
	}

	return e.lab.runParallel(ctx, names)
}

func (l *Lab) runParallel(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	workers := l.workers
	if workers > len(names) {
		workers = len(names)
	}

	l.lggr.Infow("Fanning experiments out to worker processes", "experiments", len(names), "workers", workers)

	type job struct {
		idx  int
		name string
	}

	jobs := make(chan job)
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := range jobs {
				jobID := ksuid.New().String()
				l.lggr.Infow("Dispatching experiment to worker", "job", jobID, "experiment", j.name)

				if err := l.spawn(ctx, j.name); err != nil {
					l.lggr.Errorw("Worker failed", "job", jobID, "experiment", j.name, "error", err)
					errs[j.idx] = fmt.Errorf("worker for %s: %w", j.name, err)

					continue
				}

				l.lggr.Infow("Worker finished", "job", jobID, "experiment", j.name)
			}
		}()
	}

	for i, name := range names {
		jobs <- job{idx: i, name: name}
	}
	close(jobs)
	wg.Wait()

	return errors.Join(errs...)
}

// spawnWorker re-executes the current program with workerEnv set, so the
// child registers the same experiments and runs exactly one of them.
func (l *Lab) spawnWorker(ctx context.Context, name string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve current executable: %w", err)
	}

	cmd := exec.CommandContext(ctx, exe)
	cmd.Env = append(os.Environ(), workerEnv+"="+name)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// InitWorker reports whether this process was spawned as a run-all worker
// and, if so, runs the requested experiment first. Programs using
// RunAllParallel call it at the top of main and return when it reports true:
//
//	func main() {
//		lab := buildLab()
//		if lab.InitWorker() {
//			return
//		}
//		// normal entry point
//	}
//
// A failed worker run exits the process with a non-zero status so the
// parent's fan-out observes the failure.
func (l *Lab) InitWorker() bool {
	name := os.Getenv(workerEnv)
	if name == "" {
		return false
	}

	if _, err := l.Run(context.Background(), name); err != nil {
		l.lggr.Errorw("Worker run failed", "experiment", name, "error", err)
		os.Exit(1)
	}

	return true
}
