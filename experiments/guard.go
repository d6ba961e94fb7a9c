package experiments

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNoActiveRun is returned by the current-run accessors while no
// experiment is executing.
var ErrNoActiveRun = errors.New("no experiment is currently running")

// Guard is the single-flight state for experiment execution. At most one run
// may be active per process: the console capture and figure scopes a run
// opens are process-level, so interleaving two runs would mix their output
// onto the same files. The guard is not a cross-process lock.
type Guard struct {
	mu         sync.Mutex
	name       string
	identifier string
	record     *Record
}

// Register transitions the guard from idle to running. Starting a run while
// one is active is a usage error; the returned message names both the
// blocked and the blocking identifier.
func (g *Guard) Register(name, identifier string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.identifier != "" {
		return fmt.Errorf("cannot start experiment %s until %s has been stopped", identifier, g.identifier)
	}

	g.name = name
	g.identifier = identifier

	return nil
}

// attachRecord exposes the in-flight run's record through CurrentRecord.
func (g *Guard) attachRecord(rec *Record) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.record = rec
}

// Deregister returns the guard to idle. It is called on every run exit path
// and is safe to call while already idle.
func (g *Guard) Deregister() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.name = ""
	g.identifier = ""
	g.record = nil
}

// Active reports whether a run is in flight.
func (g *Guard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.identifier != ""
}

// CurrentName returns the name of the running experiment.
func (g *Guard) CurrentName() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.identifier == "" {
		return "", ErrNoActiveRun
	}

	return g.name, nil
}

// CurrentIdentifier returns the identifier of the running experiment.
func (g *Guard) CurrentIdentifier() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.identifier == "" {
		return "", ErrNoActiveRun
	}

	return g.identifier, nil
}

// CurrentRecord returns the record of the running experiment.
func (g *Guard) CurrentRecord() (*Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.identifier == "" || g.record == nil {
		return nil, ErrNoActiveRun
	}

	return g.record, nil
}

// runGuard is the process-wide guard instance. The state it protects, the
// console handles and the figure scope stack, is process-level, so all labs
// share one guard.
var runGuard = &Guard{}

// CurrentRecord returns the record of the experiment running in this
// process. The wrapped function uses it to stash extra info fields or notes
// on its own record.
func CurrentRecord() (*Record, error) {
	return runGuard.CurrentRecord()
}

// CurrentName returns the name of the experiment running in this process.
func CurrentName() (string, error) {
	return runGuard.CurrentName()
}

// CurrentIdentifier returns the identifier of the experiment running in this
// process.
func CurrentIdentifier() (string, error) {
	return runGuard.CurrentIdentifier()
}
