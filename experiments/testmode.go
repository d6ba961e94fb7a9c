package experiments

import "sync"

// The ambient test-mode flag is process-wide. Runs inherit it unless given
// an explicit override, and restore it on exit.
var ambientTestMode = struct {
	mu sync.RWMutex
	on bool
}{}

// TestMode returns the ambient test-mode flag.
func TestMode() bool {
	ambientTestMode.mu.RLock()
	defer ambientTestMode.mu.RUnlock()

	return ambientTestMode.on
}

// SetTestMode sets the ambient test-mode flag and returns the previous
// value, so scoped overrides can restore it.
func SetTestMode(on bool) bool {
	ambientTestMode.mu.Lock()
	defer ambientTestMode.mu.Unlock()

	prev := ambientTestMode.on
	ambientTestMode.on = on

	return prev
}
