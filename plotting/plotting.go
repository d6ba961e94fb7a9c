// Package plotting routes "show a figure" calls through interception scopes,
// so a harness can decide whether showing blocks, draws or is suppressed, and
// can persist every shown figure into a run directory.
package plotting

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Figure is a rendered plot ready to be shown or written to disk.
type Figure struct {
	// Label names the figure in file names and prompts. When empty, save
	// scopes substitute the figure's sequence number.
	Label string
	// Ext is the artifact file extension including the leading dot.
	// Defaults to ".png".
	Ext string
	// Data holds the encoded image bytes.
	Data []byte
}

// ShowMode selects what Show does after notifying save scopes.
type ShowMode int

const (
	// ModeHang blocks the calling goroutine until the figure is dismissed.
	ModeHang ShowMode = iota
	// ModeDraw renders without blocking.
	ModeDraw
	// ModeSuppress drops the show call.
	ModeSuppress
)

const timestampLayout = "2006.01.02-15.04.05.000000"

func (m ShowMode) String() string {
	switch m {
	case ModeHang:
		return "hang"
	case ModeDraw:
		return "draw"
	case ModeSuppress:
		return "suppress"
	default:
		return fmt.Sprintf("showmode(%d)", int(m))
	}
}

// ParseShowMode parses the string form used by flags and config files.
func ParseShowMode(s string) (ShowMode, error) {
	switch strings.ToLower(s) {
	case "hang":
		return ModeHang, nil
	case "draw":
		return ModeDraw, nil
	case "suppress":
		return ModeSuppress, nil
	default:
		return ModeHang, fmt.Errorf("unknown show mode %q (expected hang, draw or suppress)", s)
	}
}

// The scope stacks are process-level state, mirroring the console handles
// the figures are shown on.
var global = struct {
	mu     sync.Mutex
	modes  []ShowMode
	savers []*SaveScope
	hangFn func(Figure)
}{
	hangFn: promptDismiss,
}

// promptDismiss blocks until the user acknowledges the figure on stdin.
func promptDismiss(fig Figure) {
	label := fig.Label
	if label == "" {
		label = "figure"
	}
	fmt.Printf("Showing %s. Press enter to continue...\n", label)
	bufio.NewReader(os.Stdin).ReadString('\n') //nolint:errcheck // EOF just unblocks
}

// SetHangHandler replaces the blocking behavior of ModeHang and returns the
// previous handler. Headless environments install a non-interactive handler.
func SetHangHandler(fn func(Figure)) func(Figure) {
	global.mu.Lock()
	defer global.mu.Unlock()

	prev := global.hangFn
	global.hangFn = fn

	return prev
}

// Show displays fig according to the active show mode, first handing it to
// every open save scope. Without an open show scope the mode is ModeHang.
func Show(fig Figure) error {
	global.mu.Lock()
	mode := ModeHang
	if n := len(global.modes); n > 0 {
		mode = global.modes[n-1]
	}
	savers := make([]*SaveScope, len(global.savers))
	copy(savers, global.savers)
	hangFn := global.hangFn
	global.mu.Unlock()

	var errs []error
	for _, s := range savers {
		if err := s.save(fig); err != nil {
			errs = append(errs, err)
		}
	}

	switch mode {
	case ModeSuppress, ModeDraw:
		// Nothing to block on.
	case ModeHang:
		hangFn(fig)
	}

	return errors.Join(errs...)
}

// ShowScope overrides the show mode until closed.
type ShowScope struct {
	mode      ShowMode
	closeOnce sync.Once
}

// OpenShowScope pushes mode as the active show behavior. Scopes must be
// closed in reverse order of opening.
func OpenShowScope(mode ShowMode) *ShowScope {
	global.mu.Lock()
	defer global.mu.Unlock()

	global.modes = append(global.modes, mode)

	return &ShowScope{mode: mode}
}

// Close restores the previously active show mode. Close is idempotent.
func (s *ShowScope) Close() {
	s.closeOnce.Do(func() {
		global.mu.Lock()
		defer global.mu.Unlock()

		if n := len(global.modes); n > 0 {
			global.modes = global.modes[:n-1]
		}
	})
}

// SaveScope writes every figure shown while it is open to files derived from
// a path template. The template placeholders are %T (timestamp) and %L
// (figure label, falling back to the figure's sequence number).
type SaveScope struct {
	template  string
	closeOnce sync.Once

	mu    sync.Mutex
	count int
	saved []string
}

// OpenSaveScope registers a save scope for pathTemplate, typically
// "<record dir>/fig-%T-%L".
func OpenSaveScope(pathTemplate string) *SaveScope {
	s := &SaveScope{template: pathTemplate}

	global.mu.Lock()
	defer global.mu.Unlock()
	global.savers = append(global.savers, s)

	return s
}

// SavedPaths returns the files written so far, in the order figures were
// shown.
func (s *SaveScope) SavedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, len(s.saved))
	copy(paths, s.saved)

	return paths
}

// Close deregisters the scope. Close is idempotent.
func (s *SaveScope) Close() {
	s.closeOnce.Do(func() {
		global.mu.Lock()
		defer global.mu.Unlock()

		for i, saver := range global.savers {
			if saver == s {
				global.savers = append(global.savers[:i], global.savers[i+1:]...)

				break
			}
		}
	})
}

func (s *SaveScope) save(fig Figure) error {
	s.mu.Lock()
	s.count++
	label := fig.Label
	if label == "" {
		label = strconv.Itoa(s.count)
	}
	s.mu.Unlock()

	ext := fig.Ext
	if ext == "" {
		ext = ".png"
	}

	path := strings.NewReplacer(
		"%T", time.Now().Format(timestampLayout),
		"%L", label,
	).Replace(s.template) + ext

	if err := os.WriteFile(path, fig.Data, 0600); err != nil {
		return fmt.Errorf("failed to save figure %s: %w", label, err)
	}

	s.mu.Lock()
	s.saved = append(s.saved, path)
	s.mu.Unlock()

	return nil
}
