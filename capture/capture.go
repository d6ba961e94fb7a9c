// Package capture redirects process console output into a log file for the
// duration of a scope.
package capture

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Scope captures everything written to os.Stdout and os.Stderr between Open
// and Close into a log file, optionally echoing to the real console.
//
// The redirection works by swapping the os.Stdout and os.Pipe file handles,
// so only writers that resolve os.Stdout at write time are captured. Writers
// that grabbed the handle before Open keep writing to the original console.
type Scope struct {
	path     string
	file     *os.File
	pipeR    *os.File
	pipeW    *os.File
	origOut  *os.File
	origErr  *os.File
	drained  sync.WaitGroup
	closeFn  sync.Once
	closeErr error
}

// Open starts capturing console output into logPath. When echo is true the
// output is also written through to the original stdout. Close must be
// called to restore the console, on every exit path.
func Open(logPath string, echo bool) (*Scope, error) {
	file, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", logPath, err)
	}

	pipeR, pipeW, err := os.Pipe()
	if err != nil {
		file.Close()

		return nil, fmt.Errorf("failed to open capture pipe: %w", err)
	}

	s := &Scope{
		path:    logPath,
		file:    file,
		pipeR:   pipeR,
		pipeW:   pipeW,
		origOut: os.Stdout,
		origErr: os.Stderr,
	}

	dst := io.Writer(file)
	if echo {
		dst = io.MultiWriter(file, s.origOut)
	}

	s.drained.Add(1)
	go func() {
		defer s.drained.Done()
		io.Copy(dst, pipeR) //nolint:errcheck // a broken pipe here just ends the capture
	}()

	os.Stdout = pipeW
	os.Stderr = pipeW

	return s, nil
}

// Path returns the location of the log file.
func (s *Scope) Path() string {
	return s.path
}

// Close restores the console handles, waits for buffered output to drain
// into the log file and closes it. Close is idempotent.
func (s *Scope) Close() error {
	s.closeFn.Do(func() {
		os.Stdout = s.origOut
		os.Stderr = s.origErr

		// Closing the write end unblocks the drain goroutine with EOF.
		if err := s.pipeW.Close(); err != nil {
			s.closeErr = err
		}
		s.drained.Wait()
		s.pipeR.Close()

		if err := s.file.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})

	return s.closeErr
}
