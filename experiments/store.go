package experiments

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/zhengpingwan/artemis/internal/fileutils"
	"github.com/zhengpingwan/artemis/pkg/logger"
)

var (
	// ErrRecordExists is returned when creating a record whose identifier is
	// already taken.
	ErrRecordExists = errors.New("record already exists")

	// ErrRecordNotFound is returned when no record exists for an identifier
	// or lookup.
	ErrRecordNotFound = errors.New("record not found")
)

// Store maps record identifiers to directories under a single root and
// holds every persisted run.
type Store struct {
	dir      string
	template Template
	lggr     logger.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used for best-effort maintenance
// operations.
func WithStoreLogger(lggr logger.Logger) StoreOption {
	return func(s *Store) {
		s.lggr = lggr
	}
}

// WithStoreTemplate overrides the identifier template used for lookups.
func WithStoreTemplate(t Template) StoreOption {
	return func(s *Store) {
		s.template = t
	}
}

// NewStore opens the record store rooted at dir, creating the directory when
// missing.
func NewStore(dir string, opts ...StoreOption) (*Store, error) {
	s := &Store{
		dir:      dir,
		template: DefaultTemplate,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.template.Validate(); err != nil {
		return nil, err
	}
	if s.lggr == nil {
		lggr, err := logger.New()
		if err != nil {
			return nil, err
		}
		s.lggr = lggr
	}

	if err := fileutils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create record store at %s: %w", dir, err)
	}

	return s, nil
}

// Dir returns the store root.
func (s *Store) Dir() string {
	return s.dir
}

// Create allocates a fresh record directory for identifier.
func (s *Store) Create(identifier string) (*Record, error) {
	dir := filepath.Join(s.dir, identifier)

	if err := fileutils.MkdirExclusive(dir); err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRecordExists, identifier)
		}

		return nil, fmt.Errorf("failed to create record directory %s: %w", dir, err)
	}

	return newRecord(identifier, dir), nil
}

// Exists reports whether a record directory exists for identifier.
func (s *Store) Exists(identifier string) bool {
	info, err := os.Stat(filepath.Join(s.dir, identifier))

	return err == nil && info.IsDir()
}

// Get returns the record for identifier.
func (s *Store) Get(identifier string) (*Record, error) {
	dir := filepath.Join(s.dir, identifier)

	info, err := os.Stat(dir)
	if os.IsNotExist(err) || (err == nil && !info.IsDir()) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat record directory %s: %w", dir, err)
	}

	return newRecord(identifier, dir), nil
}

// List enumerates every record identifier in the store. Enumeration order is
// whatever the filesystem returns; callers needing "latest" must sort.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list record store %s: %w", s.dir, err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}

	return ids, nil
}

// ListMatching enumerates the identifiers accepted by re.
func (s *Store) ListMatching(re *regexp.Regexp) ([]string, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(all))
	for _, id := range all {
		if re.MatchString(id) {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

// ListFor enumerates the identifiers recorded for an experiment name, scoped
// to version when non-nil.
func (s *Store) ListFor(name string, version *semver.Version) ([]string, error) {
	re, err := s.template.Matcher(name, version)
	if err != nil {
		return nil, err
	}

	return s.ListMatching(re)
}

// Latest returns the most recent identifier recorded for an experiment name.
// The timestamp format sorts chronologically, so the lexicographic maximum
// is the latest run.
func (s *Store) Latest(name string, version *semver.Version) (string, error) {
	ids, err := s.ListFor(name, version)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: no records for experiment %s", ErrRecordNotFound, recordName(name, version))
	}

	sort.Strings(ids)

	return ids[len(ids)-1], nil
}

// Delete removes the record directory for identifier. Deleting an absent
// record is an error.
func (s *Store) Delete(identifier string) error {
	rec, err := s.Get(identifier)
	if err != nil {
		return err
	}

	return rec.Delete()
}

// ClearAll removes every record in the store. Individual failures are logged
// and skipped so the rest of the sweep still completes.
func (s *Store) ClearAll() error {
	ids, err := s.List()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := os.RemoveAll(filepath.Join(s.dir, id)); err != nil {
			s.lggr.Warnw("Failed to delete record, continuing", "identifier", id, "error", err)
		}
	}

	return nil
}
