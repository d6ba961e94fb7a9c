package experiments

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhengpingwan/artemis/internal/jsonutils"
	"github.com/zhengpingwan/artemis/kvstore"
)

var (
	// ErrLogNotFound is returned when a record directory has no captured log,
	// which marks it as not (yet) a valid record.
	ErrLogNotFound = errors.New("log not found")

	// ErrFieldNotFound is returned when an info field does not exist.
	ErrFieldNotFound = errors.New("info field not found")
)

const (
	logFileName    = "output.txt"
	infoFileName   = "info.db"
	resultFileName = "result.json"

	figurePrefix       = "fig-"
	figureFileTemplate = figurePrefix + "%T-%L"

	notesField = "Notes"
)

// Record is the persisted artifact set produced by one experiment run: the
// captured log, the keyed info store, saved figures and an optional
// serialized result. A Record addresses its directory only; it holds no open
// handles and stays valid across processes.
type Record struct {
	identifier string
	dir        string
}

func newRecord(identifier, dir string) *Record {
	return &Record{identifier: identifier, dir: dir}
}

// Identifier returns the unique identifier naming this record.
func (r *Record) Identifier() string {
	return r.identifier
}

// Dir returns the backing directory.
func (r *Record) Dir() string {
	return r.dir
}

// LogPath returns the location of the captured console log.
func (r *Record) LogPath() string {
	return filepath.Join(r.dir, logFileName)
}

func (r *Record) infoPath() string {
	return filepath.Join(r.dir, infoFileName)
}

func (r *Record) resultPath() string {
	return filepath.Join(r.dir, resultFileName)
}

// AddInfo upserts one field in the persisted info store. String values are
// stored verbatim; any other value is stored as its JSON encoding. The store
// is opened and closed per call, so interleaved readers never observe a
// partial write.
func (r *Record) AddInfo(field string, value any) error {
	encoded, err := encodeInfoValue(value)
	if err != nil {
		return fmt.Errorf("failed to encode info field %q: %w", field, err)
	}

	kv, err := kvstore.Open(r.infoPath())
	if err != nil {
		return err
	}
	defer kv.Close()

	return kv.Set(field, encoded)
}

// AddNote appends note to the record's Notes field.
func (r *Record) AddNote(note string) error {
	kv, err := kvstore.Open(r.infoPath())
	if err != nil {
		return err
	}
	defer kv.Close()

	var notes []string
	raw, err := kv.Get(notesField)
	switch {
	case errors.Is(err, kvstore.ErrKeyNotFound):
	case err != nil:
		return err
	default:
		if err := json.Unmarshal([]byte(raw), &notes); err != nil {
			return fmt.Errorf("failed to decode notes: %w", err)
		}
	}

	notes = append(notes, note)
	encoded, err := json.Marshal(notes)
	if err != nil {
		return err
	}

	return kv.Set(notesField, string(encoded))
}

// Info returns the whole info mapping in insertion order.
func (r *Record) Info() ([]kvstore.Entry, error) {
	if _, err := os.Stat(r.infoPath()); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: record %s has no info store", ErrRecordNotFound, r.identifier)
	}

	kv, err := kvstore.Open(r.infoPath())
	if err != nil {
		return nil, err
	}
	defer kv.Close()

	return kv.All()
}

// InfoField returns the stored value of one info field.
func (r *Record) InfoField(field string) (string, error) {
	if _, err := os.Stat(r.infoPath()); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %q in record %s", ErrFieldNotFound, field, r.identifier)
	}

	kv, err := kvstore.Open(r.infoPath())
	if err != nil {
		return "", err
	}
	defer kv.Close()

	value, err := kv.Get(field)
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %q in record %s", ErrFieldNotFound, field, r.identifier)
	}

	return value, err
}

// Log returns the captured console output of the run.
func (r *Record) Log() (string, error) {
	b, err := os.ReadFile(r.LogPath())
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s is not a valid record directory", ErrLogNotFound, r.dir)
	}
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// FigurePaths lists the figure artifacts saved during the run, in the order
// the filesystem returns them.
func (r *Record) FigurePaths() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list record directory %s: %w", r.dir, err)
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), figurePrefix) {
			paths = append(paths, filepath.Join(r.dir, e.Name()))
		}
	}

	return paths, nil
}

// SaveResult serializes value to the record's result artifact. A second call
// overwrites the first; a record carries at most one result.
func (r *Record) SaveResult(value any) error {
	if err := jsonutils.WriteFile(r.resultPath(), value); err != nil {
		return fmt.Errorf("failed to save result for record %s: %w", r.identifier, err)
	}

	return nil
}

// Result returns the serialized result artifact. The second return is false
// when the run produced no result, which is not an error: the run may have
// failed before completing, or never saved one.
func (r *Record) Result() (json.RawMessage, bool, error) {
	b, err := os.ReadFile(r.resultPath())
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return json.RawMessage(b), true, nil
}

// ResultAs decodes the record's result into T. The second return is false
// when the record has no result.
func ResultAs[T any](r *Record) (T, bool, error) {
	var zero T

	if _, err := os.Stat(r.resultPath()); os.IsNotExist(err) {
		return zero, false, nil
	}

	v, err := jsonutils.ReadFile[T](r.resultPath())
	if err != nil {
		return zero, false, err
	}

	return v, true, nil
}

// Show writes a human readable rendering of the record to w: a header, the
// info fields, the captured log and the saved figures.
func (r *Record) Show(w io.Writer) error {
	fmt.Fprintf(w, "%s Experiment Record: %s %s\n", strings.Repeat("=", 20), r.identifier, strings.Repeat("=", 20))

	info, err := r.Info()
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return err
	}
	for _, e := range info {
		fmt.Fprintf(w, "%s: %s\n", e.Key, e.Value)
	}

	fmt.Fprintf(w, "%s Log %s\n", strings.Repeat("-", 20), strings.Repeat("-", 20))
	log, err := r.Log()
	if err != nil && !errors.Is(err, ErrLogNotFound) {
		return err
	}
	fmt.Fprint(w, log)

	figs, err := r.FigurePaths()
	if err != nil {
		return err
	}
	if len(figs) > 0 {
		fmt.Fprintf(w, "%s Figures %s\n", strings.Repeat("-", 20), strings.Repeat("-", 20))
		for _, f := range figs {
			fmt.Fprintln(w, f)
		}
	}

	return nil
}

// Delete removes the backing directory tree.
func (r *Record) Delete() error {
	if err := os.RemoveAll(r.dir); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", r.identifier, err)
	}

	return nil
}

func encodeInfoValue(value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	return string(b), nil
}
