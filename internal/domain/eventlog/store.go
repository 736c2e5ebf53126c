package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/mimic/pkg/metrics"
)

const (
	filePrefix = "recording_"
	fileSuffix = ".json"
	// Start time first so lexicographic order is chronological.
	fileTimeLayout = "20060102T150405.000Z"
)

// FileName returns the artifact name for l.
func FileName(l *Log) string {
	return filePrefix + l.Start().UTC().Format(fileTimeLayout) + "_" + l.ID().String() + fileSuffix
}

// Persisted identifies a recording artifact on disk.
type Persisted struct {
	Path      string
	SessionID uuid.UUID
	Start     time.Time
}

func parseFileName(name string) (time.Time, uuid.UUID, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, uuid.Nil, false
	}
	stem := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	ts, idPart, ok := strings.Cut(stem, "_")
	if !ok {
		return time.Time{}, uuid.Nil, false
	}
	start, err := time.Parse(fileTimeLayout, ts)
	if err != nil {
		return time.Time{}, uuid.Nil, false
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return time.Time{}, uuid.Nil, false
	}
	return start, id, true
}

// ListPersisted returns the recordings in dir, newest first. A missing
// directory yields an empty list. Files not matching the naming scheme are
// ignored.
func ListPersisted(dir string) ([]Persisted, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list recordings: %w", err)
	}

	out := make([]Persisted, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		start, id, ok := parseFileName(e.Name())
		if !ok {
			continue
		}
		out = append(out, Persisted{Path: filepath.Join(dir, e.Name()), SessionID: id, Start: start})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.After(out[j].Start)
		}
		return out[i].Path > out[j].Path
	})
	return out, nil
}

// Dir persists recordings as one JSON file each.
type Dir struct {
	path string
}

// NewDir returns a store rooted at path. The directory is created on first save.
func NewDir(path string) *Dir {
	return &Dir{path: path}
}

// Path returns the store's root directory.
func (d *Dir) Path() string { return d.path }

// Save writes l atomically and returns the artifact path.
func (d *Dir) Save(l *Log) (string, error) {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return "", fmt.Errorf("save recording: %w", err)
	}
	final := filepath.Join(d.path, FileName(l))

	tmp, err := os.CreateTemp(d.path, ".recording-*.tmp")
	if err != nil {
		return "", fmt.Errorf("save recording: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if err := Encode(tmp, l); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("save recording: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("save recording: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("save recording: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		cleanup()
		return "", fmt.Errorf("save recording: %w", err)
	}

	metrics.RecordRecordingSaved()
	return final, nil
}

// Load reads the recording at path.
func (d *Dir) Load(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("load recording: %w", err)
	}
	defer func() { _ = f.Close() }()

	l, err := Decode(f)
	if err != nil {
		metrics.RecordDecodeError()
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	metrics.RecordRecordingLoaded()
	return l, nil
}

// List returns the persisted recordings, newest first.
func (d *Dir) List() ([]Persisted, error) {
	return ListPersisted(d.path)
}

// Find locates the artifact for a session id.
func (d *Dir) Find(id uuid.UUID) (Persisted, error) {
	all, err := d.List()
	if err != nil {
		return Persisted{}, err
	}
	for _, p := range all {
		if p.SessionID == id {
			return p, nil
		}
	}
	return Persisted{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}
