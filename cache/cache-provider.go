package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	canonicaldate "github.com/ericselin/zastepstwa/pkg/canonical-date"
	"github.com/ericselin/zastepstwa/pkg/clock"
)

// ArtifactCache is an interface for the local artifact store.
// It maps a canonical date to a single file and answers freshness queries.
// The file's modification time is the only metadata kept.
//
// Implementations must be thread-safe!
type ArtifactCache interface {
	// Lookup returns the state of the stored artifact for the date,
	// along with its path. The path is empty if the state is Absent.
	// A stale artifact is not removed by Lookup; the caller must Evict it.
	Lookup(date canonicaldate.Date) (State, string, error)
	// Evict removes the artifact at path.
	Evict(path string) error
	// Store creates or overwrites the artifact for the date.
	// It returns the path of the stored artifact.
	Store(date canonicaldate.Date, bytes []byte) (string, error)
	// Open opens a stored artifact for reading.
	Open(path string) (*os.File, error)
}

// State is the result of a cache lookup.
type State int

const (
	Absent State = iota
	Fresh
	Stale
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	}
	return "absent"
}

// Op is the filesystem operation an IOError happened in.
type Op string

const (
	OpStat   Op = "stat"
	OpEvict  Op = "evict"
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpOpen   Op = "open"
)

// IOError is a local filesystem failure.
type IOError struct {
	Op   Op
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

var ErrInvalidName = errors.New("invalid file name")

// DirCache stores one PDF per date in a flat directory.
// Concurrent Store calls for the same date are not serialized here,
// the last writer wins.
type DirCache struct {
	dir       string
	freshness time.Duration
	clock     clock.Clock
}

// NewDirCache returns a cache rooted at dir.
// Artifacts younger than freshness are fresh.
func NewDirCache(dir string, freshness time.Duration, c clock.Clock) DirCache {
	if c == nil {
		c = clock.Real()
	}
	return DirCache{
		dir:       dir,
		freshness: freshness,
		clock:     c,
	}
}

// Init creates the cache directory if needed and checks that it is writable.
func (d DirCache) Init() error {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("could not create cache directory %s: %w", d.dir, err)
	}
	probe, err := os.CreateTemp(d.dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("cache directory %s is not writable: %w", d.dir, err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

func (d DirCache) Dir() string {
	return d.dir
}

func (d DirCache) Freshness() time.Duration {
	return d.freshness
}

// Path returns the path of the artifact for date, whether it exists or not.
func (d DirCache) Path(date canonicaldate.Date) string {
	return filepath.Join(d.dir, date.Filename())
}

func (d DirCache) Lookup(date canonicaldate.Date) (State, string, error) {
	path := d.Path(date)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Absent, "", nil
	}
	if err != nil {
		return Absent, "", &IOError{Op: OpStat, Path: path, Err: err}
	}
	if d.clock.Now().Sub(info.ModTime()) < d.freshness {
		return Fresh, path, nil
	}
	return Stale, path, nil
}

// Evict treats an already missing file as evicted.
func (d DirCache) Evict(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &IOError{Op: OpEvict, Path: path, Err: err}
	}
	return nil
}

func (d DirCache) Store(date canonicaldate.Date, bytes []byte) (string, error) {
	path := d.Path(date)
	file, err := os.Create(path)
	if err != nil {
		return "", &IOError{Op: OpCreate, Path: path, Err: err}
	}
	if _, err := file.Write(bytes); err != nil {
		file.Close()
		return "", &IOError{Op: OpWrite, Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return "", &IOError{Op: OpWrite, Path: path, Err: err}
	}
	return path, nil
}

func (d DirCache) Open(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: OpOpen, Path: path, Err: err}
	}
	return file, nil
}

// OpenFile opens a file of the cache directory by its bare name.
// Names with path separators or leading dots are rejected with ErrInvalidName.
// A missing file yields an error matching fs.ErrNotExist.
func (d DirCache) OpenFile(name string) (*os.File, error) {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return d.Open(filepath.Join(d.dir, name))
}
