package cache

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	canonicaldate "github.com/ericselin/zastepstwa/pkg/canonical-date"
	"github.com/ericselin/zastepstwa/pkg/clock"
)

var now = time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T) DirCache {
	t.Helper()
	c := NewDirCache(t.TempDir(), 10*time.Minute, clock.Fake(now))
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}
	return c
}

func storeAged(t *testing.T, c DirCache, date canonicaldate.Date, age time.Duration) string {
	t.Helper()
	path, err := c.Store(date, []byte("pdf"))
	if err != nil {
		t.Fatal(err)
	}
	mtime := now.Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLookupAbsent(t *testing.T) {
	c := newTestCache(t)
	state, path, err := c.Lookup("15.03.2024")
	if err != nil || state != Absent || path != "" {
		t.Fatalf("Lookup is %s %q %v", state, path, err)
	}
}

func TestLookupFreshAndStale(t *testing.T) {
	c := newTestCache(t)
	for _, tc := range []struct {
		age  time.Duration
		want State
	}{
		{0, Fresh},
		{2 * time.Minute, Fresh},
		{5 * time.Minute, Fresh},
		{10*time.Minute - time.Second, Fresh},
		{10 * time.Minute, Stale},
		{15 * time.Minute, Stale},
		{20 * time.Minute, Stale},
	} {
		stored := storeAged(t, c, "01.01.2024", tc.age)
		state, path, err := c.Lookup("01.01.2024")
		if err != nil {
			t.Fatal(err)
		}
		if state != tc.want || path != stored {
			t.Fatalf("age %s: Lookup is %s %q, expected %s", tc.age, state, path, tc.want)
		}
	}
}

func TestStoreOverwrites(t *testing.T) {
	c := newTestCache(t)
	if _, err := c.Store("15.03.2024", []byte("first version")); err != nil {
		t.Fatal(err)
	}
	path, err := c.Store("15.03.2024", []byte("second"))
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(c.Dir(), "15.03.2024.pdf") {
		t.Fatalf("Stored at %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(content, []byte("second")) {
		t.Fatalf("Content is %q (%v)", content, err)
	}
	entries, _ := os.ReadDir(c.Dir())
	if len(entries) != 1 {
		t.Fatalf("Cache holds %d files", len(entries))
	}
}

func TestStoreCreateFailure(t *testing.T) {
	c := NewDirCache(filepath.Join(t.TempDir(), "missing"), time.Minute, nil)
	_, err := c.Store("15.03.2024", []byte("pdf"))
	var ioErr *IOError
	if !errors.As(err, &ioErr) || ioErr.Op != OpCreate {
		t.Fatalf("Error is %v", err)
	}
}

func TestEvict(t *testing.T) {
	c := newTestCache(t)
	path := storeAged(t, c, "01.01.2024", 20*time.Minute)
	if err := c.Evict(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("File still there: %v", err)
	}
	// evicting twice is fine
	if err := c.Evict(path); err != nil {
		t.Fatal(err)
	}
}

func TestEvictFailure(t *testing.T) {
	c := newTestCache(t)
	dir := filepath.Join(c.Dir(), "not-empty")
	if err := os.MkdirAll(filepath.Join(dir, "child"), 0755); err != nil {
		t.Fatal(err)
	}
	var ioErr *IOError
	if err := c.Evict(dir); !errors.As(err, &ioErr) || ioErr.Op != OpEvict {
		t.Fatalf("Error is %v", err)
	}
}

func TestOpen(t *testing.T) {
	c := newTestCache(t)
	path, _ := c.Store("15.03.2024", []byte("pdf bytes"))
	file, err := c.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	if content, _ := io.ReadAll(file); string(content) != "pdf bytes" {
		t.Fatalf("Content is %q", content)
	}

	_, err = c.Open(filepath.Join(c.Dir(), "nope.pdf"))
	var ioErr *IOError
	if !errors.As(err, &ioErr) || ioErr.Op != OpOpen || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Error is %v", err)
	}
}

func TestOpenFile(t *testing.T) {
	c := newTestCache(t)
	c.Store("10.10.2022", []byte("pdf"))

	file, err := c.OpenFile("10.10.2022.pdf")
	if err != nil {
		t.Fatal(err)
	}
	file.Close()

	if _, err := c.OpenFile("11.10.2022.pdf"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Error for missing file is %v", err)
	}
	for _, name := range []string{"", "../secret", "sub/file.pdf", "..", ".probe-1", `a\b`} {
		if _, err := c.OpenFile(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Error for %q is %v", name, err)
		}
	}
}

func TestInitCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "cached")
	if err := NewDirCache(dir, time.Minute, nil).Init(); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 0 {
		t.Fatalf("Directory has %d entries (%v)", len(entries), err)
	}
}

func TestInitFailsOnFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	os.WriteFile(file, nil, 0644)
	if err := NewDirCache(file, time.Minute, nil).Init(); err == nil {
		t.Fatal("Init succeeded on a regular file")
	}
}
