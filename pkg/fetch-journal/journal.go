// Package journal keeps a history of upstream fetch outcomes per date.
// It lets the resolver notice when the published PDF for a day changes.
package journal

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/zeebo/blake3"
)

// Outcome of a single upstream fetch.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeNotFound  Outcome = "not-found"
	OutcomeStatus    Outcome = "status"
	OutcomeTransport Outcome = "transport"
)

// Entry is one recorded fetch.
type Entry struct {
	Date      string
	FetchedAt time.Time
	Outcome   Outcome
	// Status is the upstream HTTP status, zero for transport failures.
	Status int
	Size   int
	// Digest is the hex BLAKE3 digest of the body, set for successes only.
	Digest string
}

// Digest returns the hex BLAKE3 digest of b.
func Digest(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Journal records fetches.
//
// Implementations must be thread-safe!
type Journal interface {
	// Record appends an entry.
	Record(ctx context.Context, entry Entry) error
	// LastSuccess returns the most recent successful fetch for the date.
	// The boolean is false if there is none.
	LastSuccess(ctx context.Context, date string) (Entry, bool, error)
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

type MemJournal struct {
	mutex   *sync.RWMutex
	entries []Entry
}

func NewMemJournal() *MemJournal {
	return &MemJournal{
		mutex: &sync.RWMutex{},
	}
}

func (m *MemJournal) Record(_ context.Context, entry Entry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemJournal) LastSuccess(_ context.Context, date string) (Entry, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if e := m.entries[i]; e.Date == date && e.Outcome == OutcomeSuccess {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (m *MemJournal) Recent(_ context.Context, limit int) ([]Entry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entries := make([]Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, m.entries[i])
	}
	return entries, nil
}

func (m *MemJournal) Close() error {
	return nil
}

type SQLiteJournal struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteJournal opens (and creates if needed) the journal database.
// Use "file::memory:?cache=shared" for an in-memory database.
func NewSQLiteJournal(filename string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{
		"CREATE TABLE IF NOT EXISTS fetches (date TEXT, fetched_at INTEGER, outcome TEXT, status INTEGER, size INTEGER, digest TEXT)",
		"CREATE INDEX IF NOT EXISTS date_idx ON fetches (date, fetched_at)",
		"PRAGMA journal_mode=WAL",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &SQLiteJournal{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s *SQLiteJournal) Record(ctx context.Context, entry Entry) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO fetches (date, fetched_at, outcome, status, size, digest) VALUES (?, ?, ?, ?, ?, ?)",
		entry.Date, entry.FetchedAt.UnixNano(), string(entry.Outcome), entry.Status, entry.Size, entry.Digest)
	return err
}

func (s *SQLiteJournal) LastSuccess(ctx context.Context, date string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT date, fetched_at, outcome, status, size, digest FROM fetches WHERE date = ? AND outcome = ? ORDER BY fetched_at DESC, rowid DESC LIMIT 1",
		date, string(OutcomeSuccess))
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

func (s *SQLiteJournal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	entries := make([]Entry, 0)
	rows, err := s.db.QueryContext(ctx,
		"SELECT date, fetched_at, outcome, status, size, digest FROM fetches ORDER BY fetched_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return entries, err
	}
	defer rows.Close()
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		entry     Entry
		fetchedAt int64
		outcome   string
	)
	if err := row.Scan(&entry.Date, &fetchedAt, &outcome, &entry.Status, &entry.Size, &entry.Digest); err != nil {
		return entry, err
	}
	entry.FetchedAt = time.Unix(0, fetchedAt)
	entry.Outcome = Outcome(outcome)
	return entry, nil
}
