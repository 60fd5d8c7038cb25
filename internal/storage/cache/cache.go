// Package cache is the embedded query store mirroring the calendar files.
// Records are keyed by (file path, event id) and carry the file fingerprint
// (size + mtime) used to decide whether a file must be re-parsed. The cache
// is derived data, owned by the persistence bridge, rebuilt lazily and never
// hand-edited.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"dayplan/internal/event"
)

var ErrNotFoundRecord = errors.New("cache record not found")

const schema = `
CREATE TABLE IF NOT EXISTS records (
	path          TEXT NOT NULL,
	event_id      TEXT NOT NULL,
	calendar      TEXT NOT NULL,
	title         TEXT NOT NULL,
	notes         TEXT NOT NULL,
	start_nano    INTEGER NOT NULL,
	end_nano      INTEGER NOT NULL,
	done          INTEGER NOT NULL,
	created_nano  INTEGER NOT NULL,
	modified_nano INTEGER NOT NULL,
	file_size     INTEGER NOT NULL,
	file_mtime    INTEGER NOT NULL,
	PRIMARY KEY (path, event_id)
);
CREATE INDEX IF NOT EXISTS records_event_id ON records (event_id);
CREATE INDEX IF NOT EXISTS records_start ON records (start_nano);
`

// Record is the denormalized projection of one event in one file.
type Record struct {
	Path         string `db:"path"`
	EventID      string `db:"event_id"`
	Calendar     string `db:"calendar"`
	Title        string `db:"title"`
	Notes        string `db:"notes"`
	StartNano    int64  `db:"start_nano"`
	EndNano      int64  `db:"end_nano"`
	Done         bool   `db:"done"`
	CreatedNano  int64  `db:"created_nano"`
	ModifiedNano int64  `db:"modified_nano"`
	FileSize     int64  `db:"file_size"`
	FileMtime    int64  `db:"file_mtime"`
}

// FromEvent projects an event into a record bound to a file fingerprint.
func FromEvent(path string, e event.Event, size int64, mtime time.Time) Record {
	return Record{
		Path:         path,
		EventID:      e.ID,
		Calendar:     e.Calendar,
		Title:        e.Title,
		Notes:        e.Notes,
		StartNano:    e.Start.UnixNano(),
		EndNano:      e.End.UnixNano(),
		Done:         e.Done,
		CreatedNano:  nanoOrZero(e.CreatedAt),
		ModifiedNano: nanoOrZero(e.ModifiedAt),
		FileSize:     size,
		FileMtime:    mtime.UnixNano(),
	}
}

// Event reconstructs the event; instants come back in UTC, which is the
// reference zone the index works in anyway.
func (r Record) Event() event.Event {
	return event.Event{
		ID:         r.EventID,
		Calendar:   r.Calendar,
		Title:      r.Title,
		Notes:      r.Notes,
		Start:      time.Unix(0, r.StartNano).UTC(),
		End:        time.Unix(0, r.EndNano).UTC(),
		Done:       r.Done,
		CreatedAt:  timeOrZero(r.CreatedNano),
		ModifiedAt: timeOrZero(r.ModifiedNano),
	}
}

func nanoOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func timeOrZero(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the cache database at the given path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %q: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to prepare cache %q: %w", path, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ReplacePath atomically replaces all records of one file.
func (s *Store) ReplacePath(ctx context.Context, path string, recs []Record) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE path=?", path); err != nil {
		return err
	}
	for _, r := range recs {
		_, err := tx.NamedExecContext(ctx,
			"INSERT INTO records(path, event_id, calendar, title, notes, start_nano, end_nano, done, "+
				"created_nano, modified_nano, file_size, file_mtime) "+
				"VALUES(:path, :event_id, :calendar, :title, :notes, :start_nano, :end_nano, :done, "+
				":created_nano, :modified_nano, :file_size, :file_mtime)",
			r)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ByPath returns all records of one file.
func (s *Store) ByPath(ctx context.Context, path string) ([]Record, error) {
	var recs []Record
	err := s.db.SelectContext(ctx, &recs,
		"SELECT * FROM records WHERE path=? ORDER BY event_id", path)
	return recs, err
}

// ByEventID looks one event up regardless of file.
func (s *Store) ByEventID(ctx context.Context, id string) (Record, error) {
	var r Record
	err := s.db.GetContext(ctx, &r, "SELECT * FROM records WHERE event_id=? LIMIT 1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("event %q: %w", id, ErrNotFoundRecord)
	}
	return r, err
}

// Paths returns every distinct file path known to the cache; used for the
// startup reconciliation pass.
func (s *Store) Paths(ctx context.Context) ([]string, error) {
	var paths []string
	err := s.db.SelectContext(ctx, &paths, "SELECT DISTINCT path FROM records ORDER BY path")
	return paths, err
}

// All iterates the whole table.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	var recs []Record
	err := s.db.SelectContext(ctx, &recs, "SELECT * FROM records ORDER BY path, event_id")
	return recs, err
}

// PurgePath drops all records of a file that disappeared.
func (s *Store) PurgePath(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE path=?", path)
	return err
}

// Fingerprint returns the stored (size, mtime) for a path. ok is false when
// the path is unknown to the cache.
func (s *Store) Fingerprint(ctx context.Context, path string) (size int64, mtime time.Time, ok bool, err error) {
	var r Record
	err = s.db.GetContext(ctx, &r,
		"SELECT * FROM records WHERE path=? LIMIT 1", path)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, err
	}
	return r.FileSize, time.Unix(0, r.FileMtime), true, nil
}
