// Package storage is the persistence bridge between the event model and the
// calendar directory. Files are the authority; the sqlite cache mirrors them
// and is only trusted while a file's fingerprint (size + mtime) is unchanged.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"dayplan/internal/event"
	"dayplan/internal/ics"
	"dayplan/internal/storage/cache"
)

const calendarExt = ".ics"

// WriteError reports a failed file or cache write; the prior on-disk state
// stays authoritative.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %q: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ParseError reports one malformed calendar file skipped during load.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %q: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LoadReport is the outcome of a bulk load. Failed files do not abort the
// load; their prior cache entries are retained and returned as events.
type LoadReport struct {
	Events    []event.Event
	Parsed    int // files re-parsed from disk
	FromCache int // files served straight from the cache
	Failed    []*ParseError
}

// Err folds the parse failures into one batch summary, nil when clean.
func (r LoadReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return fmt.Errorf("%d calendar file(s) skipped: %w", len(r.Failed), errors.Join(errs...))
}

type flushJob struct {
	before *event.Event
	after  *event.Event
}

// Bridge owns the calendar directory and the cache store. Writes for a given
// path are serialized; different files proceed independently.
type Bridge struct {
	fs    afero.Fs
	dir   string
	cache *cache.Store

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	pending []flushJob
}

func New(fs afero.Fs, dir string, cacheStore *cache.Store) (*Bridge, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create calendar dir %q: %w", dir, err)
	}
	return &Bridge{
		fs:    fs,
		dir:   dir,
		cache: cacheStore,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// PathFor maps a calendar (group tag) to its file.
func (b *Bridge) PathFor(calendar string) string {
	return filepath.Join(b.dir, calendar+calendarExt)
}

func calendarName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), calendarExt)
}

// Load reconciles the directory against the cache: unchanged files are loaded
// from cache without parsing, changed or new files are re-parsed and the
// cache updated, vanished files get their records purged. One bad file never
// blocks the others.
func (b *Bridge) Load(ctx context.Context) (LoadReport, error) {
	var report LoadReport

	infos, err := afero.ReadDir(b.fs, b.dir)
	if err != nil {
		return report, fmt.Errorf("failed to read calendar dir %q: %w", b.dir, err)
	}

	onDisk := make(map[string]os.FileInfo)
	for _, fi := range infos {
		if fi.IsDir() || !strings.HasSuffix(fi.Name(), calendarExt) {
			continue
		}
		onDisk[filepath.Join(b.dir, fi.Name())] = fi
	}

	for path, fi := range onDisk {
		size, mtime, known, err := b.cache.Fingerprint(ctx, path)
		if err != nil {
			return report, err
		}
		if known && size == fi.Size() && mtime.Equal(fi.ModTime()) {
			recs, err := b.cache.ByPath(ctx, path)
			if err != nil {
				return report, err
			}
			for _, r := range recs {
				report.Events = append(report.Events, r.Event())
			}
			report.FromCache++
			log.Debugf("calendar %q unchanged, %d event(s) from cache", path, len(recs))
			continue
		}

		f, err := b.parseFile(path)
		if err != nil {
			perr := &ParseError{Path: path, Err: err}
			report.Failed = append(report.Failed, perr)
			log.Errorf("skipping calendar file: %v", perr)
			// keep serving whatever the cache knew about this file
			recs, cerr := b.cache.ByPath(ctx, path)
			if cerr != nil {
				return report, cerr
			}
			for _, r := range recs {
				report.Events = append(report.Events, r.Event())
			}
			continue
		}

		recs := make([]cache.Record, 0, len(f.Blocks))
		for _, blk := range f.Blocks {
			report.Events = append(report.Events, blk.Event)
			recs = append(recs, cache.FromEvent(path, blk.Event, fi.Size(), fi.ModTime()))
		}
		if err := b.cache.ReplacePath(ctx, path, recs); err != nil {
			return report, err
		}
		report.Parsed++
		log.Debugf("calendar %q re-parsed, %d event(s)", path, len(f.Blocks))
	}

	// purge records of files that disappeared
	cached, err := b.cache.Paths(ctx)
	if err != nil {
		return report, err
	}
	for _, path := range cached {
		if _, ok := onDisk[path]; ok {
			continue
		}
		log.Debugf("calendar %q removed, purging cache", path)
		if err := b.cache.PurgePath(ctx, path); err != nil {
			return report, err
		}
	}

	return report, nil
}

// Flush writes one applied change through to the file and cache. On failure
// the job is queued; RetryFailed replays it later. Implements
// history.Flusher.
func (b *Bridge) Flush(ctx context.Context, before, after *event.Event) error {
	job := flushJob{before: before, after: after}
	if err := b.apply(ctx, job); err != nil {
		b.queue(job)
		return err
	}
	return nil
}

// PendingWrites reports how many failed flushes await retry.
func (b *Bridge) PendingWrites() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// RetryFailed replays the queued flushes; whatever fails again is re-queued.
func (b *Bridge) RetryFailed(ctx context.Context) error {
	b.mu.Lock()
	jobs := b.pending
	b.pending = nil
	b.mu.Unlock()

	var errs []error
	for _, job := range jobs {
		if err := b.apply(ctx, job); err != nil {
			b.queue(job)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bridge) queue(job flushJob) {
	b.mu.Lock()
	b.pending = append(b.pending, job)
	b.mu.Unlock()
}

func (b *Bridge) apply(ctx context.Context, job flushJob) error {
	before, after := job.before, job.after

	if before != nil {
		moved := after == nil || after.Calendar != before.Calendar || after.ID != before.ID
		if moved {
			if err := b.removeFromFile(ctx, b.PathFor(before.Calendar), before.ID); err != nil {
				return err
			}
		}
	}
	if after != nil {
		if err := b.upsertToFile(ctx, b.PathFor(after.Calendar), *after); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) upsertToFile(ctx context.Context, path string, ev event.Event) error {
	lock := b.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	f, err := b.readOrEmpty(path)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	f.Upsert(ev)
	return b.writeAndIndex(ctx, path, f)
}

func (b *Bridge) removeFromFile(ctx context.Context, path string, id string) error {
	lock := b.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	exists, err := afero.Exists(b.fs, path)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if !exists {
		return b.cache.PurgePath(ctx, path)
	}

	f, err := b.parseFile(path)
	if err != nil {
		// never rewrite a file we cannot read back
		return &WriteError{Path: path, Err: err}
	}
	if !f.Remove(id) {
		log.Debugf("event %q already absent from %q", id, path)
	}
	if len(f.Blocks) == 0 {
		if err := b.fs.Remove(path); err != nil {
			return &WriteError{Path: path, Err: err}
		}
		return b.cache.PurgePath(ctx, path)
	}
	return b.writeAndIndex(ctx, path, f)
}

// writeAndIndex is the write-through step: the cache is only updated after
// the file write succeeded.
func (b *Bridge) writeAndIndex(ctx context.Context, path string, f ics.File) error {
	if err := afero.WriteFile(b.fs, path, []byte(f.Serialize()), 0o644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	fi, err := b.fs.Stat(path)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	recs := make([]cache.Record, 0, len(f.Blocks))
	for _, blk := range f.Blocks {
		recs = append(recs, cache.FromEvent(path, blk.Event, fi.Size(), fi.ModTime()))
	}
	if err := b.cache.ReplacePath(ctx, path, recs); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func (b *Bridge) parseFile(path string) (ics.File, error) {
	data, err := afero.ReadFile(b.fs, path)
	if err != nil {
		return ics.File{}, err
	}
	return ics.Parse(calendarName(path), bytes.NewReader(data))
}

func (b *Bridge) readOrEmpty(path string) (ics.File, error) {
	exists, err := afero.Exists(b.fs, path)
	if err != nil {
		return ics.File{}, err
	}
	if !exists {
		return ics.File{Calendar: calendarName(path)}, nil
	}
	return b.parseFile(path)
}

func (b *Bridge) pathLock(path string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		b.locks[path] = lock
	}
	return lock
}

// Touch updates the directory mtime so external watchers notice a change.
// Failing is acceptable.
func (b *Bridge) Touch() {
	now := time.Now()
	if err := b.fs.Chtimes(b.dir, now, now); err != nil {
		log.Warnf("failed to update directory mtime %q: %v", b.dir, err)
	}
}
