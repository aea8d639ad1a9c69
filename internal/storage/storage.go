// Package storage manages the flat directory of finalized audio tracks.
//
// Readers only ever see complete files: writers stage bytes in a hidden
// subdirectory and [Pending.Commit] renames the finished file into place.
// Concurrent writers of the same filename are serialized with a file lock,
// so two ingests racing on one title never interleave their bytes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
)

const (
	// StagingDir is the hidden subdirectory holding in-flight writes and lock files.
	StagingDir = ".staging"
	// TrackExt is the only extension the catalog lists.
	TrackExt = ".mp3"

	partSuffix = ".part"
	lockSuffix = ".lock"
	lockRetry  = 100 * time.Millisecond

	// MaxNameBytes leaves room in a 255-byte filename for the staged
	// "<name>.<random>.part" file, whose random part is at most 10 digits.
	MaxNameBytes = 255 - len(".4294967295"+partSuffix)
)

// Directory is the storage surface used by the catalog, streaming, upload and ingest paths.
type Directory interface {
	// List returns the names of finalized tracks.
	List(ctx context.Context) ([]string, error)
	// Open returns a read handle for a finalized track.
	Open(name string) (Handle, error)
	// Create starts a staged write that becomes visible only on Commit.
	Create(ctx context.Context, name string) (Pending, error)
}

// Handle is an open, finalized track.
type Handle interface {
	io.ReaderAt
	io.Closer
	Name() string
	Size() int64
	ModTime() time.Time
}

// Pending is a staged write.
//
// Exactly one of Commit or Abort takes effect; calling Abort after Commit is a no-op,
// so callers can defer Abort unconditionally.
type Pending interface {
	io.Writer
	Name() string
	Written() int64
	Commit() error
	Abort() error
}

// Local is a [Directory] backed by a directory on the local filesystem.
type Local struct {
	root    string
	staging string
	logger  *log.Logger
}

// NewLocal returns a Local rooted at dir. Call [Local.Init] before use.
func NewLocal(dir string, logger *log.Logger) *Local {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Local{
		root:    dir,
		staging: filepath.Join(dir, StagingDir),
		logger:  shared.WithLogger(logger, "component", "storage"),
	}
}

// Root returns the music directory path.
func (l *Local) Root() string { return l.root }

// Init creates the music and staging directories and removes leftovers from
// writes that never committed. Only one process may own a directory.
func (l *Local) Init() error {
	if err := os.MkdirAll(l.staging, 0755); err != nil {
		return fmt.Errorf("%w: create staging dir: %v", shared.ErrStorage, err)
	}

	entries, err := os.ReadDir(l.staging)
	if err != nil {
		return fmt.Errorf("%w: read staging dir: %v", shared.ErrStorage, err)
	}

	var swept int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, partSuffix) || strings.HasSuffix(name, lockSuffix)) {
			continue
		}
		if err := os.Remove(filepath.Join(l.staging, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("failed to remove stale staging file", "file", name, "error", err)
			continue
		}
		swept++
	}
	if swept > 0 {
		l.logger.Info("swept stale staging files", "count", swept)
	}
	return nil
}

// ValidName rejects names that could escape the music directory or collide with the staging area.
func ValidName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: track name is required", shared.ErrInvalidInput)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: track name %q contains a path separator", shared.ErrInvalidInput, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: track name %q is hidden", shared.ErrInvalidInput, name)
	case len(name) > MaxNameBytes:
		return fmt.Errorf("%w: track name is longer than %d bytes", shared.ErrInvalidInput, MaxNameBytes)
	}
	return nil
}

// IsTrack reports whether name carries the catalog extension, ignoring case.
func IsTrack(name string) bool {
	return strings.EqualFold(filepath.Ext(name), TrackExt)
}

// List returns finalized .mp3 files in directory order. An empty directory yields an empty, non-nil slice.
func (l *Local) List(ctx context.Context) ([]string, error) {
	entries, err := l.entries(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

// Tracks is List with size and modification time for each track.
func (l *Local) Tracks(ctx context.Context) ([]models.Track, error) {
	entries, err := l.entries(ctx)
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		tracks = append(tracks, models.Track{Name: entry.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return tracks, nil
}

func (l *Local) entries(ctx context.Context) ([]fs.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("%w: read music dir: %v", shared.ErrStorage, err)
	}

	tracks := make([]fs.DirEntry, 0, len(all))
	for _, entry := range all {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") || !IsTrack(entry.Name()) {
			continue
		}
		tracks = append(tracks, entry)
	}
	return tracks, nil
}

// Open returns a handle for name, stat'ed at open time.
func (l *Local) Open(name string) (Handle, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(l.root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", shared.ErrStorage, name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", shared.ErrStorage, name, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, name)
	}

	return &handle{File: f, info: info}, nil
}

type handle struct {
	*os.File
	info fs.FileInfo
}

func (h *handle) Name() string       { return h.info.Name() }
func (h *handle) Size() int64        { return h.info.Size() }
func (h *handle) ModTime() time.Time { return h.info.ModTime() }

// Create stages a new write for name, waiting on the per-name lock until ctx is done.
func (l *Local) Create(ctx context.Context, name string) (Pending, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(l.staging, name+lockSuffix))
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrTrackLocked, name, err)
		}
		return nil, fmt.Errorf("%w: lock %s: %v", shared.ErrStorage, name, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackLocked, name)
	}

	tmp, err := os.CreateTemp(l.staging, name+".*"+partSuffix)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("%w: create staging file: %v", shared.ErrStorage, err)
	}

	l.logger.Debug("staged write", "track", name, "tmp", filepath.Base(tmp.Name()))
	return &pending{
		name:   name,
		final:  filepath.Join(l.root, name),
		tmp:    tmp,
		lock:   lock,
		logger: l.logger,
	}, nil
}

type pending struct {
	name    string
	final   string
	tmp     *os.File
	lock    *flock.Flock
	written int64
	done    bool
	logger  *log.Logger
}

func (p *pending) Name() string   { return p.name }
func (p *pending) Written() int64 { return p.written }

func (p *pending) Write(b []byte) (int, error) {
	if p.done {
		return 0, fmt.Errorf("%w: write to finished track %s", shared.ErrStorage, p.name)
	}
	n, err := p.tmp.Write(b)
	p.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	return n, nil
}

// Commit flushes the staged file and renames it over the final path.
func (p *pending) Commit() error {
	if p.done {
		return fmt.Errorf("%w: track %s already finished", shared.ErrStorage, p.name)
	}

	if err := p.tmp.Sync(); err != nil {
		p.Abort()
		return fmt.Errorf("%w: sync %s: %v", shared.ErrStorage, p.name, err)
	}
	if err := p.tmp.Close(); err != nil {
		p.Abort()
		return fmt.Errorf("%w: close %s: %v", shared.ErrStorage, p.name, err)
	}
	if err := os.Rename(p.tmp.Name(), p.final); err != nil {
		p.Abort()
		return fmt.Errorf("%w: publish %s: %v", shared.ErrStorage, p.name, err)
	}

	p.finish()
	p.logger.Debug("committed track", "track", p.name, "size", humanize.Bytes(uint64(p.written)))
	return nil
}

// Abort discards the staged file.
func (p *pending) Abort() error {
	if p.done {
		return nil
	}

	p.tmp.Close()
	err := os.Remove(p.tmp.Name())
	p.finish()

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove staged %s: %v", shared.ErrStorage, p.name, err)
	}
	return nil
}

func (p *pending) finish() {
	p.done = true
	if err := p.lock.Unlock(); err != nil {
		p.logger.Warn("failed to release track lock", "track", p.name, "error", err)
	}
}
