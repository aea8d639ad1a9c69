package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/jukebox/internal/shared"
	tu "github.com/desertthunder/jukebox/internal/testing"
)

func newTestDir(t *testing.T) *Local {
	t.Helper()
	dir := NewLocal(t.TempDir(), shared.NewLogger(io.Discard))
	if err := dir.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return dir
}

func writeTrack(t *testing.T, dir *Local, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir.Root(), name), data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestLocalList(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		names, err := newTestDir(t).List(context.Background())
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if names == nil || len(names) != 0 {
			t.Errorf("List() = %#v, want empty non-nil slice", names)
		}
	})

	t.Run("filters to mp3 case-insensitively", func(t *testing.T) {
		dir := newTestDir(t)
		for _, name := range []string{"a.mp3", "B.MP3", "c.Mp3", "notes.txt", "cover.jpg", "mp3", ".hidden.mp3"} {
			writeTrack(t, dir, name, []byte("x"))
		}
		if err := os.Mkdir(filepath.Join(dir.Root(), "folder.mp3"), 0755); err != nil {
			t.Fatal(err)
		}

		names, err := dir.List(context.Background())
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		sort.Strings(names)

		want := []string{"B.MP3", "a.mp3", "c.Mp3"}
		if len(names) != len(want) {
			t.Fatalf("List() = %v, want %v", names, want)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Errorf("List()[%d] = %s, want %s", i, names[i], want[i])
			}
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		dir := NewLocal(filepath.Join(t.TempDir(), "nope"), shared.NewLogger(io.Discard))
		if _, err := dir.List(context.Background()); !errors.Is(err, shared.ErrStorage) {
			t.Errorf("List() error = %v, want ErrStorage", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := newTestDir(t).List(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("List() error = %v, want context.Canceled", err)
		}
	})

	t.Run("Tracks includes size", func(t *testing.T) {
		dir := newTestDir(t)
		writeTrack(t, dir, "song.mp3", make([]byte, 2048))

		tracks, err := dir.Tracks(context.Background())
		if err != nil {
			t.Fatalf("Tracks() error = %v", err)
		}
		if len(tracks) != 1 || tracks[0].Name != "song.mp3" || tracks[0].Size != 2048 {
			t.Errorf("Tracks() = %+v", tracks)
		}
	})
}

func TestLocalOpen(t *testing.T) {
	t.Run("existing track", func(t *testing.T) {
		dir := newTestDir(t)
		writeTrack(t, dir, "song.mp3", []byte("0123456789"))

		h, err := dir.Open("song.mp3")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer h.Close()

		if h.Size() != 10 {
			t.Errorf("Size() = %d, want 10", h.Size())
		}
		buf := make([]byte, 3)
		if _, err := h.ReadAt(buf, 4); err != nil || string(buf) != "456" {
			t.Errorf("ReadAt() = %q, %v", buf, err)
		}
	})

	t.Run("missing track", func(t *testing.T) {
		_, err := newTestDir(t).Open("ghost.mp3")
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("Open() error = %v, want ErrTrackNotFound", err)
		}
	})

	t.Run("directory is not a track", func(t *testing.T) {
		dir := newTestDir(t)
		if err := os.Mkdir(filepath.Join(dir.Root(), "album.mp3"), 0755); err != nil {
			t.Fatal(err)
		}
		if _, err := dir.Open("album.mp3"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("Open() error = %v, want ErrTrackNotFound", err)
		}
	})

	t.Run("rejects traversal", func(t *testing.T) {
		dir := newTestDir(t)
		for _, name := range []string{"", "..", ".", "../etc/passwd", "a/b.mp3", `a\b.mp3`, ".staging", "nul\x00.mp3"} {
			if _, err := dir.Open(name); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("Open(%q) error = %v, want ErrInvalidInput", name, err)
			}
		}
	})
}

func TestLocalCreate(t *testing.T) {
	t.Run("commit publishes", func(t *testing.T) {
		dir := newTestDir(t)
		ctx := context.Background()

		p, err := dir.Create(ctx, "new.mp3")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := p.Write([]byte("hello ")); err != nil {
			t.Fatal(err)
		}

		names, _ := dir.List(ctx)
		if len(names) != 0 {
			t.Errorf("staged write visible before commit: %v", names)
		}
		if _, err := dir.Open("new.mp3"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("Open() before commit error = %v, want ErrTrackNotFound", err)
		}

		if _, err := p.Write([]byte("world")); err != nil {
			t.Fatal(err)
		}
		if p.Written() != 11 {
			t.Errorf("Written() = %d, want 11", p.Written())
		}
		if err := p.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}

		data := tu.MustReadFile(t, filepath.Join(dir.Root(), "new.mp3"))
		if string(data) != "hello world" {
			t.Errorf("committed content = %q", data)
		}
		if err := p.Abort(); err != nil {
			t.Errorf("Abort() after Commit() should be a no-op, got %v", err)
		}
		if _, err := p.Write([]byte("late")); err == nil {
			t.Error("Write() after Commit() should fail")
		}
		assertStagingEmpty(t, dir)
	})

	t.Run("abort discards", func(t *testing.T) {
		dir := newTestDir(t)
		p, err := dir.Create(context.Background(), "gone.mp3")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		p.Write([]byte("partial"))

		if err := p.Abort(); err != nil {
			t.Fatalf("Abort() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir.Root(), "gone.mp3")); !os.IsNotExist(err) {
			t.Errorf("aborted track should not exist, stat err = %v", err)
		}
		assertStagingEmpty(t, dir)
	})

	t.Run("commit replaces existing", func(t *testing.T) {
		dir := newTestDir(t)
		writeTrack(t, dir, "same.mp3", []byte("old"))

		old, err := dir.Open("same.mp3")
		if err != nil {
			t.Fatal(err)
		}
		defer old.Close()

		p, _ := dir.Create(context.Background(), "same.mp3")
		p.Write([]byte("brand new"))
		if err := p.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}

		buf := make([]byte, 3)
		if _, err := old.ReadAt(buf, 0); err != nil || string(buf) != "old" {
			t.Errorf("open reader should keep old content, got %q (%v)", buf, err)
		}
		if got := tu.MustReadFile(t, filepath.Join(dir.Root(), "same.mp3")); string(got) != "brand new" {
			t.Errorf("content = %q", got)
		}
	})

	t.Run("same name writers are serialized", func(t *testing.T) {
		dir := newTestDir(t)

		first, err := dir.Create(context.Background(), "race.mp3")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		defer cancel()
		if _, err := dir.Create(ctx, "race.mp3"); !errors.Is(err, shared.ErrTrackLocked) {
			t.Errorf("second Create() error = %v, want ErrTrackLocked", err)
		}

		if err := first.Abort(); err != nil {
			t.Fatal(err)
		}

		second, err := dir.Create(context.Background(), "race.mp3")
		if err != nil {
			t.Fatalf("Create() after release error = %v", err)
		}
		second.Abort()
	})

	t.Run("invalid name", func(t *testing.T) {
		if _, err := newTestDir(t).Create(context.Background(), "../x.mp3"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("Create() error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("name too long for staging", func(t *testing.T) {
		name := strings.Repeat("a", 247) + TrackExt
		_, err := newTestDir(t).Create(context.Background(), name)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("Create() error = %v, want ErrInvalidInput", err)
		}
		if errors.Is(err, shared.ErrTrackLocked) {
			t.Error("a long name is not a lock conflict")
		}
	})

	t.Run("longest allowed name commits", func(t *testing.T) {
		dir := newTestDir(t)
		name := strings.Repeat("b", MaxNameBytes-len(TrackExt)) + TrackExt

		pending, err := dir.Create(context.Background(), name)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := pending.Write([]byte("long")); err != nil {
			t.Fatal(err)
		}
		if err := pending.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(dir.Root(), name))
	})

	t.Run("lock failure is a storage error", func(t *testing.T) {
		dir := newTestDir(t)
		if err := os.RemoveAll(filepath.Join(dir.Root(), StagingDir)); err != nil {
			t.Fatal(err)
		}

		_, err := dir.Create(context.Background(), "gone.mp3")
		if !errors.Is(err, shared.ErrStorage) {
			t.Errorf("Create() error = %v, want ErrStorage", err)
		}
		if errors.Is(err, shared.ErrTrackLocked) {
			t.Error("a missing staging dir is not a lock conflict")
		}
	})
}

func TestValidName(t *testing.T) {
	tc := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "song.mp3", false},
		{"at limit", strings.Repeat("x", MaxNameBytes), false},
		{"over limit", strings.Repeat("x", MaxNameBytes+1), true},
		{"255 bytes", strings.Repeat("x", 251) + TrackExt, true},
		{"empty", "", true},
		{"separator", "a/b.mp3", true},
		{"hidden", ".staging", true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidName() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("ValidName() error should wrap ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestLocalInit(t *testing.T) {
	root := t.TempDir()
	staging := filepath.Join(root, StagingDir)
	if err := os.MkdirAll(staging, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.mp3.123.part", "a.mp3.lock", "keep.txt"} {
		if err := os.WriteFile(filepath.Join(staging, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := NewLocal(root, shared.NewLogger(io.Discard)).Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	entries, _ := os.ReadDir(staging)
	if len(entries) != 1 || entries[0].Name() != "keep.txt" {
		t.Errorf("staging after Init() = %v", entries)
	}
}

func assertStagingEmpty(t *testing.T, dir *Local) {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(dir.Root(), StagingDir))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == partSuffix {
			t.Errorf("leftover staged file %s", e.Name())
		}
	}
}
