package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
	tu "github.com/desertthunder/jukebox/internal/testing"
)

// testWorkspace writes a config pointing the music directory and database into a temp dir.
func testWorkspace(t *testing.T, edit func(*shared.Config)) (configPath string, config *shared.Config) {
	t.Helper()
	dir := t.TempDir()

	config = shared.DefaultConfig()
	config.Storage.MusicDir = filepath.Join(dir, "music")
	config.Database.Path = filepath.Join(dir, "jukebox.db")
	config.Log.Level = "error"
	if edit != nil {
		edit(config)
	}

	configPath = filepath.Join(dir, "config.toml")
	if err := shared.SaveConfig(configPath, config); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}
	return configPath, config
}

func runApp(t *testing.T, opts RunnerOpts, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	opts.Output = &out
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	err := NewRunner(opts).App().Run(context.Background(), append([]string{"jukebox"}, args...))
	return out.String(), err
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			provider := &tu.MockProvider{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Provider:   provider,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.newProvider() != provider {
				t.Error("expected provider override to be used")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient == nil {
				t.Error("expected default httpClient")
			}
			if runner.configPath != defaultConfigPath {
				t.Errorf("expected configPath %s, got %s", defaultConfigPath, runner.configPath)
			}
			if runner.newProvider().Name() == "" {
				t.Error("expected provider built from config")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writePlain("hello %s", "world"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "hello world" {
			t.Errorf("expected 'hello world', got %q", output.String())
		}

		failing := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		if err := failing.writePlain("test"); err == nil {
			t.Error("expected error from failing writer")
		}
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"serve", "ingest", "library", "setup"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("explicit config that does not exist", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "nope.toml")
		_, err := runApp(t, RunnerOpts{}, "--config", missing, "library", "songs")
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("config values reach commands", func(t *testing.T) {
		configPath, config := testWorkspace(t, nil)

		if _, err := runApp(t, RunnerOpts{}, "--config", configPath, "library", "songs"); err != nil {
			t.Fatalf("library songs error = %v", err)
		}
		tu.AssertDirExists(t, config.Storage.MusicDir)
	})
}

func TestLibrary(t *testing.T) {
	configPath, config := testWorkspace(t, nil)
	if err := os.MkdirAll(config.Storage.MusicDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range map[string]string{"b.mp3": "bbbb", "a.mp3": "aa", "notes.txt": "x"} {
		if err := os.WriteFile(filepath.Join(config.Storage.MusicDir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("songs as csv", func(t *testing.T) {
		out, err := runApp(t, RunnerOpts{}, "--config", configPath, "library", "songs", "--format", "csv")
		if err != nil {
			t.Fatalf("error = %v", err)
		}

		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and two rows, got %q", out)
		}
		if !strings.HasPrefix(lines[1], "a.mp3,2,") || !strings.HasPrefix(lines[2], "b.mp3,4,") {
			t.Errorf("unexpected rows %q", lines[1:])
		}
		if strings.Contains(out, "notes.txt") {
			t.Error("non-track files should not be listed")
		}
	})

	t.Run("songs as json", func(t *testing.T) {
		out, err := runApp(t, RunnerOpts{}, "--config", configPath, "library", "songs", "-f", "json")
		if err != nil {
			t.Fatalf("error = %v", err)
		}

		var tracks []models.Track
		if err := json.Unmarshal([]byte(out), &tracks); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, out)
		}
		if len(tracks) != 2 || tracks[0].Name != "a.mp3" || tracks[0].Size != 2 {
			t.Errorf("unexpected tracks %+v", tracks)
		}
	})

	t.Run("songs to file", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "songs.csv")
		out, err := runApp(t, RunnerOpts{}, "--config", configPath, "library", "songs", "-f", "csv", "-o", dest)
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		if out != "" {
			t.Errorf("expected nothing on stdout, got %q", out)
		}
		if !strings.Contains(tu.MustReadFile(t, dest), "a.mp3") {
			t.Error("expected listing in output file")
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := runApp(t, RunnerOpts{}, "--config", configPath, "library", "songs", "-f", "xml")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("jobs with unknown status", func(t *testing.T) {
		_, err := runApp(t, RunnerOpts{}, "--config", configPath, "library", "jobs", "--status", "paused")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("jobs when empty", func(t *testing.T) {
		out, err := runApp(t, RunnerOpts{}, "--config", configPath, "library", "jobs", "-f", "json")
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		if strings.TrimSpace(out) != "[]" {
			t.Errorf("expected empty JSON array, got %q", out)
		}
	})
}

func TestIngest(t *testing.T) {
	const source = "https://www.youtube.com/watch?v=abc123"

	t.Run("downloads into the music directory", func(t *testing.T) {
		configPath, config := testWorkspace(t, nil)
		provider := &tu.MockProvider{
			Metadata: &models.SourceMetadata{ID: "abc123", Title: "Artist - Song"},
			Audio:    bytes.Repeat([]byte("a"), 2048),
		}

		out, err := runApp(t, RunnerOpts{Provider: provider}, "--config", configPath, "ingest", source)
		if err != nil {
			t.Fatalf("ingest error = %v", err)
		}

		path := filepath.Join(config.Storage.MusicDir, "Artist - Song.mp3")
		if got := tu.MustReadFile(t, path); len(got) != 2048 {
			t.Errorf("stored %d bytes, want 2048", len(got))
		}
		if !strings.Contains(out, "Artist - Song.mp3") || !strings.Contains(out, "2.0 KiB") {
			t.Errorf("expected summary in output, got %q", out)
		}

		listed, err := runApp(t, RunnerOpts{}, "--config", configPath, "library", "jobs", "-f", "csv", "--status", "completed")
		if err != nil {
			t.Fatalf("library jobs error = %v", err)
		}
		if !strings.Contains(listed, "completed") || !strings.Contains(listed, "Artist - Song.mp3") {
			t.Errorf("expected completed job in listing, got %q", listed)
		}
	})

	t.Run("json output", func(t *testing.T) {
		configPath, _ := testWorkspace(t, nil)
		provider := &tu.MockProvider{
			Metadata: &models.SourceMetadata{ID: "abc123", Title: "Song"},
			Audio:    []byte("audio"),
		}

		out, err := runApp(t, RunnerOpts{Provider: provider}, "--config", configPath, "ingest", "--json", source)
		if err != nil {
			t.Fatalf("ingest error = %v", err)
		}

		start := strings.Index(out, "{")
		if start < 0 {
			t.Fatalf("expected JSON job in output, got %q", out)
		}
		var job map[string]any
		if err := json.Unmarshal([]byte(out[start:]), &job); err != nil {
			t.Fatalf("job is not JSON: %v", err)
		}
		if job["status"] != "completed" || job["filename"] != "Song.mp3" {
			t.Errorf("unexpected job %v", job)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		configPath, _ := testWorkspace(t, nil)
		_, err := runApp(t, RunnerOpts{Provider: &tu.MockProvider{}}, "--config", configPath, "ingest")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("metadata failure", func(t *testing.T) {
		configPath, config := testWorkspace(t, nil)
		provider := &tu.MockProvider{MetadataErr: errors.New("private video")}

		_, err := runApp(t, RunnerOpts{Provider: provider}, "--config", configPath, "ingest", source)
		if !errors.Is(err, shared.ErrMetadataFetch) {
			t.Errorf("expected ErrMetadataFetch, got %v", err)
		}

		entries, _ := os.ReadDir(config.Storage.MusicDir)
		for _, e := range entries {
			if !e.IsDir() {
				t.Errorf("unexpected file %s after failed ingest", e.Name())
			}
		}
	})
}

func TestSetup(t *testing.T) {
	t.Run("database creates config and schema", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.toml")
		dbPath := filepath.Join(dir, "fresh.db")
		t.Setenv("DATABASE_PATH", dbPath)

		if _, err := runApp(t, RunnerOpts{}, "--config", configPath, "setup", "database"); err != nil {
			t.Fatalf("setup database error = %v", err)
		}
		tu.AssertFileExists(t, configPath)
		tu.AssertFileExists(t, dbPath)

		if _, err := runApp(t, RunnerOpts{}, "--config", configPath, "setup", "database"); err != nil {
			t.Errorf("second run should be a no-op, got %v", err)
		}
	})

	t.Run("youtube saves browser identity", func(t *testing.T) {
		configPath, _ := testWorkspace(t, nil)
		curl := `curl 'https://www.youtube.com/watch?v=abc' -H 'User-Agent: TestBrowser/2.0' -H 'Accept-Language: de-DE' -b 'SID=abc'`

		out, err := runApp(t, RunnerOpts{}, "--config", configPath, "setup", "youtube", "--curl", curl)
		if err != nil {
			t.Fatalf("setup youtube error = %v", err)
		}
		if !strings.Contains(out, configPath) {
			t.Errorf("expected saved path in output, got %q", out)
		}

		saved, err := shared.LoadConfig(configPath)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		yt := saved.Credentials.YouTube
		if yt.UserAgent != "TestBrowser/2.0" {
			t.Errorf("UserAgent = %q", yt.UserAgent)
		}
		if yt.Headers["Accept-Language"] != "de-DE" {
			t.Errorf("Accept-Language = %q", yt.Headers["Accept-Language"])
		}
	})

	t.Run("youtube argument errors", func(t *testing.T) {
		configPath, _ := testWorkspace(t, nil)

		if _, err := runApp(t, RunnerOpts{}, "--config", configPath, "setup", "youtube"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		_, err := runApp(t, RunnerOpts{}, "--config", configPath, "setup", "yt", "--curl", "curl x", "--curl-file", "x.sh")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("check passes with working tools", func(t *testing.T) {
		binary := filepath.Join(t.TempDir(), "yt-dlp")
		tu.WriteExecutable(t, binary, "#!/bin/sh\necho 2025.06.09\n")
		configPath, config := testWorkspace(t, func(c *shared.Config) {
			c.Credentials.YouTube.BinaryPath = binary
		})

		out, err := runApp(t, RunnerOpts{}, "--config", configPath, "setup", "check")
		if err != nil {
			t.Fatalf("setup check error = %v\n%s", err, out)
		}
		if !strings.Contains(out, "yt-dlp 2025.06.09") || !strings.Contains(out, "writable") {
			t.Errorf("unexpected report %q", out)
		}

		entries, _ := os.ReadDir(config.Storage.MusicDir)
		for _, e := range entries {
			if !e.IsDir() {
				t.Errorf("probe write left %s behind", e.Name())
			}
		}
	})

	t.Run("check reports missing yt-dlp", func(t *testing.T) {
		configPath, _ := testWorkspace(t, func(c *shared.Config) {
			c.Credentials.YouTube.BinaryPath = filepath.Join(t.TempDir(), "missing-yt-dlp")
		})

		out, err := runApp(t, RunnerOpts{}, "--config", configPath, "setup", "check")
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
		if !strings.Contains(out, "yt-dlp") {
			t.Errorf("expected yt-dlp line in report, got %q", out)
		}
	})
}
