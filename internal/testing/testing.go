// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/jukebox/internal/models"
)

// MockProvider is a test double for [services.Provider].
//
// Metadata and Audio are returned as-is; the Err fields take precedence.
// StreamErr is returned by Read once Audio is exhausted, CloseErr by Close.
// Entries in MetadataByURL and AudioByURL override Metadata and Audio for that URL.
type MockProvider struct {
	Metadata      *models.SourceMetadata
	MetadataErr   error
	Audio         []byte
	MetadataByURL map[string]*models.SourceMetadata
	AudioByURL    map[string][]byte
	StreamErr   error
	OpenErr     error
	CloseErr    error
	// Gate, when set, blocks OpenAudioStream until it is closed.
	Gate chan struct{}

	mu            sync.Mutex
	metadataCalls int
	streamCalls   int
	closed        int
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) FetchMetadata(ctx context.Context, url string) (*models.SourceMetadata, error) {
	m.mu.Lock()
	m.metadataCalls++
	m.mu.Unlock()

	if m.MetadataErr != nil {
		return nil, m.MetadataErr
	}
	if meta, ok := m.MetadataByURL[url]; ok {
		return meta, nil
	}
	return m.Metadata, nil
}

func (m *MockProvider) OpenAudioStream(ctx context.Context, url string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.streamCalls++
	m.mu.Unlock()

	if m.Gate != nil {
		<-m.Gate
	}
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	audio := m.Audio
	if data, ok := m.AudioByURL[url]; ok {
		audio = data
	}
	return &mockStream{r: bytes.NewReader(audio), readErr: m.StreamErr, closeErr: m.CloseErr, owner: m}, nil
}

// Calls reports how many metadata and stream requests were made.
func (m *MockProvider) Calls() (metadata, stream int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metadataCalls, m.streamCalls
}

// Closed reports how many streams were closed.
func (m *MockProvider) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type mockStream struct {
	r        *bytes.Reader
	readErr  error
	closeErr error
	owner    *MockProvider
}

func (s *mockStream) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err == io.EOF && s.readErr != nil {
		return n, s.readErr
	}
	return n, err
}

func (s *mockStream) Close() error {
	s.owner.mu.Lock()
	s.owner.closed++
	s.owner.mu.Unlock()
	return s.closeErr
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// FReader fails every Read
type FReader struct{}

func (f *FReader) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FReader) Close() error {
	return nil
}

// WriteExecutable writes a shell script to path and marks it executable.
func WriteExecutable(t *testing.T, path, script string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("Failed to write executable %s: %v", path, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("File should not exist: %s (stat err: %v)", path, err)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
