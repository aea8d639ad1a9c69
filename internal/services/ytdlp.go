package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

const (
	defaultYTDLPBinary     = "yt-dlp"
	defaultMetadataTimeout = 60 * time.Second
	defaultStreamIdle      = 2 * time.Minute
	stderrTailSize         = 2048
	processWaitDelay       = 5 * time.Second
)

// YTDLPService implements [Provider] by running the yt-dlp executable.
type YTDLPService struct {
	binary          string
	cookiesPath     string
	userAgent       string
	referer         string
	headers         map[string]string
	forceIPv4       bool
	noCheckCerts    bool
	metadataTimeout time.Duration
	streamIdle      time.Duration
	logger          *log.Logger
}

// NewYTDLPService creates a yt-dlp provider from the youtube credentials config.
func NewYTDLPService(c shared.YouTubeConfig, logger *log.Logger) *YTDLPService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	binary := c.BinaryPath
	if binary == "" {
		binary = defaultYTDLPBinary
	}

	timeout := time.Duration(c.MetadataTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultMetadataTimeout
	}
	idle := time.Duration(c.StreamIdle) * time.Second
	if idle <= 0 {
		idle = defaultStreamIdle
	}

	return &YTDLPService{
		binary:          binary,
		cookiesPath:     c.CookiesPath,
		userAgent:       c.UserAgent,
		referer:         c.Referer,
		headers:         c.Headers,
		forceIPv4:       c.ForceIPv4,
		noCheckCerts:    c.NoCheckCerts,
		metadataTimeout: timeout,
		streamIdle:      idle,
		logger:          shared.WithLogger(logger, "component", "yt-dlp"),
	}
}

// Name returns the service name.
func (y *YTDLPService) Name() string { return "yt-dlp" }

// commonArgs are the flags shared by the metadata and audio invocations.
func (y *YTDLPService) commonArgs() []string {
	args := []string{"--no-playlist", "--no-progress", "--no-warnings"}

	if y.userAgent != "" {
		args = append(args, "--user-agent", y.userAgent)
	}
	if y.referer != "" {
		args = append(args, "--referer", y.referer)
	}

	keys := make([]string, 0, len(y.headers))
	for k := range y.headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--add-header", k+":"+y.headers[k])
	}

	if y.cookiesPath != "" {
		args = append(args, "--cookies", y.cookiesPath)
	}
	if y.forceIPv4 {
		args = append(args, "--force-ipv4")
	}
	if y.noCheckCerts {
		args = append(args, "--no-check-certificates")
	}
	return args
}

// metadataArgs builds the argument list for a --dump-single-json run.
func (y *YTDLPService) metadataArgs(url string) []string {
	args := append([]string{"--dump-single-json", "--skip-download"}, y.commonArgs()...)
	return append(args, "--", url)
}

// audioArgs builds the argument list for streaming the best audio format to stdout.
func (y *YTDLPService) audioArgs(url string) []string {
	args := append([]string{"-f", "bestaudio", "-o", "-"}, y.commonArgs()...)
	return append(args, "--", url)
}

// FetchMetadata runs yt-dlp --dump-single-json for url.
func (y *YTDLPService) FetchMetadata(ctx context.Context, url string) (*models.SourceMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, y.metadataTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, y.binary, y.metadataArgs(url)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = processWaitDelay

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if missingBinary(err) {
			return nil, fmt.Errorf("%w: %s", shared.ErrProviderMissing, y.binary)
		}
		return nil, fmt.Errorf("yt-dlp metadata for %s failed: %w%s", url, err, stderrSuffix(stderr.String()))
	}

	var meta models.SourceMetadata
	if err := json.Unmarshal(stdout.Bytes(), &meta); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp metadata: %w", err)
	}
	if strings.TrimSpace(meta.Title) == "" && meta.ID == "" {
		return nil, fmt.Errorf("yt-dlp metadata for %s has neither title nor id", url)
	}

	y.logger.Debug("fetched metadata", "url", url, "title", meta.Title, "took", time.Since(start))
	return &meta, nil
}

// Version runs yt-dlp --version, confirming the executable is installed and runnable.
func (y *YTDLPService) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, y.metadataTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, y.binary, "--version")
	cmd.Stderr = &stderr
	cmd.WaitDelay = processWaitDelay

	out, err := cmd.Output()
	if err != nil {
		if missingBinary(err) {
			return "", fmt.Errorf("%w: %s", shared.ErrProviderMissing, y.binary)
		}
		return "", fmt.Errorf("%s --version failed: %w%s", y.binary, err, stderrSuffix(stderr.String()))
	}
	return strings.TrimSpace(string(out)), nil
}

// OpenAudioStream starts yt-dlp writing the best audio format to stdout.
//
// The process is bound to ctx and killed when it writes nothing for the idle
// timeout. Close waits for it to exit and reports a non-zero exit or a stall
// as an error; closing before EOF kills it.
func (y *YTDLPService) OpenAudioStream(ctx context.Context, url string) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, y.binary, y.audioArgs(url)...)
	cmd.WaitDelay = processWaitDelay

	tail := &stderrTail{logger: y.logger, url: url}
	cmd.Stderr = tail

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open yt-dlp stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		if missingBinary(err) {
			return nil, fmt.Errorf("%w: %s", shared.ErrProviderMissing, y.binary)
		}
		return nil, fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	p := &processStream{cmd: cmd, stdout: stdout, stderr: tail, cancel: cancel, idle: y.streamIdle}
	p.timer = time.AfterFunc(y.streamIdle, func() {
		p.stalled.Store(true)
		y.logger.Warn("yt-dlp stalled, killing", "url", url, "idle", y.streamIdle)
		cancel()
	})

	y.logger.Debug("started audio stream", "url", url, "pid", cmd.Process.Pid)
	return p, nil
}

// processStream is the stdout of a running yt-dlp process.
type processStream struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  *stderrTail
	cancel  context.CancelFunc
	timer   *time.Timer
	idle    time.Duration
	stalled atomic.Bool
	eof     bool
	once    sync.Once
	err     error
}

func (p *processStream) stallErr() error {
	return fmt.Errorf("yt-dlp produced no audio for %s", p.idle)
}

func (p *processStream) Read(b []byte) (int, error) {
	n, err := p.stdout.Read(b)
	if n > 0 {
		p.timer.Reset(p.idle)
	}
	if err != nil && p.stalled.Load() {
		return n, p.stallErr()
	}
	if err == io.EOF {
		p.eof = true
	}
	return n, err
}

func (p *processStream) Close() error {
	p.once.Do(func() {
		p.timer.Stop()
		defer p.cancel()

		killed := false
		if !p.eof {
			killed = p.cmd.Process.Kill() == nil
		}

		err := p.cmd.Wait()
		switch {
		case p.stalled.Load():
			p.err = fmt.Errorf("%w%s", p.stallErr(), stderrSuffix(p.stderr.String()))
		case killed:
			p.err = nil
		case err != nil:
			p.err = fmt.Errorf("yt-dlp exited: %w%s", err, stderrSuffix(p.stderr.String()))
		}
	})
	return p.err
}

// stderrTail logs yt-dlp's stderr line by line at debug level and keeps the last few KiB for error messages.
type stderrTail struct {
	logger *log.Logger
	url    string
	mu     sync.Mutex
	buf    []byte
	line   []byte
}

func (s *stderrTail) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, b...)
	if over := len(s.buf) - stderrTailSize; over > 0 {
		s.buf = s.buf[over:]
	}

	s.line = append(s.line, b...)
	for {
		i := bytes.IndexByte(s.line, '\n')
		if i < 0 {
			break
		}
		if line := strings.TrimSpace(string(s.line[:i])); line != "" {
			s.logger.Debug(line, "url", s.url)
		}
		s.line = s.line[i+1:]
	}
	return len(b), nil
}

func (s *stderrTail) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buf)
}

func stderrSuffix(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return ""
	}
	if i := strings.LastIndex(stderr, "\n"); i >= 0 {
		stderr = stderr[i+1:]
	}
	return ": " + stderr
}

// missingBinary reports whether err means the executable could not be found,
// either on PATH or at an explicit path.
func missingBinary(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
