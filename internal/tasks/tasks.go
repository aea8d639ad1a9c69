package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/services"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/storage"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"
)

// progressInterval is how many bytes pass between download progress updates.
const progressInterval = 4 << 20

// Outcome labels reported to a [Recorder].
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeShared    = "shared"
)

// JobStore persists ingest jobs. [repositories.JobRepository] satisfies it.
type JobStore interface {
	Create(job *models.IngestJob) error
	Update(job *models.IngestJob) error
}

// Recorder observes finished jobs, e.g. for metrics.
type Recorder interface {
	ObserveIngest(outcome string, written int64, took time.Duration)
}

// IngestResult is the terminal outcome of one job.
type IngestResult struct {
	Job      *models.IngestJob
	Filename string
	Written  int64
	Err      error
}

// IngestOpts wires an [IngestEngine].
type IngestOpts struct {
	Provider services.Provider
	Storage  storage.Directory
	Jobs     JobStore
	Recorder Recorder
	Logger   *log.Logger
}

// IngestEngine runs ingest jobs: resolve metadata, name the track, stream the
// payload into a staged write, and publish it.
//
// Jobs run on their own goroutine and are detached from the submitting
// request, so a client that disconnects does not cancel a download.
type IngestEngine struct {
	provider services.Provider
	storage  storage.Directory
	jobs     JobStore
	recorder Recorder
	logger   *log.Logger

	flight singleflight.Group
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewIngestEngine creates a new IngestEngine with the provided dependencies.
func NewIngestEngine(opts IngestOpts) *IngestEngine {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &IngestEngine{
		provider: opts.Provider,
		storage:  opts.Storage,
		jobs:     opts.Jobs,
		recorder: opts.Recorder,
		logger:   shared.WithLogger(logger, "component", "ingest"),
	}
}

// Submit validates rawURL, records a new job and starts it in the background.
//
// The returned channel receives exactly one [IngestResult] and is then closed.
// Cancelling ctx after Submit returns does not stop the job.
func (e *IngestEngine) Submit(ctx context.Context, rawURL string, progress chan<- ProgressUpdate) (*models.IngestJob, <-chan IngestResult, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := ValidateSourceURL(rawURL); err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, nil, shared.ErrShuttingDown
	}
	e.wg.Add(1)
	e.mu.Unlock()

	job := models.NewIngestJob(rawURL)
	if err := e.jobs.Create(job); err != nil {
		e.wg.Done()
		return nil, nil, fmt.Errorf("failed to record job: %w", err)
	}

	results := make(chan IngestResult, 1)
	detached := context.WithoutCancel(ctx)

	go func() {
		defer e.wg.Done()
		defer close(results)
		results <- e.process(detached, job, progress)
	}()

	return job, results, nil
}

// Run submits rawURL and waits for the job to finish or ctx to end.
//
// If ctx ends first the job keeps running; its outcome is still recorded in the job store.
func (e *IngestEngine) Run(ctx context.Context, rawURL string, progress chan<- ProgressUpdate) (*IngestResult, error) {
	job, results, err := e.Submit(ctx, rawURL, progress)
	if err != nil {
		return nil, err
	}

	select {
	case res := <-results:
		return &res, res.Err
	case <-ctx.Done():
		return &IngestResult{Job: job}, ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for running ones until ctx ends.
func (e *IngestEngine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ingest jobs still running: %w", ctx.Err())
	}
}

// process drives one job to a terminal state and persists every transition.
func (e *IngestEngine) process(ctx context.Context, job *models.IngestJob, progress chan<- ProgressUpdate) IngestResult {
	start := time.Now()
	logger := e.logger.With("job", job.ID(), "url", job.SourceURL())

	written, joined, err := e.execute(ctx, logger, job, progress)
	if err != nil {
		if ferr := job.Fail(err); ferr != nil {
			logger.Error("failed to mark job failed", "error", ferr)
		}
		e.save(logger, job)
		e.observe(OutcomeFailed, 0, time.Since(start))
		e.sendProgress(progress, failedUpdate(err))
		logger.Error("ingest failed", "filename", job.Filename(), "error", err)
		return IngestResult{Job: job, Filename: job.Filename(), Err: err}
	}

	if err := job.Complete(written); err != nil {
		logger.Error("failed to mark job completed", "error", err)
	}
	e.save(logger, job)

	outcome := OutcomeCompleted
	if joined {
		outcome = OutcomeShared
	}
	e.observe(outcome, written, time.Since(start))
	e.sendProgress(progress, finishedUpdate(job))
	logger.Info("ingest complete",
		"filename", job.Filename(),
		"size", humanize.IBytes(uint64(written)),
		"took", time.Since(start).Round(time.Millisecond),
		"shared", joined,
	)

	return IngestResult{Job: job, Filename: job.Filename(), Written: written}
}

// execute performs the metadata and download steps. joined is true when
// another job already downloading the same source into the same filename
// produced the bytes. Different sources that share a filename download
// separately, serialized by the storage lock, and the last commit wins.
func (e *IngestEngine) execute(ctx context.Context, logger *log.Logger, job *models.IngestJob, progress chan<- ProgressUpdate) (written int64, joined bool, err error) {
	e.sendProgress(progress, fetchMetadataUpdate(job.SourceURL()))

	meta, err := e.provider.FetchMetadata(ctx, job.SourceURL())
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", shared.ErrMetadataFetch, err)
	}

	filename := TrackFilename(meta.Title, meta.ID)
	job.SetTrack(meta.Title, filename)
	if err := job.Advance(models.JobMetadataFetched); err != nil {
		return 0, false, err
	}
	e.save(logger, job)
	e.sendProgress(progress, metadataUpdate(meta, filename))

	if err := job.Advance(models.JobStreaming); err != nil {
		return 0, false, err
	}
	e.save(logger, job)

	leader := false
	v, err, _ := e.flight.Do(flightKey(filename, meta, job.SourceURL()), func() (any, error) {
		leader = true
		return e.download(ctx, logger, job.SourceURL(), filename, progress)
	})
	if err != nil {
		return 0, !leader, err
	}
	return v.(int64), !leader, nil
}

// flightKey identifies one payload: the target filename plus the source's id,
// or its URL when the provider reports no id.
func flightKey(filename string, meta *models.SourceMetadata, rawURL string) string {
	source := meta.ID
	if source == "" {
		source = rawURL
	}
	return filename + "\x00" + source
}

// download streams the provider payload into a staged write and publishes it.
func (e *IngestEngine) download(ctx context.Context, logger *log.Logger, rawURL, filename string, progress chan<- ProgressUpdate) (int64, error) {
	pending, err := e.storage.Create(ctx, filename)
	if err != nil {
		return 0, err
	}
	defer pending.Abort()

	stream, err := e.provider.OpenAudioStream(ctx, rawURL)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrSourceStream, err)
	}

	w := &progressWriter{w: pending, progress: progress, engine: e}
	written, copyErr := io.Copy(w, sourceReader{stream})
	closeErr := stream.Close()

	switch {
	case copyErr != nil:
		return written, copyErr
	case closeErr != nil:
		return written, fmt.Errorf("%w: %v", shared.ErrSourceStream, closeErr)
	case written == 0:
		return 0, fmt.Errorf("%w: %w", shared.ErrSourceStream, shared.ErrEmptyStream)
	}

	e.sendProgress(progress, finalizeUpdate(filename, written))
	if err := pending.Commit(); err != nil {
		return written, err
	}

	logger.Debug("published track", "filename", filename, "bytes", written)
	return written, nil
}

// save persists job, logging rather than failing: the outcome already happened on disk.
func (e *IngestEngine) save(logger *log.Logger, job *models.IngestJob) {
	if err := e.jobs.Update(job); err != nil {
		logger.Warn("failed to persist job", "status", job.Status(), "error", err)
	}
}

func (e *IngestEngine) observe(outcome string, written int64, took time.Duration) {
	if e.recorder != nil {
		e.recorder.ObserveIngest(outcome, written, took)
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *IngestEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// sourceReader tags read failures as source errors so they can be told apart from disk errors.
type sourceReader struct{ r io.Reader }

func (s sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("%w: %v", shared.ErrSourceStream, err)
	}
	return n, err
}

// progressWriter counts bytes written and emits a download update every progressInterval bytes.
type progressWriter struct {
	w        io.Writer
	progress chan<- ProgressUpdate
	engine   *IngestEngine
	written  int64
	next     int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.written >= p.next+progressInterval {
		p.next = p.written - p.written%progressInterval
		p.engine.sendProgress(p.progress, downloadUpdate(p.written))
	}
	return n, err
}
