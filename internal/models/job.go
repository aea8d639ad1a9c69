package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/jukebox/internal/shared"
)

// JobStatus is the lifecycle state of an [IngestJob].
type JobStatus string

const (
	JobStarted         JobStatus = "started"
	JobMetadataFetched JobStatus = "metadata_fetched"
	JobStreaming       JobStatus = "streaming"
	JobCompleted       JobStatus = "completed"
	JobFailed          JobStatus = "failed"
)

// transitions lists the legal successors of each non-terminal state.
// Failure is reachable from every non-terminal state.
var transitions = map[JobStatus][]JobStatus{
	JobStarted:         {JobMetadataFetched, JobFailed},
	JobMetadataFetched: {JobStreaming, JobFailed},
	JobStreaming:       {JobCompleted, JobFailed},
}

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStarted, JobMetadataFetched, JobStreaming, JobCompleted, JobFailed:
		return true
	}
	return false
}

// CanAdvance reports whether a job in state s may move to next.
func (s JobStatus) CanAdvance(next JobStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IngestJob records one request to pull a track from an external source.
type IngestJob struct {
	id           string
	sequence     int
	sourceURL    string
	title        string
	filename     string
	status       JobStatus
	bytesWritten int64
	errorMessage string
	startedAt    time.Time
	completedAt  *time.Time
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewIngestJob creates a job in the started state for sourceURL.
func NewIngestJob(sourceURL string) *IngestJob {
	now := time.Now()
	return &IngestJob{
		sourceURL: sourceURL,
		status:    JobStarted,
		startedAt: now,
		createdAt: now,
		updatedAt: now,
	}
}

func (j *IngestJob) ID() string              { return j.id }
func (j *IngestJob) Sequence() int           { return j.sequence }
func (j *IngestJob) SourceURL() string       { return j.sourceURL }
func (j *IngestJob) Title() string           { return j.title }
func (j *IngestJob) Filename() string        { return j.filename }
func (j *IngestJob) Status() JobStatus       { return j.status }
func (j *IngestJob) BytesWritten() int64     { return j.bytesWritten }
func (j *IngestJob) ErrorMessage() string    { return j.errorMessage }
func (j *IngestJob) StartedAt() time.Time    { return j.startedAt }
func (j *IngestJob) CompletedAt() *time.Time { return j.completedAt }
func (j *IngestJob) CreatedAt() time.Time    { return j.createdAt }
func (j *IngestJob) UpdatedAt() time.Time    { return j.updatedAt }
func (j *IngestJob) DeletedAt() *time.Time   { return j.deletedAt }

func (j *IngestJob) SetID(id string)                 { j.id = id }
func (j *IngestJob) SetSequence(seq int)             { j.sequence = seq }
func (j *IngestJob) SetStatus(s JobStatus)           { j.status = s }
func (j *IngestJob) SetBytesWritten(n int64)         { j.bytesWritten = n }
func (j *IngestJob) SetErrorMessage(msg string)      { j.errorMessage = msg }
func (j *IngestJob) SetStartedAt(t time.Time)        { j.startedAt = t }
func (j *IngestJob) SetCompletedAt(t *time.Time)     { j.completedAt = t }
func (j *IngestJob) SetCreatedAt(t time.Time)        { j.createdAt = t }
func (j *IngestJob) SetUpdatedAt(t time.Time)        { j.updatedAt = t }
func (j *IngestJob) SetDeletedAt(t *time.Time)       { j.deletedAt = t }
func (j *IngestJob) SetTrack(title, filename string) { j.title, j.filename = title, filename }

// Advance moves the job to next, rejecting transitions the lifecycle does not allow.
func (j *IngestJob) Advance(next JobStatus) error {
	if !j.status.CanAdvance(next) {
		return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidState, j.status, next)
	}
	j.status = next
	if next.Terminal() {
		now := time.Now()
		j.completedAt = &now
	}
	return nil
}

// Fail moves the job to failed and records cause.
func (j *IngestJob) Fail(cause error) error {
	if err := j.Advance(JobFailed); err != nil {
		return err
	}
	if cause != nil {
		j.errorMessage = cause.Error()
	}
	return nil
}

// Complete moves a streaming job to completed with the final byte count.
func (j *IngestJob) Complete(written int64) error {
	if err := j.Advance(JobCompleted); err != nil {
		return err
	}
	j.bytesWritten = written
	return nil
}

// Validate checks required fields and the status value.
func (j *IngestJob) Validate() error {
	if j.id == "" {
		return fmt.Errorf("%w: job id is required", shared.ErrInvalidInput)
	}
	if j.sourceURL == "" {
		return fmt.Errorf("%w: source url is required", shared.ErrInvalidInput)
	}
	if !j.status.Valid() {
		return fmt.Errorf("%w: unknown job status %q", shared.ErrInvalidInput, j.status)
	}
	if j.status == JobCompleted && j.filename == "" {
		return fmt.Errorf("%w: completed job has no filename", shared.ErrInvalidInput)
	}
	if j.bytesWritten < 0 {
		return fmt.Errorf("%w: negative byte count", shared.ErrInvalidInput)
	}
	return nil
}

// jobJSON is the wire shape of an [IngestJob].
type jobJSON struct {
	ID           string     `json:"id"`
	Sequence     int        `json:"sequence"`
	SourceURL    string     `json:"url"`
	Title        string     `json:"title,omitempty"`
	Filename     string     `json:"filename,omitempty"`
	Status       JobStatus  `json:"status"`
	BytesWritten int64      `json:"bytes_written"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// MarshalJSON exposes the job's public fields.
func (j *IngestJob) MarshalJSON() ([]byte, error) {
	return json.Marshal(jobJSON{
		ID:           j.id,
		Sequence:     j.sequence,
		SourceURL:    j.sourceURL,
		Title:        j.title,
		Filename:     j.filename,
		Status:       j.status,
		BytesWritten: j.bytesWritten,
		Error:        j.errorMessage,
		StartedAt:    j.startedAt,
		CompletedAt:  j.completedAt,
	})
}
