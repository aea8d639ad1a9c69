package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

const jobColumns = `
	id, sequence, source_url, title, filename, status, bytes_written,
	error, started_at, completed_at, created_at, updated_at, deleted_at`

var _ models.Repository[*models.IngestJob] = (*JobRepository)(nil)

// JobRepository implements [models.Repository] for ingest job tracking.
//
// Handles job CRUD with soft delete support and status-based queries.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job with a generated ID and sequence
func (r *JobRepository) Create(job *models.IngestJob) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(tx, "ingest_jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	job.SetID(shared.GenerateID())
	job.SetSequence(sequence)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO ingest_jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	_, err = tx.Exec(query,
		job.ID(),
		sequence,
		job.SourceURL(),
		nullable(job.Title()),
		nullable(job.Filename()),
		string(job.Status()),
		job.BytesWritten(),
		nullable(job.ErrorMessage()),
		job.StartedAt(),
		job.CompletedAt(),
		job.CreatedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job: %w", err)
	}
	return nil
}

// Get retrieves a job by ID, excluding soft-deleted jobs
func (r *JobRepository) Get(id string) (*models.IngestJob, error) {
	query := `SELECT ` + jobColumns + ` FROM ingest_jobs WHERE id = ? AND deleted_at IS NULL`

	job, err := scanJob(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return job, err
}

// Update persists the job's mutable fields
func (r *JobRepository) Update(job *models.IngestJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	job.SetUpdatedAt(now)

	query := `
		UPDATE ingest_jobs
		SET title = ?, filename = ?, status = ?, bytes_written = ?,
			error = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		nullable(job.Title()),
		nullable(job.Filename()),
		string(job.Status()),
		job.BytesWritten(),
		nullable(job.ErrorMessage()),
		job.CompletedAt(),
		now,
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return expectRow(result, job.ID())
}

// Delete soft-deletes a job by ID
func (r *JobRepository) Delete(id string) error {
	result, err := r.db.Exec(
		`UPDATE ingest_jobs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	return expectRow(result, id)
}

// List retrieves jobs matching criteria, newest first.
//
// Supported criteria: "status" (string), "filename" (string), "limit" (int).
func (r *JobRepository) List(criteria map[string]any) ([]*models.IngestJob, error) {
	query := `SELECT ` + jobColumns + ` FROM ingest_jobs WHERE deleted_at IS NULL`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if filename, ok := criteria["filename"].(string); ok && filename != "" {
		query += " AND filename = ?"
		args = append(args, filename)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.IngestJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// MarkInterrupted fails every job left in a non-terminal state, returning how many were touched.
//
// Jobs do not survive a restart; this runs once at startup.
func (r *JobRepository) MarkInterrupted(reason string) (int64, error) {
	now := time.Now()
	result, err := r.db.Exec(`
		UPDATE ingest_jobs
		SET status = ?, error = ?, completed_at = ?, updated_at = ?
		WHERE status IN (?, ?, ?) AND deleted_at IS NULL`,
		string(models.JobFailed), reason, now, now,
		string(models.JobStarted), string(models.JobMetadataFetched), string(models.JobStreaming),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted jobs: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanJob reads one row shaped by jobColumns into a [models.IngestJob]
func scanJob(row scanner) (*models.IngestJob, error) {
	var (
		id           string
		sequence     int
		sourceURL    string
		title        sql.NullString
		filename     sql.NullString
		status       string
		bytesWritten int64
		errorMessage sql.NullString
		startedAt    time.Time
		completedAt  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &sourceURL, &title, &filename, &status, &bytesWritten,
		&errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job := models.NewIngestJob(sourceURL)
	job.SetID(id)
	job.SetSequence(sequence)
	job.SetTrack(title.String, filename.String)
	job.SetStatus(models.JobStatus(status))
	job.SetBytesWritten(bytesWritten)
	job.SetErrorMessage(errorMessage.String)
	job.SetStartedAt(startedAt)
	job.SetCreatedAt(createdAt)
	job.SetUpdatedAt(updatedAt)
	if completedAt.Valid {
		job.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		job.SetDeletedAt(&deletedAt.Time)
	}

	return job, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return nil
}
