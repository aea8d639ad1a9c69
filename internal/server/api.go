package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/storage"
	"github.com/desertthunder/jukebox/internal/streaming"
	"github.com/desertthunder/jukebox/internal/tasks"
	"github.com/go-playground/validator/v10"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 500
	maxJSONBody     = 1 << 20
)

// Catalog is the music directory as seen by the API.
type Catalog interface {
	storage.Directory
	Tracks(ctx context.Context) ([]models.Track, error)
}

// Ingester starts ingest jobs. [tasks.IngestEngine] satisfies it.
type Ingester interface {
	Submit(ctx context.Context, rawURL string, progress chan<- tasks.ProgressUpdate) (*models.IngestJob, <-chan tasks.IngestResult, error)
}

// JobReader looks up recorded ingest jobs. [repositories.JobRepository] satisfies it.
type JobReader interface {
	Get(id string) (*models.IngestJob, error)
	List(criteria map[string]any) ([]*models.IngestJob, error)
}

// API serves the /api endpoints.
type API struct {
	catalog   Catalog
	ingest    Ingester
	jobs      JobReader
	stream    *streaming.Responder
	validate  *validator.Validate
	maxUpload int64
	logger    *log.Logger
}

// APIOpts wires an [API].
type APIOpts struct {
	Catalog     Catalog
	Ingest      Ingester
	Jobs        JobReader
	Stream      *streaming.Responder
	MaxUploadMB int64
	Logger      *log.Logger
}

// NewAPI creates the API handlers.
func NewAPI(opts APIOpts) *API {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	stream := opts.Stream
	if stream == nil {
		stream = streaming.NewResponder(opts.Catalog, nil, logger)
	}

	return &API{
		catalog:   opts.Catalog,
		ingest:    opts.Ingest,
		jobs:      opts.Jobs,
		stream:    stream,
		validate:  validator.New(),
		maxUpload: opts.MaxUploadMB << 20,
		logger:    shared.WithLogger(logger, "component", "api"),
	}
}

// Register mounts every endpoint on router. limiter, when non-nil, guards the ingest endpoint.
func (a *API) Register(router Router, limiter *RateLimiter) {
	var ingestMW []Middleware
	if limiter != nil {
		ingestMW = append(ingestMW, limiter.Middleware)
	}

	router.HandleFunc(http.MethodPost, "/api/upload", a.Upload)
	router.HandleFunc(http.MethodPost, "/api/download-youtube", a.DownloadYouTube, ingestMW...)
	router.HandleFunc(http.MethodGet, "/api/songs", a.ListSongs)
	router.HandleFunc(http.MethodGet, "/api/songs/{songName}", a.StreamSong)
	router.HandleFunc(http.MethodGet, "/api/jobs", a.ListJobs)
	router.HandleFunc(http.MethodGet, "/api/jobs/{id}", a.GetJob)
}

type downloadRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type messageResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename,omitempty"`
	JobID    string `json:"job_id,omitempty"`
}

// Upload stores the multipart field "song" byte-for-byte under the client's base filename.
func (a *API) Upload(w http.ResponseWriter, r *http.Request) {
	if a.maxUpload > 0 {
		if r.ContentLength > a.maxUpload {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("%w: upload exceeds %d bytes", shared.ErrInvalidInput, a.maxUpload))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: expected multipart/form-data", shared.ErrInvalidInput))
		return
	}

	part, err := nextPart(mr, "song")
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	defer part.Close()

	name := part.FileName()
	if err := storage.ValidName(name); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	pending, err := a.catalog.Create(r.Context(), name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	defer pending.Abort()

	written, err := io.Copy(pending, part)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("%w: upload exceeds %d bytes", shared.ErrInvalidInput, tooLarge.Limit))
			return
		}
		a.logger.Error("upload failed", "filename", name, "written", written, "error", err)
		writeError(w, statusFor(err), err)
		return
	}

	if err := pending.Commit(); err != nil {
		a.logger.Error("upload commit failed", "filename", name, "error", err)
		writeError(w, statusFor(err), err)
		return
	}

	a.logger.Info("upload stored", "filename", name, "bytes", written)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Song uploaded successfully!", Filename: name})
}

// nextPart skips to the multipart part named field.
func nextPart(mr *multipart.Reader, field string) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no %q file in upload", shared.ErrMissingArgument, field)
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, fmt.Errorf("%w: upload too large", shared.ErrInvalidInput)
			}
			return nil, fmt.Errorf("%w: malformed multipart body: %v", shared.ErrInvalidInput, err)
		}
		if part.FormName() == field && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

// DownloadYouTube runs an ingest job for {"url": ...} and reports its outcome.
//
// The job is detached from the request: if the client goes away it still runs to completion.
func (a *API) DownloadYouTube(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: request body must be JSON with a url field", shared.ErrInvalidInput))
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: url is required and must be a URL", shared.ErrInvalidInput))
		return
	}

	job, results, err := a.ingest.Submit(r.Context(), req.URL, nil)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	select {
	case res := <-results:
		if res.Err != nil {
			writeError(w, statusFor(res.Err), res.Err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "Download complete!", Filename: res.Filename, JobID: job.ID()})
	case <-r.Context().Done():
		a.logger.Debug("client left before ingest finished", "job", job.ID(), "url", req.URL)
	}
}

// ListSongs returns the catalog as a JSON array of filenames.
func (a *API) ListSongs(w http.ResponseWriter, r *http.Request) {
	names, err := a.catalog.List(r.Context())
	if err != nil {
		a.logger.Error("failed to list songs", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("unable to scan directory"))
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// StreamSong serves one track with range support.
func (a *API) StreamSong(w http.ResponseWriter, r *http.Request) {
	if err := a.stream.Serve(w, r, r.PathValue("songName")); err != nil {
		writeError(w, statusFor(err), err)
	}
}

// ListJobs returns recent ingest jobs, newest first.
func (a *API) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := map[string]any{"limit": defaultJobLimit}

	if status := q.Get("status"); status != "" {
		if !models.JobStatus(status).Valid() {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, status))
			return
		}
		criteria["status"] = status
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxJobLimit {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: limit must be between 1 and %d", shared.ErrInvalidInput, maxJobLimit))
			return
		}
		criteria["limit"] = limit
	}

	jobs, err := a.jobs.List(criteria)
	if err != nil {
		a.logger.Error("failed to list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetJob returns one ingest job by id.
func (a *API) GetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !shared.ValidID(id) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: malformed job id", shared.ErrInvalidInput))
		return
	}

	job, err := a.jobs.Get(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
