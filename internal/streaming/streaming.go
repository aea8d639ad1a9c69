// Package streaming serves catalog tracks over HTTP with byte-range support.
package streaming

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/ranges"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/storage"
)

// ContentType is sent with every track body.
const ContentType = "audio/mpeg"

// Observer receives one call per response the [Responder] writes.
type Observer interface {
	ObserveStream(status int, written int64)
}

// Responder answers track playback requests.
type Responder struct {
	dir      storage.Directory
	observer Observer
	logger   *log.Logger
}

// NewResponder creates a Responder reading from dir. observer may be nil.
func NewResponder(dir storage.Directory, observer Observer, logger *log.Logger) *Responder {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Responder{dir: dir, observer: observer, logger: shared.WithLogger(logger, "component", "stream")}
}

// Serve writes track name to w, honoring the request's Range header.
//
// The size is read from the open handle on every request. An unsatisfiable
// range gets a bodiless 416 carrying "Content-Range: bytes */N".
//
// Serve returns an error only when nothing has been written yet
// ([shared.ErrInvalidInput], [shared.ErrTrackNotFound] or [shared.ErrStorage]), so the caller can still
// send an error response. Failures after the headers are out are logged and
// the response is abandoned.
func (s *Responder) Serve(w http.ResponseWriter, r *http.Request, name string) error {
	h, err := s.dir.Open(name)
	if err != nil {
		return err
	}
	defer h.Close()

	size := h.Size()
	header := w.Header()
	header.Set("Accept-Ranges", "bytes")

	plan, err := ranges.Resolve(size, r.Header.Get("Range"))
	if err != nil {
		s.logger.Debug("unsatisfiable range", "track", name, "range", r.Header.Get("Range"), "size", size)
		header.Set("Content-Range", ranges.UnsatisfiedRange(size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		s.observe(http.StatusRequestedRangeNotSatisfiable, 0)
		return nil
	}

	status := http.StatusOK
	if plan.Partial {
		status = http.StatusPartialContent
		header.Set("Content-Range", plan.ContentRange())
	}
	header.Set("Content-Type", ContentType)
	header.Set("Content-Length", strconv.FormatInt(plan.Length(), 10))
	header.Set("Last-Modified", h.ModTime().UTC().Format(http.TimeFormat))
	w.WriteHeader(status)

	if r.Method == http.MethodHead || plan.Length() == 0 {
		s.observe(status, 0)
		return nil
	}

	written, err := io.Copy(w, io.NewSectionReader(h, plan.Start, plan.Length()))
	s.observe(status, written)

	switch {
	case err == nil:
	case clientGone(r, err):
		s.logger.Debug("client went away", "track", name, "written", written, "want", plan.Length())
	default:
		s.logger.Warn("stream aborted", "track", name, "written", written, "want", plan.Length(), "error", err)
	}
	return nil
}

func (s *Responder) observe(status int, written int64) {
	if s.observer != nil {
		s.observer.ObserveStream(status, written)
	}
}

func clientGone(r *http.Request, err error) bool {
	return r.Context().Err() != nil ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}
