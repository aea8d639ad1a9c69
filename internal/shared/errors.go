package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Catalog and storage errors
	ErrTrackNotFound       = fmt.Errorf("song not found")
	ErrTrackLocked         = fmt.Errorf("track is being written")
	ErrRangeNotSatisfiable = fmt.Errorf("requested range not satisfiable")
	ErrStorage             = fmt.Errorf("storage failure")

	// Ingest errors
	ErrJobNotFound     = fmt.Errorf("ingest job not found")
	ErrInvalidState    = fmt.Errorf("invalid job state transition")
	ErrMetadataFetch   = fmt.Errorf("error fetching video metadata")
	ErrSourceStream    = fmt.Errorf("error during download process")
	ErrEmptyStream     = fmt.Errorf("source produced no audio")
	ErrRateLimited     = fmt.Errorf("too many requests")
	ErrProviderMissing = fmt.Errorf("provider executable not found")
	ErrShuttingDown    = fmt.Errorf("service is shutting down")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
