package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/jukebox/internal/formatter"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/urfave/cli/v3"
)

// LibrarySongs lists the tracks in the music directory.
func (r *Runner) LibrarySongs(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	dir, err := r.openStorage()
	if err != nil {
		return err
	}

	tracks, err := dir.Tracks(ctx)
	if err != nil {
		return err
	}

	var out []byte
	switch format {
	case formatter.FormatCSV:
		out, err = formatter.TracksCSV(tracks)
	case formatter.FormatJSON:
		out, err = formatter.ToJSON(tracks)
	default:
		out = []byte(formatter.TracksTable(tracks, time.Now()) + "\n")
	}
	if err != nil {
		return err
	}
	return r.emit(cmd.String("output"), out)
}

// LibraryJobs lists recent ingest jobs from the job database.
func (r *Runner) LibraryJobs(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if status := cmd.String("status"); status != "" {
		if !models.JobStatus(status).Valid() {
			return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidFlag, status)
		}
		criteria["status"] = status
	}

	jobs, closeDB, err := r.openJobs()
	if err != nil {
		return err
	}
	defer closeDB()

	list, err := jobs.List(criteria)
	if err != nil {
		return err
	}

	var out []byte
	switch format {
	case formatter.FormatCSV:
		out, err = formatter.JobsCSV(list)
	case formatter.FormatJSON:
		out, err = formatter.ToJSON(list)
	default:
		out = []byte(formatter.JobsTable(list, time.Now()) + "\n")
	}
	if err != nil {
		return err
	}
	return r.emit(cmd.String("output"), out)
}

// emit writes out to path, or to the runner's output when path is empty.
func (r *Runner) emit(path string, out []byte) error {
	if path == "" {
		if _, err := r.output.Write(out); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := formatter.WriteFile(path, out); err != nil {
		return err
	}
	r.logger.Info("wrote listing", "path", path, "bytes", len(out))
	return nil
}
