package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/tasks"
	"github.com/desertthunder/jukebox/internal/ui"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// interruptGrace bounds how long an interrupted ingest waits for the job to settle.
const interruptGrace = 10 * time.Second

// Ingest downloads one URL into the music directory, printing progress as it goes.
//
// An interrupt stops waiting; the job gets a short grace period to finish or fail
// and a second interrupt exits immediately.
func (r *Runner) Ingest(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	dir, err := r.openStorage()
	if err != nil {
		return err
	}

	jobs, closeDB, err := r.openJobs()
	if err != nil {
		return err
	}
	defer closeDB()

	engine := tasks.NewIngestEngine(tasks.IngestOpts{
		Provider: r.newProvider(),
		Storage:  dir,
		Jobs:     jobs,
		Logger:   r.logger,
	})

	progress := make(chan tasks.ProgressUpdate, 16)
	printed := make(chan struct{})
	go func() {
		ui.PrintProgress(r.output, ui.Styles, progress)
		close(printed)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	res, runErr := engine.Run(sigCtx, url, progress)
	stop()

	graceCtx, cancel := context.WithTimeout(context.Background(), interruptGrace)
	defer cancel()
	if err := engine.Shutdown(graceCtx); err != nil {
		return errors.Join(runErr, err)
	}
	close(progress)
	<-printed

	if runErr != nil {
		if res != nil && res.Job != nil {
			r.logger.Error("ingest failed", "job", res.Job.ID(), "url", url)
		}
		return runErr
	}

	if cmd.Bool("json") {
		return r.writeJSON(res.Job, true)
	}

	r.writePlainln("%s %s (%s)", ui.Styles.OK("Saved"), res.Filename, humanize.IBytes(uint64(res.Written)))
	r.writePlain("Job: %s (%s)\n", res.Job.ID(), ui.Styles.Status(res.Job.Status()))
	return nil
}
