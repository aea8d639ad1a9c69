package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/desertthunder/jukebox/internal/services"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/ui"
	"github.com/urfave/cli/v3"
)

// SetupDatabase writes a config file when none exists, then creates the job database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); errors.Is(err, fs.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err := shared.LoadConfig(r.configPath); err == nil {
			if err := shared.ApplyEnv(config); err != nil {
				return err
			}
			r.config = config
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}

// SetupYouTube imports browser headers and cookies for yt-dlp from a "Copy as cURL" command
// and saves them into the config file.
func (r *Runner) SetupYouTube(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}
	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var headers *shared.CurlHeaders
	var err error

	if curlFile != "" {
		if headers, err = shared.ParseCurlFile(curlFile); err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		if headers, err = shared.ParseCurlCommand(curlCmd); err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	headers.Apply(&r.config.Credentials.YouTube)

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return err
	}
	r.logger.Info("yt-dlp identity saved", "path", r.configPath, "headers", len(r.config.Credentials.YouTube.Headers))

	r.writePlain("%s yt-dlp browser identity configured\n", ui.Styles.OK("✓"))
	r.writePlain("Saved to: %s\n", r.configPath)
	r.writePlainln("Run 'jukebox setup check' to verify yt-dlp is reachable.")
	return nil
}

// SetupCheck verifies the yt-dlp binary runs and that the music directory accepts writes.
func (r *Runner) SetupCheck(ctx context.Context, cmd *cli.Command) error {
	r.writePlainHeader("Environment check")

	var failed []string

	yt := services.NewYTDLPService(r.config.Credentials.YouTube, r.logger)
	if version, err := yt.Version(ctx); err != nil {
		failed = append(failed, "yt-dlp")
		r.writePlain("%s yt-dlp: %v\n", ui.Styles.Err("✗"), err)
	} else {
		r.writePlain("%s yt-dlp %s\n", ui.Styles.OK("✓"), version)
	}

	if err := r.checkStorage(ctx); err != nil {
		failed = append(failed, "storage")
		r.writePlain("%s music directory %s: %v\n", ui.Styles.Err("✗"), r.config.Storage.MusicDir, err)
	} else {
		r.writePlain("%s music directory %s is writable\n", ui.Styles.OK("✓"), r.config.Storage.MusicDir)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrInvalidConfig, strings.Join(failed, ", "))
	}
	return nil
}

// checkStorage stages and aborts a probe write so nothing is published.
func (r *Runner) checkStorage(ctx context.Context) error {
	dir, err := r.openStorage()
	if err != nil {
		return err
	}

	pending, err := dir.Create(ctx, "jukebox-check-"+shared.GenerateID()[:8]+".mp3")
	if err != nil {
		return err
	}
	defer pending.Abort()

	if _, err := pending.Write([]byte("probe")); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	return nil
}
