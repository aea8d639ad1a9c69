// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the media HTTP server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the song listing in a browser once the server is up",
			},
		},
		Action: r.Serve,
	}
}

// ingestCommand downloads a single track from the terminal.
func ingestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "ingest",
		Aliases: []string{"download", "dl"},
		Usage:   "Download a track's audio into the music directory",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "url",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the finished job as JSON",
			},
		},
		Action: r.Ingest,
	}
}

// libraryCommand inspects the catalog and job history.
func libraryCommand(r *Runner) *cli.Command {
	formatFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: table, csv or json",
			Value:   "table",
		}
	}
	outputFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to a file instead of stdout",
		}
	}

	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Inspect the music directory and ingest history",
		Commands: []*cli.Command{
			{
				Name:   "songs",
				Usage:  "List tracks in the music directory",
				Flags:  []cli.Flag{formatFlag(), outputFlag()},
				Action: r.LibrarySongs,
			},
			{
				Name:  "jobs",
				Usage: "List recent ingest jobs",
				Flags: []cli.Flag{
					formatFlag(),
					outputFlag(),
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only jobs in this status (started, metadata_fetched, streaming, completed, failed)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of jobs to return",
						Value: 50,
					},
				},
				Action: r.LibraryJobs,
			},
		},
	}
}

// setupCommand handles setup operations for database and provider credentials.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:    "youtube",
				Aliases: []string{"yt"},
				Usage:   "Import browser headers and cookies for yt-dlp from a cURL command",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
				},
				Action: r.SetupYouTube,
			},
			{
				Name:   "check",
				Usage:  "Verify yt-dlp is installed and the music directory is writable",
				Action: r.SetupCheck,
			},
		},
	}
}
