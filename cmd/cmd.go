// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write the example configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// serveCommand runs the backend over Lidarr & MusicBrainz
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the lidx backend (download status, retry & search suggestions)",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides server.port)",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Bearer token required on /api routes (overrides server.token)",
			},
		},
		Action: r.Serve,
	}
}

// downloadsCommand handles download status operations against the backend
func downloadsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "downloads",
		Aliases: []string{"dl"},
		Usage:   "Download status & retry",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Print one status snapshot",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Output CSV",
					},
					&cli.BoolFlag{
						Name:  "export",
						Usage: "Write {output}_items.csv & {output}_summary.json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Base path for --export (default: downloads_{unix time})",
					},
				},
				Action: r.DownloadsStatus,
			},
			{
				Name:  "watch",
				Usage: "Poll the status endpoint & print each new snapshot",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:    "interval",
						Aliases: []string{"i"},
						Usage:   "Poll interval",
						Value:   r.config.Polling.Interval(),
					},
					&cli.IntFlag{
						Name:  "count",
						Usage: "Stop after this many snapshots (0 watches until interrupted)",
					},
				},
				Action: r.DownloadsWatch,
			},
			{
				Name:  "retry",
				Usage: "Retry a download, then print its reconciled status",
				Arguments: []cli.Argument{
					&cli.IntArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Wait for the reconciling snapshot",
						Value: true,
					},
				},
				Action: r.DownloadsRetry,
			},
		},
	}
}

// searchCommand handles typeahead suggestions
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search artists, albums & songs",
		Commands: []*cli.Command{
			{
				Name:  "suggest",
				Usage: "Print grouped suggestions for a query",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "query",
					},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Usage:   "Suggestions per group",
						Value:   r.config.Search.Limit,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Action: r.SearchSuggest,
			},
		},
	}
}

// apiCommand handles direct backend API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the lidx backend",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET to the backend, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "JSON body to send",
						Value:   "{}",
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// healthCommand checks the backend health endpoint
func healthCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check the backend (calls /health)",
		Action: r.Health,
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive downloads & search TUI",
		Action:  r.TUI,
	}
}
