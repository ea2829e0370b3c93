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

func cachedFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "cached",
		Usage: "Read from the local cache instead of the backend",
	}
}

// setupCommand handles setup operations for configuration and the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles sign-in with the identity provider
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in through the browser (OAuth2 authorization code flow)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "remember",
						Usage: "Remember this email for future sign-ins",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and clear the stored session",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show the signed-in user and backend reachability",
				Action: r.AuthStatus,
			},
			{
				Name:  "emails",
				Usage: "List remembered sign-in emails",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthEmails,
			},
		},
	}
}

// uploadCommand submits a four-volume MRI study for segmentation
func uploadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "upload",
		Usage: "Upload T1, T1c, T2 and FLAIR volumes and wait for the segmentation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "t1",
				Usage: "T1-weighted volume (.nii or .nii.gz)",
			},
			&cli.StringFlag{
				Name:  "t1c",
				Usage: "Contrast-enhanced T1 volume (.nii or .nii.gz)",
			},
			&cli.StringFlag{
				Name:  "t2",
				Usage: "T2-weighted volume (.nii or .nii.gz)",
			},
			&cli.StringFlag{
				Name:  "flair",
				Usage: "FLAIR volume (.nii or .nii.gz)",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show interactive progress",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the segmentation in the browser when done",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the final job as JSON",
			},
		},
		Action: r.Upload,
	}
}

// statusCommand queries a job's status URL once
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Query a job's status URL once",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "url",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

// reportsCommand handles report history and export
func reportsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "reports",
		Aliases: []string{"history"},
		Usage:   "Browse and export completed reports",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List completed reports, newest first",
				Flags: []cli.Flag{
					cachedFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ReportsList,
			},
			{
				Name:  "view",
				Usage: "Show one report by display number (#N) or remote id (N)",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "ref",
					},
				},
				Flags: []cli.Flag{
					cachedFlag(),
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the segmentation in the browser",
					},
				},
				Action: r.ReportsView,
			},
			{
				Name:  "export",
				Usage: "Export reports to files",
				Flags: []cli.Flag{
					cachedFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: md, txt, json, csv",
						Value:   "md",
					},
					&cli.BoolFlag{
						Name:  "download",
						Usage: "Download artifacts next to Markdown reports",
					},
					&cli.StringSliceFlag{
						Name:  "ids",
						Usage: "Reports to export by display number (#N) or remote id (N); all when omitted",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory",
					},
				},
				Action: r.ReportsExport,
			},
			{
				Name:   "clear",
				Usage:  "Remove your reports from the local cache",
				Action: r.ReportsClear,
			},
			{
				Name:   "browse",
				Usage:  "Browse reports interactively",
				Flags:  []cli.Flag{cachedFlag()},
				Action: r.TUI,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for browsing reports.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive report browser",
		Flags:   []cli.Flag{cachedFlag()},
		Action:  r.TUI,
	}
}
