// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func settingsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "settings",
			Aliases: []string{"s"},
			Usage:   "TOML file with poster settings",
		},
		&cli.StringFlag{
			Name:  "language",
			Usage: "Copy language (en or ar)",
		},
		&cli.StringFlag{
			Name:  "orientation",
			Usage: "horizontal, vertical or square",
		},
		&cli.StringFlag{
			Name:  "size",
			Usage: "standard, large, social, banner, poster or custom",
		},
		&cli.IntFlag{
			Name:  "width",
			Usage: "Custom width in pixels (with --size custom)",
		},
		&cli.IntFlag{
			Name:  "height",
			Usage: "Custom height in pixels (with --size custom)",
		},
		&cli.StringFlag{
			Name:  "position",
			Usage: "Product position: left, right, top, bottom or center",
		},
		&cli.StringFlag{
			Name:  "background",
			Usage: "Background color as hex (#RRGGBB)",
		},
		&cli.BoolFlag{
			Name:  "minimal-padding",
			Usage: "Keep padding around the product to a minimum",
		},
		&cli.FloatFlag{
			Name:  "padding-ratio",
			Usage: "Padding ratio between 0 and 1",
		},
		&cli.StringFlag{
			Name:  "use-case",
			Usage: "Short description of where the poster will be used",
		},
	}
}

func modeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "mode",
		Aliases: []string{"m"},
		Usage:   "Tracking mode: auto (stream with polling fallback), stream or poll",
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: text, json or markdown",
		Value:   "text",
	}
}

// createCommand runs the full poster flow
func createCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "image",
			Aliases:  []string{"i"},
			Usage:    "Product image (JPEG, PNG or WebP)",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "audio",
			Aliases:  []string{"a"},
			Usage:    "Voice recording describing the product",
			Required: true,
		},
		modeFlag(),
		formatFlag(),
		&cli.BoolFlag{
			Name:  "ui",
			Usage: "Show the interactive progress view",
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "Directory to write designs and results to",
		},
		&cli.BoolFlag{
			Name:  "images",
			Usage: "Also download rendered images into --out",
		},
		&cli.BoolFlag{
			Name:  "no-history",
			Usage: "Do not record the job in the local history",
		},
	}

	return &cli.Command{
		Name:   "create",
		Usage:  "Create a poster job, upload inputs, and follow it to completion",
		Flags:  append(flags, settingsFlags()...),
		Action: r.Create,
	}
}

// jobsCommand handles remote job operations
func jobsCommand(r *Runner) *cli.Command {
	jobArg := []cli.Argument{&cli.StringArg{Name: "id"}}

	return &cli.Command{
		Name:  "jobs",
		Usage: "Inspect jobs on the poster API",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List jobs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page number",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Jobs per page",
						Value: 10,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only jobs with this status",
					},
					&cli.BoolFlag{
						Name:  "designs",
						Usage: "Include designs in the response",
					},
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Output CSV",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.JobsList,
			},
			{
				Name:      "status",
				Usage:     "Show the full job record",
				Arguments: jobArg,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.JobsStatus,
			},
			{
				Name:      "results",
				Usage:     "Fetch the results of a completed job",
				Arguments: jobArg,
				Flags: []cli.Flag{
					formatFlag(),
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Directory to write designs and results to",
					},
					&cli.BoolFlag{
						Name:  "images",
						Usage: "Also download rendered images into --out",
					},
				},
				Action: r.JobsResults,
			},
			{
				Name:      "watch",
				Usage:     "Poll a job that is already processing until it finishes",
				Arguments: jobArg,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-history",
						Usage: "Do not record the job in the local history",
					},
				},
				Action: r.JobsWatch,
			},
			{
				Name:      "download",
				Usage:     "Get a download link for a design variant",
				Arguments: jobArg,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "variant",
						Usage: "Variant number",
						Value: 1,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Save the file here instead of printing the link",
					},
				},
				Action: r.JobsDownload,
			},
		},
	}
}

func promptFieldFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "name",
			Usage: "Prompt name",
		},
		&cli.StringFlag{
			Name:  "type",
			Usage: "photoshoot, blending, copy, html or validation",
		},
		&cli.StringFlag{
			Name:  "category",
			Usage: "Free-form category, e.g. retail",
		},
		&cli.StringFlag{
			Name:  "version",
			Usage: "Template version",
		},
		&cli.StringFlag{
			Name:  "template",
			Usage: "Template text",
		},
		&cli.StringFlag{
			Name:  "template-file",
			Usage: "Read the template text from a file",
		},
		&cli.BoolFlag{
			Name:  "active",
			Usage: "Whether the pipeline may use the prompt (--active=false to disable)",
		},
		&cli.BoolFlag{
			Name:  "default",
			Usage: "Make this the default prompt for its type",
		},
		&cli.StringFlag{
			Name:  "notes",
			Usage: "Notes stored with the prompt",
		},
		&cli.StringSliceFlag{
			Name:  "tag",
			Usage: "Tag to attach (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
	}
}

// promptsCommand manages the prompt templates used by the pipeline
func promptsCommand(r *Runner) *cli.Command {
	promptArg := []cli.Argument{&cli.StringArg{Name: "id"}}

	return &cli.Command{
		Name:  "prompts",
		Usage: "Manage the prompt templates used by the pipeline",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List prompts",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Only prompts of this type",
					},
					&cli.StringFlag{
						Name:  "category",
						Usage: "Only prompts in this category",
					},
					&cli.BoolFlag{
						Name:  "active",
						Usage: "Only active prompts (--active=false for inactive ones)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PromptsList,
			},
			{
				Name:      "show",
				Usage:     "Show a prompt and its template",
				Arguments: promptArg,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PromptsShow,
			},
			{
				Name:  "stats",
				Usage: "Show prompt usage totals",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PromptsStats,
			},
			{
				Name:  "create",
				Usage: "Create a prompt from a TOML definition and/or flags",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "TOML prompt definition; flags override its values",
					},
					&cli.StringFlag{
						Name:    "created-by",
						Usage:   "Author recorded in the prompt metadata when --file does not name one",
						Sources: cli.EnvVars("POSTER_AUTHOR", "USER"),
					},
				}, promptFieldFlags()...),
				Action: r.PromptsCreate,
			},
			{
				Name:      "update",
				Usage:     "Change the given fields of a prompt",
				Arguments: promptArg,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "updated-by",
						Usage:   "Editor recorded in the prompt metadata",
						Sources: cli.EnvVars("POSTER_AUTHOR", "USER"),
					},
				}, promptFieldFlags()...),
				Action: r.PromptsUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a prompt",
				Arguments: promptArg,
				Action:    r.PromptsDelete,
			},
		},
	}
}

// historyCommand handles the local job history
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Jobs created or watched from this machine",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded jobs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only jobs with this status",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of jobs to show",
						Value: 20,
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show a recorded job and its designs",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.HistoryShow,
			},
			{
				Name:   "clear",
				Usage:  "Remove every recorded job",
				Action: r.HistoryClear,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the default template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}
