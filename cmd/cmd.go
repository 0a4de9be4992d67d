// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand writes the config file and authorizes Spotify.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the default configuration to --config",
				Action: r.SetupConfig,
			},
			{
				Name:  "auth",
				Usage: "Authorize Spotify with OAuth2 and save the refresh token",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.SetupAuth,
			},
		},
	}
}

// serveCommand runs the engine and the control server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the queue engine and the local control server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides [server] host and port",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand runs the engine with the terminal monitor.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"monitor", "ui"},
		Usage:   "Run the queue engine with the terminal monitor",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "user",
				Usage: "Name used for votes and adds from the monitor",
				Value: "host",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the monitor owns the terminal",
				Value: "./tmp/crowdq-tui.log",
			},
		},
		Action: r.TUI,
	}
}

// queueCommand talks to a running control server.
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "queue",
		Aliases: []string{"q"},
		Usage:   "Inspect and change the queue of a running server",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "Print the ranked queue",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, markdown, csv or json",
						Value:   "text",
					},
				},
				Action: r.QueueList,
			},
			{
				Name:  "add",
				Usage: "Request a song by title, or by link with --ref",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "ref",
						Usage: "Track ID, spotify:track URI or open.spotify.com link",
					},
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "Who is asking",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "priority",
						Usage: "Place the song at the top of the active playlist",
					},
				},
				Action: r.QueueAdd,
			},
			{
				Name:  "vote",
				Usage: "Vote for the song at a 1-based position",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "position"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "Who is voting",
						Required: true,
					},
				},
				Action: r.QueueVote,
			},
			{
				Name:  "skip",
				Usage: "Retire songs from the head of the queue",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "count",
						Usage: "How many songs to skip",
						Value: 1,
					},
				},
				Action: r.QueueSkip,
			},
			{
				Name:   "now",
				Usage:  "Print the track that is playing",
				Action: r.QueueNow,
			},
		},
	}
}

// spotifyCommand runs diagnostics through the guarded Spotify client.
func spotifyCommand(r *Runner) *cli.Command {
	jsonFlag := func() cli.Flag { return &cli.BoolFlag{Name: "json", Usage: "Output JSON"} }
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify diagnostics",
		Commands: []*cli.Command{
			{
				Name:   "devices",
				Usage:  "List playback devices",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.SpotifyDevices,
			},
			{
				Name:   "playlists",
				Usage:  "List the account's playlists",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.SpotifyPlaylists,
			},
			{
				Name:   "now-playing",
				Usage:  "Show current playback",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.SpotifyNowPlaying,
			},
		},
	}
}

// playlistsCommand manages the active and overflow playlists.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "Managed playlist maintenance",
		Commands: []*cli.Command{
			{
				Name:   "reconcile",
				Usage:  "Create missing managed playlists and refill the overflow playlist",
				Action: r.PlaylistsReconcile,
			},
		},
	}
}

// catalogCommand inspects the local track catalog.
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Track catalog maintenance",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List remembered tracks",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Only tracks with this exact title"},
					&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
				},
				Action: r.CatalogList,
			},
			{
				Name:      "forget",
				Usage:     "Remove a track reference from the catalog",
				Arguments: []cli.Argument{&cli.StringArg{Name: "ref"}},
				Action:    r.CatalogForget,
			},
		},
	}
}
