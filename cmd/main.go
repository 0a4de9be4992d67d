package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/crowdq/internal/services"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.root().Run(ctx, os.Args); err != nil {
		stop()
		logger.Fatalf("application error: %v", err)
	}
}

func (r *Runner) root() *cli.Command {
	return &cli.Command{
		Name:    "crowdq",
		Usage:   "Collaborative song queue on top of Spotify playback",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   DefaultConfigPath,
				Sources: cli.EnvVars("CROWDQ_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "server",
				Usage:   "Control server URL for queue commands",
				Value:   services.DefaultServerURL,
				Sources: cli.EnvVars("CROWDQ_SERVER"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
		},
		Commands: r.register(),
	}
}
