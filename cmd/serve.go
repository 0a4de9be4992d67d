package main

import (
	"context"
	"errors"

	"github.com/desertthunder/crowdq/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the engine and the control server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	a, err := r.newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = a.Config.Server.Addr()
	}

	srv := server.New(addr, server.NewControlRouter(a.Coordinator, a.Bus, r.logger), r.logger)
	err = srv.Run(ctx)
	cancel()
	a.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
