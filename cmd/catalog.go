package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/crowdq/internal/repositories"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/urfave/cli/v3"
)

// openCatalog opens the configured track catalog. Callers own the returned close func.
func (r *Runner) openCatalog(cmd *cli.Command) (*repositories.TrackCatalog, func() error, error) {
	config, _, err := r.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if config.Database.Path == "" || config.Database.Path == ":memory:" {
		r.logger.Warn("catalog is in memory, nothing survives between runs", "path", config.Database.Path)
	}

	db, err := shared.OpenCatalog(config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open track catalog: %w", err)
	}
	return repositories.NewTrackCatalog(repositories.NewTrackRepository(db)), db.Close, nil
}

// CatalogList prints remembered tracks, optionally filtered by --title.
func (r *Runner) CatalogList(ctx context.Context, cmd *cli.Command) error {
	catalog, closeFn, err := r.openCatalog(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	tracks, err := catalog.Tracks(cmd.String("title"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(tracks, true)
	}

	if len(tracks) == 0 {
		return r.writePlain("The catalog is empty.\n")
	}
	r.writePlain("Tracks: %d\n\n", len(tracks))
	for i, t := range tracks {
		r.writePlain("%d. %s\n", i+1, t.Label())
		r.writePlain("   Ref: %s\n", t.ID)
	}
	return nil
}

// CatalogForget drops one track reference from the catalog.
func (r *Runner) CatalogForget(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("ref")
	if ref == "" {
		return fmt.Errorf("%w: track reference", shared.ErrMissingArgument)
	}

	catalog, closeFn, err := r.openCatalog(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	forgot, err := catalog.Forget(ref)
	if err != nil {
		return err
	}
	if !forgot {
		return r.writePlain("%s was not in the catalog.\n", ref)
	}
	return r.writePlain("Forgot %s.\n", ref)
}
