// Package app builds one running instance: every component is constructed once here
// and handed to the others by reference.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/coordinator"
	"github.com/desertthunder/crowdq/internal/events"
	"github.com/desertthunder/crowdq/internal/playlists"
	"github.com/desertthunder/crowdq/internal/queue"
	"github.com/desertthunder/crowdq/internal/repositories"
	"github.com/desertthunder/crowdq/internal/services"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/desertthunder/crowdq/internal/tasks"
	"github.com/desertthunder/crowdq/internal/watcher"
	"golang.org/x/oauth2"
)

// App is the per-instance context object.
type App struct {
	Config *shared.Config
	Logger *log.Logger

	Spotify     *services.SpotifyService // nil when Opts.Remote was supplied
	Guard       *services.TokenGuard     // nil without a refresher
	Remote      services.Remote
	Ops         *tasks.Queue
	Bus         *events.Bus
	DB          *sql.DB
	Catalog     *repositories.TrackCatalog
	Queue       *queue.Queue
	Playlists   *playlists.Reconciler
	Watcher     *watcher.Watcher
	Coordinator *coordinator.Coordinator

	configPath string
	saveMu     sync.Mutex
	wg         sync.WaitGroup
	cancel     context.CancelFunc
	closeOnce  sync.Once
}

// Opts configures [New].
type Opts struct {
	Config     *shared.Config
	ConfigPath string // refreshed tokens are written back here; empty disables saving
	Logger     *log.Logger
	HTTPClient *http.Client

	Remote    services.Remote    // replaces the Spotify client, for tests and diagnostics
	Refresher services.Refresher // refreshes Remote's credentials; used with Remote
}

// New wires every component. Nothing talks to the remote service until [App.Start].
func New(opts Opts) (*App, error) {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
		shared.SetLogLevel(logger, shared.ParseLogLevel(cfg.Log.Level))
	}

	a := &App{Config: cfg, Logger: logger, configPath: opts.ConfigPath}

	remote, refresher := opts.Remote, opts.Refresher
	if remote == nil {
		spotify, err := a.newSpotify(opts.HTTPClient)
		if err != nil {
			return nil, err
		}
		a.Spotify = spotify
		remote, refresher = spotify, spotify
	}
	if refresher != nil {
		a.Guard = services.NewTokenGuard(refresher, logger)
		remote = services.NewGuardedRemote(remote, a.Guard)
	}
	a.Remote = remote

	db, err := shared.OpenCatalog(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open track catalog: %w", err)
	}
	a.DB = db
	a.Catalog = repositories.NewTrackCatalog(repositories.NewTrackRepository(db))

	ops := cfg.Operations
	a.Ops = tasks.NewQueue(tasks.Opts{
		Timeouts: tasks.Timeouts{
			Critical:    ops.CriticalTimeout.Duration,
			Default:     ops.DefaultTimeout.Duration,
			LongRunning: ops.LongRunningTimeout.Duration,
		},
		RateLimit: ops.RequestsPerSecond,
		Burst:     ops.Burst,
		Logger:    logger,
	})
	a.Bus = events.NewBus(logger)
	a.Queue = queue.New()

	popts := playlists.OptionsFromConfig(cfg.Playlists, cfg.Operations)
	popts.Catalog = a.Catalog
	popts.Logger = logger
	a.Playlists = playlists.New(remote, a.Ops, popts)

	a.Watcher = watcher.New(remote, a.Ops, a.Bus, watcher.Options{
		Interval: cfg.Sync.PollInterval.Duration,
		Debounce: cfg.Sync.Debounce.Duration,
		Logger:   logger,
	})
	a.Coordinator = coordinator.New(remote, a.Ops, a.Queue, a.Playlists, a.Watcher, a.Bus, coordinator.Options{
		SystemUser:    cfg.Sync.SystemUser,
		TrackEndGrace: cfg.Sync.TrackEndGrace.Duration,
		Logger:        logger,
	})
	return a, nil
}

func (a *App) newSpotify(client *http.Client) (*services.SpotifyService, error) {
	creds := a.Config.Credentials.Spotify
	var opts []services.SpotifyOption
	if client != nil {
		opts = append(opts, services.WithHTTPClient(client))
	}
	spotify, err := services.NewSpotifyService(creds.Map(), opts...)
	if err != nil {
		return nil, err
	}

	token := creds.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: no Spotify refresh token, run `crowdq setup auth`", shared.ErrNotAuthenticated)
	}
	spotify.SetToken(token)
	spotify.SetTokenRefreshCallback(a.saveToken)
	return spotify, nil
}

// saveToken writes a refreshed token back to the config file.
func (a *App) saveToken(token *oauth2.Token) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.Config.Credentials.Spotify.Update(token)
	if a.configPath == "" {
		return
	}
	if err := shared.SaveConfig(a.configPath, a.Config); err != nil {
		a.Logger.Warn("failed to save refreshed token", "path", a.configPath, "error", err)
		return
	}
	a.Logger.Debug("saved refreshed token", "expiry", token.Expiry)
}

// Start bootstraps the playlists and queue, then launches the token refresh loop, the
// watcher and the coordinator. They stop when ctx ends; [App.Wait] blocks until they have.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	if err := a.Coordinator.Bootstrap(ctx, a.Config.Sync.ResumeOnStart); err != nil {
		a.cancel()
		return err
	}

	sub := a.Coordinator.Subscribe()
	if a.Guard != nil {
		a.wg.Go(func() { a.Guard.Run(ctx, a.Config.Sync.TokenRefreshInterval.Duration) })
	}
	a.wg.Go(func() {
		a.loop(ctx, "coordinator", func(ctx context.Context) error { return a.Coordinator.Listen(ctx, sub) })
	})
	a.wg.Go(func() { a.loop(ctx, "watcher", a.Watcher.Run) })

	a.Logger.Info("engine started",
		"active", a.Playlists.ActiveName(),
		"overflow", a.Playlists.OverflowName(),
		"queued", a.Queue.Len(),
	)
	return nil
}

func (a *App) loop(ctx context.Context, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error("loop stopped", "loop", name, "error", err)
	}
}

// Wait blocks until the loops started by [App.Start] return.
func (a *App) Wait() {
	a.wg.Wait()
}

// Close stops the loops, the bus and the operation queue, then closes the catalog.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		a.Bus.Close()
		a.wg.Wait()
		a.Ops.Close()
		err = a.DB.Close()
	})
	return err
}
