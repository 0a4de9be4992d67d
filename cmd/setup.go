package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/desertthunder/crowdq/internal/server"
	"github.com/desertthunder/crowdq/internal/services"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthTimeout bounds how long setup auth waits for the browser callback.
const AuthTimeout = 2 * time.Minute

// SetupConfig writes the embedded default configuration to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		path = DefaultConfigPath
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlain("Set credentials.spotify.client_id and client_secret, then run `crowdq setup auth`.\n")
	return nil
}

// SetupAuth runs the OAuth2 authorization code flow and saves the token pair to the config file.
func (r *Runner) SetupAuth(ctx context.Context, cmd *cli.Command) error {
	config, path, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	spotify, err := services.NewSpotifyService(config.Credentials.Spotify.Map(), services.WithHTTPClient(r.httpClient))
	if err != nil {
		return fmt.Errorf("%w: set credentials.spotify.client_id and client_secret in %s", err, path)
	}

	exchange := func(ctx context.Context, code string) (*oauth2.Token, error) {
		if err := spotify.Authenticate(ctx, map[string]string{"auth_code": code}); err != nil {
			return nil, err
		}
		return spotify.Token(), nil
	}

	token, err := r.doOAuth(ctx, config, spotify.GetAuthURL, exchange, !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	config.Credentials.Spotify.Update(token)
	if err := shared.SaveConfig(path, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", path)
	r.writePlain("You can now run: crowdq serve\n")
	return nil
}

// callbackAddr returns the host:port the redirect URI points at.
func callbackAddr(config *shared.Config) string {
	redirect := config.Credentials.Spotify.RedirectURI
	if redirect == "" {
		redirect = services.DefaultRedirectURI
	}
	if u, err := url.Parse(redirect); err == nil && u.Host != "" {
		if _, _, err := net.SplitHostPort(u.Host); err == nil {
			return u.Host
		}
	}
	return config.Server.Addr()
}

// doOAuth serves the callback on the redirect address until one result arrives.
func (r *Runner) doOAuth(ctx context.Context, config *shared.Config, authURL func(string) string, exchange server.ExchangeFunc, openBrowser bool) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthHandler := server.NewOAuthHandler(exchange, state)
	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(oauthHandler)

	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	srv := server.New(callbackAddr(config), router, r.logger)
	serverErrors := make(chan error, 1)
	go func() { serverErrors <- srv.Run(srvCtx) }()

	link := authURL(state)
	if openBrowser {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(link); err != nil {
			r.logger.Warn("failed to open browser automatically", "error", err)
			openBrowser = false
		}
	}
	if !openBrowser {
		r.writePlain("Open this URL in your browser:\n%s\n\n", link)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", AuthTimeout)

	timeout := time.NewTimer(AuthTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("callback server stopped: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, AuthTimeout)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
