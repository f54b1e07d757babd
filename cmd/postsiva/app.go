package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/postsiva/postsiva-cli/internal/auth"
	"github.com/postsiva/postsiva-cli/internal/config"
	"github.com/postsiva/postsiva-cli/internal/handshake"
	"github.com/postsiva/postsiva-cli/internal/media"
	"github.com/postsiva/postsiva-cli/internal/requester"
	"github.com/postsiva/postsiva-cli/internal/session"
	"github.com/postsiva/postsiva-cli/internal/tiktok"
)

const stopTimeout = 10 * time.Second

// navigation reports where the opener was sent after a successful handshake
type navigation chan string

func (n navigation) Navigate(dest string) {
	select {
	case n <- dest:
	default:
	}
}

func configModule(c *config.Config) fx.Option {
	return fx.Module("config",
		fx.Supply(c),
		fx.Provide(
			func(c *config.Config) *config.APIConfig { return &c.API },
			func(c *config.Config) *config.SessionConfig { return &c.Session },
			func(c *config.Config) *config.AuthConfig { return &c.Auth },
			func(c *config.Config) *config.OAuthConfig { return &c.OAuth },
			func(c *config.Config) *config.MediaConfig { return &c.Media },
		),
	)
}

// withApp assembles the application, fills targets and runs fn between
// start and stop.
func withApp(ctx context.Context, fn func(ctx context.Context) error, targets ...any) error {
	nav := make(navigation, 1)
	app := fx.New(
		fx.NopLogger,
		configModule(cfg),
		requester.Module,
		session.Module,
		auth.Module,
		tiktok.Module,
		handshake.Module,
		media.Module,
		fx.Supply(nav),
		fx.Provide(func(n navigation) handshake.Navigator { return n }),
		// the session must be restored before any authenticated call
		fx.Invoke(func(*auth.Orchestrator) {}),
		fx.Populate(targets...),
	)
	if err := app.Err(); err != nil {
		return fmt.Errorf("assemble application: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	return fn(ctx)
}
