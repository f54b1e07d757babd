package handshake

import (
	"context"

	"github.com/postsiva/postsiva-cli/internal/config"
	"github.com/postsiva/postsiva-cli/internal/tiktok"
	"go.uber.org/fx"
)

func provideInbox(cfg *config.OAuthConfig) *Inbox {
	return NewInbox(cfg.Origin())
}

func provideCallbackServer(lc fx.Lifecycle, params CallbackServerParams) *CallbackServer {
	server := NewCallbackServer(params)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error { return server.Stop(ctx) },
	})
	return server
}

// Module provides the opener and the loopback callback server. The
// consumer supplies the Navigator.
var Module = fx.Module("handshake",
	fx.Provide(
		provideInbox,
		provideCallbackServer,
		fx.Annotate(NewBrowserLauncher, fx.As(new(Launcher))),
		func(links *tiktok.LinkOrchestrator) AuthURLSource { return links },
		NewOpener,
	),
)
