package session

import (
	"context"
	"io"

	"github.com/postsiva/postsiva-cli/internal/config"
	"github.com/postsiva/postsiva-cli/internal/requester"
	"go.uber.org/fx"
)

func provideStorage(lc fx.Lifecycle, cfg *config.SessionConfig) (Storage, error) {
	storage, err := OpenStorage(cfg)
	if err != nil {
		return nil, err
	}
	if closer, ok := storage.(io.Closer); ok {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error { return closer.Close() },
		})
	}
	return storage, nil
}

// Module provides the session storage, store and scope. The scope doubles
// as the requester's token source.
var Module = fx.Module("session",
	fx.Provide(
		provideStorage,
		NewStore,
		NewScope,
		func(s *Scope) requester.TokenSource { return s },
	),
)
