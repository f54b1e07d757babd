package media

import (
	"context"

	"github.com/postsiva/postsiva-cli/internal/config"
	"go.uber.org/fx"
)

func provideStager(cfg *config.MediaConfig) (Stager, error) {
	if !cfg.Enabled() {
		return disabled{}, nil
	}
	return NewS3Stager(context.Background(), *cfg)
}

var Module = fx.Module("media",
	fx.Provide(provideStager),
)
