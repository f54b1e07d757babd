package tiktok

import "go.uber.org/fx"

var Module = fx.Module("tiktok",
	fx.Provide(
		NewClient,
		NewLinkOrchestrator,
		NewProfileOrchestrator,
		NewPostOrchestrator,
	),
)
