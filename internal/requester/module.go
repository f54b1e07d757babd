package requester

import (
	"go.uber.org/fx"
)

// Module provides the requester module dependencies. A TokenSource must be
// supplied by the session layer.
var Module = fx.Module("requester",
	fx.Provide(
		NewHTTPRequester,
		fx.Annotate(
			NewBearerAuthManager,
			fx.As(new(AuthManager)),
		),
		NewHTTPRequestBuilder,
	),
)
