package event

import "go.uber.org/fx"

var Module = fx.Module("event.module",
	fx.Provide(
		NewService,
	),
)
