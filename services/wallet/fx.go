package wallet

import "go.uber.org/fx"

var Module = fx.Module("wallet.module",
	fx.Provide(
		NewService,
	),
)
