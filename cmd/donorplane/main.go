package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"donorplane/internal/httpapi"
	"donorplane/pkg/config"
	"donorplane/pkg/db"
	"donorplane/pkg/health"
	"donorplane/pkg/logger"
	"donorplane/pkg/redis"
	"donorplane/pkg/server"
	"donorplane/services/event"
	"donorplane/services/routing"
	"donorplane/services/tenant"
	"donorplane/services/vault"
	"donorplane/services/verification"
	"donorplane/services/wallet"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		health.Module,
		fx.Provide(
			provideSnowflakeNode,
		),
		tenant.Module,
		event.Module,
		wallet.Module,
		vault.Module,
		routing.Module,
		verification.Module,
		httpapi.Module,
		server.ProvideHTTPServer,
		fx.Invoke(migrate),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&tenant.Tenant{},
		&event.Event{},
		&wallet.Wallet{},
	)
}
