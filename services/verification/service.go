package verification

import (
	"context"
	"time"

	"donorplane/pkg/config"
	"donorplane/pkg/errutil"
	"donorplane/pkg/rediskey"
	"donorplane/services/vault"
	"donorplane/services/wallet"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrVerifyThrottled is returned when a tenant's wallet was probed too
// recently. Verification hits a third-party gateway, so repeated
// admin-triggered runs are rate limited.
var ErrVerifyThrottled = errutil.New(errutil.StatusTooManyRequests, "verification already in progress or ran recently")

type Service struct {
	gateway  Gateway
	wallets  *wallet.Service
	redis    *redis.Client
	cooldown time.Duration
}

type ServiceParams struct {
	fx.In
	Gateway Gateway
	Wallets *wallet.Service
	Config  *config.Config
	Redis   *redis.Client `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		gateway:  p.Gateway,
		wallets:  p.Wallets,
		redis:    p.Redis,
		cooldown: p.Config.Gateway.VerifyCooldown,
	}
}

// VerifyWallet exercises a tenant's stored credentials against the live
// gateway with exactly one network call, then writes the outcome back onto
// the wallet. Repeated runs simply overwrite the previous snapshot.
func (s *Service) VerifyWallet(ctx context.Context, tenantID string) (*wallet.Wallet, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("tenant_id", tenantID),
	)

	record, err := s.wallets.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, vault.ErrWalletNotFound
	}

	if err := s.throttle(ctx, tenantID); err != nil {
		return nil, err
	}

	creds, err := s.wallets.DecryptedView(record)
	if err != nil {
		return nil, err
	}

	result := s.gateway.VerifyCredentials(ctx, creds.PublicKey, creds.SecretKey)
	if result.Valid {
		zapLog.Info("wallet credentials verified")
	} else {
		zapLog.Warn("wallet credentials failed verification", zap.String("detail", result.Error))
	}

	if err := s.wallets.RecordVerification(ctx, record, result.Valid, result.Error); err != nil {
		return nil, err
	}

	return s.wallets.GetByTenant(ctx, tenantID)
}

// throttle enforces the per-tenant cooldown via redis when available. With
// no redis client configured, verification is unthrottled.
func (s *Service) throttle(ctx context.Context, tenantID string) error {
	if s.redis == nil || s.cooldown <= 0 {
		return nil
	}

	key := rediskey.BuildWalletVerifyKey(tenantID)
	ok, err := s.redis.SetNX(ctx, key, time.Now().Unix(), s.cooldown).Result()
	if err != nil {
		// throttling is best effort: a broken redis never blocks verification
		zap.L().Warn("verification throttle unavailable", zap.Error(err))
		return nil
	}
	if !ok {
		return ErrVerifyThrottled
	}
	return nil
}

var Module = fx.Module("verification.module",
	fx.Provide(
		NewHTTPGateway,
		NewService,
	),
)
