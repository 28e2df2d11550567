// Package vault resolves ready-to-use gateway client configuration from
// either a tenant's encrypted wallet or the platform's process-level
// credentials. It performs no fallback of its own: choosing between the two
// sources is the routing engine's job, one layer up.
package vault

import (
	"context"

	"donorplane/pkg/config"
	"donorplane/pkg/errutil"
	"donorplane/services/wallet"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrWalletNotFound             = errutil.New(errutil.StatusNotFound, "wallet not found")
	ErrWalletInactive             = errutil.New(errutil.StatusUnprocessableEntity, "wallet is inactive")
	ErrPlatformCredentialsMissing = errutil.New(errutil.StatusInternal, "platform gateway credentials not configured")
)

// ClientConfig is everything a caller needs to construct a live gateway
// client. It exists only in memory; never persist or log it.
type ClientConfig struct {
	PublicKey     string
	SecretKey     string
	WebhookSecret *string
}

type Resolver struct {
	cfg     *config.Config
	wallets *wallet.Service
}

type ResolverParams struct {
	fx.In
	Config  *config.Config
	Wallets *wallet.Service
}

func NewResolver(p ResolverParams) *Resolver {
	return &Resolver{
		cfg:     p.Config,
		wallets: p.Wallets,
	}
}

// ResolveTenant loads, checks and decrypts the wallet for tenantID. A
// missing or inactive wallet is a hard stop here.
func (r *Resolver) ResolveTenant(ctx context.Context, tenantID string) (*ClientConfig, error) {
	record, err := r.wallets.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrWalletNotFound
	}
	if !record.IsActive {
		return nil, ErrWalletInactive
	}

	creds, err := r.wallets.DecryptedView(record)
	if err != nil {
		return nil, err
	}

	return &ClientConfig{
		PublicKey:     creds.PublicKey,
		SecretKey:     creds.SecretKey,
		WebhookSecret: creds.WebhookSecret,
	}, nil
}

// ResolvePlatformDefault reads the platform-wide credentials from process
// configuration. These are operator supplied and never encrypted at rest.
func (r *Resolver) ResolvePlatformDefault() (*ClientConfig, error) {
	p := r.cfg.Platform
	if p.PublicKey == "" || p.SecretKey == "" {
		zap.L().Error("platform gateway credentials missing from configuration")
		return nil, ErrPlatformCredentialsMissing
	}

	cc := &ClientConfig{
		PublicKey: p.PublicKey,
		SecretKey: p.SecretKey,
	}
	if p.WebhookSecret != "" {
		secret := p.WebhookSecret
		cc.WebhookSecret = &secret
	}
	return cc, nil
}

// ResolveWebhookSecret returns the webhook secret for a tenant, or the
// platform secret when tenantID is nil. This path never errors: a missing
// wallet, an inactive wallet or an undecryptable field all resolve to nil,
// because "no secret configured" is a legitimate, checkable state for
// webhook verification.
func (r *Resolver) ResolveWebhookSecret(ctx context.Context, tenantID *string) *string {
	if tenantID == nil {
		if r.cfg.Platform.WebhookSecret == "" {
			return nil
		}
		secret := r.cfg.Platform.WebhookSecret
		return &secret
	}

	record, err := r.wallets.GetByTenant(ctx, *tenantID)
	if err != nil || record == nil || !record.IsActive {
		return nil
	}

	creds, err := r.wallets.DecryptedView(record)
	if err != nil {
		return nil
	}
	return creds.WebhookSecret
}

var Module = fx.Module("vault.module",
	fx.Provide(
		NewResolver,
	),
)
