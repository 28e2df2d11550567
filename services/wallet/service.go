package wallet

import (
	"context"
	"sync"
	"time"

	"donorplane/pkg/config"
	"donorplane/pkg/db/option"
	"donorplane/pkg/db/pagination"
	"donorplane/pkg/envelope"
	"donorplane/pkg/errutil"
	"donorplane/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrCredentialsCorrupted wraps any crypto failure on a stored wallet. The
// message is deliberately generic: ciphertext and key material never reach
// callers.
var ErrCredentialsCorrupted = errutil.New(errutil.StatusInternal, "failed to retrieve credentials")

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	cfg  *config.Config
	repo repository.Repository[Wallet]

	keyOnce sync.Once
	key     []byte
	keyErr  error
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		cfg:  p.Config,
		repo: repository.ProvideStore[Wallet](p.DB),
	}
}

// masterKey parses the configured master key once. A missing or malformed
// key is unrecoverable: every subsequent crypto call keeps failing rather
// than silently defaulting.
func (s *Service) masterKey() ([]byte, error) {
	s.keyOnce.Do(func() {
		s.key, s.keyErr = envelope.ParseMasterKey(s.cfg.Vault.MasterKey)
		if s.keyErr != nil {
			zap.L().Error("credential master key unusable", zap.Error(s.keyErr))
		}
	})
	return s.key, s.keyErr
}

// EncryptOnWrite encrypts any plaintext secret field in place. Fields that
// already carry the envelope shape are left untouched, which makes writes
// idempotent: re-saving a read-back record never double-encrypts.
func (s *Service) EncryptOnWrite(w *Wallet) error {
	key, err := s.masterKey()
	if err != nil {
		return err
	}

	encrypt := func(field *string) error {
		if *field == "" || envelope.IsEnvelope(*field) {
			return nil
		}
		enc, err := envelope.Encrypt(*field, key)
		if err != nil {
			return err
		}
		*field = enc
		return nil
	}

	if err := encrypt(&w.PublicKey); err != nil {
		return err
	}
	if err := encrypt(&w.SecretKey); err != nil {
		return err
	}
	if w.WebhookSecret != nil {
		if err := encrypt(w.WebhookSecret); err != nil {
			return err
		}
	}
	return nil
}

// DecryptedView decrypts all present credential fields. Any failure on a
// required field surfaces as ErrCredentialsCorrupted with the cause kept
// internal.
func (s *Service) DecryptedView(w *Wallet) (*Credentials, error) {
	key, err := s.masterKey()
	if err != nil {
		return nil, errutil.New(errutil.StatusInternal, "failed to retrieve credentials", errutil.WithErr(err))
	}

	publicKey, err := envelope.Decrypt(w.PublicKey, key)
	if err != nil {
		zap.L().Error("wallet public key failed to decrypt", zap.String("tenant_id", w.TenantID), zap.Error(err))
		return nil, errutil.New(errutil.StatusInternal, "failed to retrieve credentials", errutil.WithErr(err))
	}

	secretKey, err := envelope.Decrypt(w.SecretKey, key)
	if err != nil {
		zap.L().Error("wallet secret key failed to decrypt", zap.String("tenant_id", w.TenantID), zap.Error(err))
		return nil, errutil.New(errutil.StatusInternal, "failed to retrieve credentials", errutil.WithErr(err))
	}

	creds := &Credentials{PublicKey: publicKey, SecretKey: secretKey}

	if w.WebhookSecret != nil && *w.WebhookSecret != "" {
		webhook, err := envelope.Decrypt(*w.WebhookSecret, key)
		if err != nil {
			zap.L().Error("wallet webhook secret failed to decrypt", zap.String("tenant_id", w.TenantID), zap.Error(err))
			return nil, errutil.New(errutil.StatusInternal, "failed to retrieve credentials", errutil.WithErr(err))
		}
		creds.WebhookSecret = &webhook
	}

	return creds, nil
}

// MaskedView renders a wallet for display. The secret key and webhook
// secret are always the fixed sentinel regardless of caller privilege; the
// public key keeps its last four characters. Decrypt failures degrade to
// the sentinel instead of erroring, because a display path must never block
// a read.
func (s *Service) MaskedView(w *Wallet) *MaskedCredentials {
	masked := &MaskedCredentials{
		PublicKey: envelope.MaskedSentinel,
		SecretKey: envelope.MaskedSentinel,
	}
	if w.WebhookSecret != nil {
		sentinel := envelope.MaskedSentinel
		masked.WebhookSecret = &sentinel
	}

	creds, err := s.DecryptedView(w)
	if err != nil {
		return masked
	}

	masked.PublicKey = envelope.Mask(creds.PublicKey)
	return masked
}

type SaveWalletInput struct {
	PublicKey     string  `json:"public_key" binding:"required"`
	SecretKey     string  `json:"secret_key" binding:"required"`
	WebhookSecret *string `json:"webhook_secret"`
}

// Save creates or rotates a tenant's wallet. A field that arrives in
// plaintext is treated as a rotation and resets the verification status to
// pending; a field passed back in its stored envelope form is kept as is.
func (s *Service) Save(ctx context.Context, tenantID string, in SaveWalletInput) (*Wallet, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("tenant_id", tenantID),
	)

	existing, err := s.repo.FindOne(ctx, &Wallet{TenantID: tenantID})
	if err != nil {
		zapLog.Error("failed query get wallet by tenant", zap.Error(err))
		return nil, errutil.Internal("failed to save wallet", errutil.WithErr(err))
	}

	rotated := !envelope.IsEnvelope(in.PublicKey) ||
		!envelope.IsEnvelope(in.SecretKey) ||
		(in.WebhookSecret != nil && *in.WebhookSecret != "" && !envelope.IsEnvelope(*in.WebhookSecret))

	record := existing
	if record == nil {
		record = &Wallet{
			ID:                 s.node.Generate().String(),
			TenantID:           tenantID,
			IsActive:           true,
			VerificationStatus: VerificationNever,
		}
	}

	record.PublicKey = in.PublicKey
	record.SecretKey = in.SecretKey
	switch {
	case in.WebhookSecret == nil:
		// absent means keep whatever is stored
	case *in.WebhookSecret == "":
		record.WebhookSecret = nil
	default:
		record.WebhookSecret = in.WebhookSecret
	}

	if err := s.EncryptOnWrite(record); err != nil {
		zapLog.Error("failed to encrypt wallet fields", zap.Error(err))
		return nil, errutil.New(errutil.StatusInternal, "failed to secure credentials", errutil.WithErr(err))
	}

	if existing != nil && rotated {
		record.VerificationStatus = VerificationPending
	}

	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		zapLog.Error("failed to persist wallet", zap.Error(err))
		return nil, errutil.Internal("failed to save wallet", errutil.WithErr(err))
	}

	return record, nil
}

// GetByTenant returns (nil, nil) when the tenant has no wallet; callers
// decide whether absence is an error.
func (s *Service) GetByTenant(ctx context.Context, tenantID string) (*Wallet, error) {
	record, err := s.repo.FindOne(ctx, &Wallet{TenantID: tenantID})
	if err != nil {
		zap.L().Error("failed query get wallet by tenant", zap.Error(err))
		return nil, errutil.Internal("failed to get wallet", errutil.WithErr(err))
	}
	return record, nil
}

func (s *Service) ListWallets(ctx context.Context, page pagination.Pagination) ([]*Wallet, error) {
	wallets, err := s.repo.Find(ctx, &Wallet{}, option.ApplyPagination(page))
	if err != nil {
		zap.L().Error("failed to list wallets", zap.Error(err))
		return nil, errutil.Internal("failed to list wallets", errutil.WithErr(err))
	}
	return wallets, nil
}

// Deactivate soft-disables a wallet. Records are never physically deleted.
func (s *Service) Deactivate(ctx context.Context, tenantID string) error {
	record, err := s.GetByTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if record == nil {
		return errutil.NotFound("wallet not found")
	}

	if err := s.repo.Update(ctx, record.ID, map[string]any{
		"is_active":  false,
		"updated_at": time.Now(),
	}); err != nil {
		zap.L().Error("failed to deactivate wallet", zap.String("tenant_id", tenantID), zap.Error(err))
		return errutil.Internal("failed to deactivate wallet", errutil.WithErr(err))
	}
	return nil
}

// RecordVerification writes back the outcome of a verification probe. A
// failed probe is a normal business outcome, recorded rather than raised.
func (s *Service) RecordVerification(ctx context.Context, w *Wallet, valid bool, detail string) error {
	now := time.Now()
	values := map[string]any{
		"last_verified_at": now,
		"updated_at":       now,
	}
	if valid {
		values["verification_status"] = VerificationVerified
		values["last_verification_error"] = nil
	} else {
		values["verification_status"] = VerificationFailed
		values["last_verification_error"] = detail
	}

	if err := s.repo.Update(ctx, w.ID, values); err != nil {
		zap.L().Error("failed to record verification result", zap.String("tenant_id", w.TenantID), zap.Error(err))
		return errutil.Internal("failed to record verification result", errutil.WithErr(err))
	}
	return nil
}
