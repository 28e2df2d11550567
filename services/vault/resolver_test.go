package vault

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"donorplane/pkg/config"
	"donorplane/services/testutil"
	"donorplane/services/wallet"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Vault.MasterKey = hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	cfg.Platform.PublicKey = "pk_platform_9999"
	cfg.Platform.SecretKey = "sk_platform_8888"
	cfg.Platform.WebhookSecret = "whsec_platform_7777"
	return cfg
}

func newTestResolver(t *testing.T, cfg *config.Config) (*Resolver, *wallet.Service) {
	t.Helper()
	db := testutil.NewTestDB(t, &wallet.Wallet{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	wallets := wallet.NewService(wallet.ServiceParams{DB: db, Node: node, Config: cfg})
	resolver := NewResolver(ResolverParams{Config: cfg, Wallets: wallets})
	return resolver, wallets
}

func TestResolveTenantSuccess(t *testing.T) {
	resolver, wallets := newTestResolver(t, testConfig())
	ctx := context.Background()

	webhook := "whsec_tenant_1"
	_, err := wallets.Save(ctx, "tenant_1", wallet.SaveWalletInput{
		PublicKey:     "pk_live_abc123",
		SecretKey:     "sk_live_def456",
		WebhookSecret: &webhook,
	})
	require.NoError(t, err)

	cc, err := resolver.ResolveTenant(ctx, "tenant_1")
	require.NoError(t, err)
	require.Equal(t, "pk_live_abc123", cc.PublicKey)
	require.Equal(t, "sk_live_def456", cc.SecretKey)
	require.NotNil(t, cc.WebhookSecret)
	require.Equal(t, "whsec_tenant_1", *cc.WebhookSecret)
}

func TestResolveTenantNotFound(t *testing.T) {
	resolver, _ := newTestResolver(t, testConfig())

	_, err := resolver.ResolveTenant(context.Background(), "missing")
	require.ErrorIs(t, err, ErrWalletNotFound)
}

func TestResolveTenantInactive(t *testing.T) {
	resolver, wallets := newTestResolver(t, testConfig())
	ctx := context.Background()

	_, err := wallets.Save(ctx, "tenant_1", wallet.SaveWalletInput{
		PublicKey: "pk_live_abc123",
		SecretKey: "sk_live_def456",
	})
	require.NoError(t, err)
	require.NoError(t, wallets.Deactivate(ctx, "tenant_1"))

	_, err = resolver.ResolveTenant(ctx, "tenant_1")
	require.ErrorIs(t, err, ErrWalletInactive)
}

func TestResolvePlatformDefault(t *testing.T) {
	resolver, _ := newTestResolver(t, testConfig())

	cc, err := resolver.ResolvePlatformDefault()
	require.NoError(t, err)
	require.Equal(t, "pk_platform_9999", cc.PublicKey)
	require.Equal(t, "sk_platform_8888", cc.SecretKey)
	require.NotNil(t, cc.WebhookSecret)
	require.Equal(t, "whsec_platform_7777", *cc.WebhookSecret)
}

func TestResolvePlatformDefaultMissing(t *testing.T) {
	cfg := testConfig()
	cfg.Platform.SecretKey = ""
	resolver, _ := newTestResolver(t, cfg)

	_, err := resolver.ResolvePlatformDefault()
	require.ErrorIs(t, err, ErrPlatformCredentialsMissing)
}

func TestResolveWebhookSecretPlatform(t *testing.T) {
	resolver, _ := newTestResolver(t, testConfig())

	secret := resolver.ResolveWebhookSecret(context.Background(), nil)
	require.NotNil(t, secret)
	require.Equal(t, "whsec_platform_7777", *secret)
}

func TestResolveWebhookSecretPlatformUnconfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Platform.WebhookSecret = ""
	resolver, _ := newTestResolver(t, cfg)

	require.Nil(t, resolver.ResolveWebhookSecret(context.Background(), nil))
}

func TestResolveWebhookSecretTenant(t *testing.T) {
	resolver, wallets := newTestResolver(t, testConfig())
	ctx := context.Background()

	webhook := "whsec_tenant_1"
	_, err := wallets.Save(ctx, "tenant_1", wallet.SaveWalletInput{
		PublicKey:     "pk_live_abc123",
		SecretKey:     "sk_live_def456",
		WebhookSecret: &webhook,
	})
	require.NoError(t, err)

	tenantID := "tenant_1"
	secret := resolver.ResolveWebhookSecret(ctx, &tenantID)
	require.NotNil(t, secret)
	require.Equal(t, "whsec_tenant_1", *secret)
}

// a missing wallet, an inactive wallet and a wallet without a webhook
// secret all resolve to nil rather than erroring
func TestResolveWebhookSecretNeverErrors(t *testing.T) {
	resolver, wallets := newTestResolver(t, testConfig())
	ctx := context.Background()

	missing := "missing"
	require.Nil(t, resolver.ResolveWebhookSecret(ctx, &missing))

	_, err := wallets.Save(ctx, "no_webhook", wallet.SaveWalletInput{
		PublicKey: "pk_live_abc123",
		SecretKey: "sk_live_def456",
	})
	require.NoError(t, err)
	noWebhook := "no_webhook"
	require.Nil(t, resolver.ResolveWebhookSecret(ctx, &noWebhook))

	_, err = wallets.Save(ctx, "inactive", wallet.SaveWalletInput{
		PublicKey: "pk_live_abc123",
		SecretKey: "sk_live_def456",
	})
	require.NoError(t, err)
	require.NoError(t, wallets.Deactivate(ctx, "inactive"))
	inactive := "inactive"
	require.Nil(t, resolver.ResolveWebhookSecret(ctx, &inactive))
}
