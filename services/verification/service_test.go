package verification

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"donorplane/pkg/config"
	"donorplane/services/testutil"
	"donorplane/services/vault"
	"donorplane/services/wallet"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T, gatewayURL string) (*Service, *wallet.Service) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Vault.MasterKey = hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	cfg.Gateway.BaseURL = gatewayURL
	cfg.Gateway.ProbeTimeout = 5 * time.Second

	db := testutil.NewTestDB(t, &wallet.Wallet{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	wallets := wallet.NewService(wallet.ServiceParams{DB: db, Node: node, Config: cfg})
	svc := NewService(ServiceParams{
		Gateway: NewHTTPGateway(cfg),
		Wallets: wallets,
		Config:  cfg,
	})
	return svc, wallets
}

func TestVerifyWalletSuccess(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":true}`))
	}))
	defer ts.Close()

	svc, wallets := newTestService(t, ts.URL)
	ctx := context.Background()

	_, err := wallets.Save(ctx, "tenant_1", wallet.SaveWalletInput{
		PublicKey: "pk_live_abc123",
		SecretKey: "sk_live_def456",
	})
	require.NoError(t, err)

	record, err := svc.VerifyWallet(ctx, "tenant_1")
	require.NoError(t, err)
	require.Equal(t, wallet.VerificationVerified, record.VerificationStatus)
	require.Nil(t, record.LastVerificationError)
	require.NotNil(t, record.LastVerifiedAt)
	require.WithinDuration(t, time.Now(), *record.LastVerifiedAt, 5*time.Second)

	// the probe authenticates with the decrypted secret key, Basic style
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("sk_live_def456:"))
	require.Equal(t, want, gotAuth)
}

func TestVerifyWalletAuthenticationFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	svc, wallets := newTestService(t, ts.URL)
	ctx := context.Background()

	_, err := wallets.Save(ctx, "tenant_1", wallet.SaveWalletInput{
		PublicKey: "pk_live_abc123",
		SecretKey: "sk_live_wrong",
	})
	require.NoError(t, err)

	record, err := svc.VerifyWallet(ctx, "tenant_1")
	require.NoError(t, err)
	require.Equal(t, wallet.VerificationFailed, record.VerificationStatus)
	require.NotNil(t, record.LastVerificationError)
	require.Equal(t, "authentication failed", *record.LastVerificationError)
	require.NotNil(t, record.LastVerifiedAt)
}

func TestVerifyWalletGatewayError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"message":"gateway under maintenance"}`))
	}))
	defer ts.Close()

	svc, wallets := newTestService(t, ts.URL)
	ctx := context.Background()

	_, err := wallets.Save(ctx, "tenant_1", wallet.SaveWalletInput{
		PublicKey: "pk_live_abc123",
		SecretKey: "sk_live_def456",
	})
	require.NoError(t, err)

	record, err := svc.VerifyWallet(ctx, "tenant_1")
	require.NoError(t, err)
	require.Equal(t, wallet.VerificationFailed, record.VerificationStatus)
	require.Equal(t, "gateway under maintenance", *record.LastVerificationError)
}

func TestVerifyWalletTransportFailure(t *testing.T) {
	// point the gateway at a closed port
	svc, wallets := newTestService(t, "http://127.0.0.1:1")
	ctx := context.Background()

	_, err := wallets.Save(ctx, "tenant_1", wallet.SaveWalletInput{
		PublicKey: "pk_live_abc123",
		SecretKey: "sk_live_def456",
	})
	require.NoError(t, err)

	record, err := svc.VerifyWallet(ctx, "tenant_1")
	require.NoError(t, err)
	require.Equal(t, wallet.VerificationFailed, record.VerificationStatus)
	require.NotNil(t, record.LastVerificationError)
	require.NotEmpty(t, *record.LastVerificationError)
}

func TestVerifyWalletNotFound(t *testing.T) {
	svc, _ := newTestService(t, "http://127.0.0.1:1")

	_, err := svc.VerifyWallet(context.Background(), "missing")
	require.ErrorIs(t, err, vault.ErrWalletNotFound)
}

func TestVerifyWalletOverwritesPreviousResult(t *testing.T) {
	status := http.StatusUnauthorized
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer ts.Close()

	svc, wallets := newTestService(t, ts.URL)
	ctx := context.Background()

	_, err := wallets.Save(ctx, "tenant_1", wallet.SaveWalletInput{
		PublicKey: "pk_live_abc123",
		SecretKey: "sk_live_def456",
	})
	require.NoError(t, err)

	record, err := svc.VerifyWallet(ctx, "tenant_1")
	require.NoError(t, err)
	require.Equal(t, wallet.VerificationFailed, record.VerificationStatus)

	status = http.StatusOK
	record, err = svc.VerifyWallet(ctx, "tenant_1")
	require.NoError(t, err)
	require.Equal(t, wallet.VerificationVerified, record.VerificationStatus)
	require.Nil(t, record.LastVerificationError)
}
