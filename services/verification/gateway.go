package verification

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"donorplane/pkg/config"
)

// Result is the outcome of one credential probe against the remote gateway.
// A failed probe is data, not an error: the network call completing is
// enough for the workflow to record an outcome.
type Result struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Gateway probes a credential pair against the remote payment gateway.
type Gateway interface {
	VerifyCredentials(ctx context.Context, publicKey, secretKey string) Result
}

type httpGateway struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGateway(cfg *config.Config) Gateway {
	return &httpGateway{
		baseURL: cfg.Gateway.BaseURL,
		client: &http.Client{
			Timeout: cfg.Gateway.ProbeTimeout,
		},
	}
}

// VerifyCredentials issues one lightweight read against the gateway using
// the secret key as an HTTP Basic credential (base64 of "secretKey:"),
// the gateway's standard authentication scheme.
func (g *httpGateway) VerifyCredentials(ctx context.Context, publicKey, secretKey string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/balance", nil)
	if err != nil {
		return Result{Valid: false, Error: err.Error()}
	}
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(secretKey+":")))
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{Valid: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Result{Valid: true}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{Valid: false, Error: "authentication failed"}
	default:
		return Result{Valid: false, Error: gatewayDetail(resp)}
	}
}

// gatewayDetail pulls the gateway's error message out of a non-2xx body,
// falling back to the HTTP status.
func gatewayDetail(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(body) > 0 {
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil {
			if payload.Message != "" {
				return payload.Message
			}
			if payload.Error != "" {
				return payload.Error
			}
		}
	}
	return fmt.Sprintf("gateway returned status %d", resp.StatusCode)
}
