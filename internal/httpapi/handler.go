// Package httpapi exposes the administrative HTTP surface. Handlers stay
// thin: every invariant lives in the services they call.
package httpapi

import (
	"net/http"

	"donorplane/pkg/db/pagination"
	"donorplane/pkg/envelope"
	"donorplane/pkg/health"
	"donorplane/pkg/middleware"
	"donorplane/services/event"
	"donorplane/services/routing"
	"donorplane/services/tenant"
	"donorplane/services/verification"
	"donorplane/services/wallet"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type Handler struct {
	tenants  *tenant.Service
	events   *event.Service
	wallets  *wallet.Service
	verifier *verification.Service
	router   *routing.Engine
	health   health.HealthService
}

type HandlerParams struct {
	fx.In
	Tenants  *tenant.Service
	Events   *event.Service
	Wallets  *wallet.Service
	Verifier *verification.Service
	Router   *routing.Engine
	Health   health.HealthService
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		tenants:  p.Tenants,
		events:   p.Events,
		wallets:  p.Wallets,
		verifier: p.Verifier,
		router:   p.Router,
		health:   p.Health,
	}
}

// ProvideHandler builds the gin engine served by pkg/server.
func ProvideHandler(h *Handler) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Error())

	r.GET("/healthz", h.health.Liveness)
	r.GET("/readyz", h.health.Readiness)

	v1 := r.Group("/v1")
	{
		v1.POST("/tenants", h.createTenant)
		v1.GET("/tenants", h.listTenants)
		v1.GET("/tenants/:tenant_id", h.getTenant)
		v1.GET("/wallets", h.listWallets)

		v1.GET("/tenants/:tenant_id/wallet", h.getWallet)
		v1.PUT("/tenants/:tenant_id/wallet", h.saveWallet)
		v1.DELETE("/tenants/:tenant_id/wallet", h.deactivateWallet)
		v1.POST("/tenants/:tenant_id/wallet/verify", h.verifyWallet)

		v1.POST("/events", h.createEvent)

		v1.POST("/donations/route", h.routeDonation)
	}

	return r
}

func (h *Handler) createTenant(c *gin.Context) {
	var in tenant.CreateTenantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "bad_request", "message": err.Error()}})
		return
	}

	record, err := h.tenants.CreateTenant(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

func (h *Handler) getTenant(c *gin.Context) {
	record, err := h.tenants.GetTenant(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// walletResponse is the only wallet shape the API ever returns: masked
// credentials plus verification state.
type walletResponse struct {
	TenantID    string                    `json:"tenant_id"`
	IsActive    bool                      `json:"is_active"`
	Status      wallet.VerificationStatus `json:"verification_status"`
	LastError   *string                   `json:"last_verification_error,omitempty"`
	Credentials *wallet.MaskedCredentials `json:"credentials"`
}

func (h *Handler) walletResponse(w *wallet.Wallet) walletResponse {
	return walletResponse{
		TenantID:    w.TenantID,
		IsActive:    w.IsActive,
		Status:      w.VerificationStatus,
		LastError:   w.LastVerificationError,
		Credentials: h.wallets.MaskedView(w),
	}
}

func (h *Handler) getWallet(c *gin.Context) {
	record, err := h.wallets.GetByTenant(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": "wallet not found"}})
		return
	}

	c.JSON(http.StatusOK, h.walletResponse(record))
}

func (h *Handler) saveWallet(c *gin.Context) {
	var in wallet.SaveWalletInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "bad_request", "message": err.Error()}})
		return
	}

	record, err := h.wallets.Save(c.Request.Context(), c.Param("tenant_id"), in)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, h.walletResponse(record))
}

func (h *Handler) deactivateWallet(c *gin.Context) {
	if err := h.wallets.Deactivate(c.Request.Context(), c.Param("tenant_id")); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) verifyWallet(c *gin.Context) {
	record, err := h.verifier.VerifyWallet(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, h.walletResponse(record))
}

func (h *Handler) createEvent(c *gin.Context) {
	var in event.CreateEventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "bad_request", "message": err.Error()}})
		return
	}

	record, err := h.events.CreateEvent(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// routeDonation previews a routing decision. Only the masked public key
// leaves the process; the decrypted config stays with in-process callers.
func (h *Handler) routeDonation(c *gin.Context) {
	var dc routing.DonationContext
	if err := c.ShouldBindJSON(&dc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "bad_request", "message": err.Error()}})
		return
	}

	decision, err := h.router.Route(c.Request.Context(), dc)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tenant_id":  decision.TenantID,
		"public_key": envelope.Mask(decision.Config.PublicKey),
	})
}

func (h *Handler) listTenants(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "bad_request", "message": err.Error()}})
		return
	}

	tenants, err := h.tenants.ListTenants(c.Request.Context(), page)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tenants": tenants})
}

func (h *Handler) listWallets(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "bad_request", "message": err.Error()}})
		return
	}

	wallets, err := h.wallets.ListWallets(c.Request.Context(), page)
	if err != nil {
		_ = c.Error(err)
		return
	}

	out := make([]walletResponse, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, h.walletResponse(w))
	}

	c.JSON(http.StatusOK, gin.H{"wallets": out})
}

var Module = fx.Module("httpapi",
	fx.Provide(
		NewHandler,
		ProvideHandler,
	),
)
