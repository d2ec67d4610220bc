package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tap-terminal/internal/api"
	"tap-terminal/internal/config"
	"tap-terminal/internal/models"
	"tap-terminal/internal/session"
	"tap-terminal/internal/sound"
)

// TerminalHandler is the local HTTP surface the operator UI drives. It
// only exposes the button-level actions; everything else is state the UI
// polls.
type TerminalHandler struct {
	controller *session.Controller
	issuer     *sound.Issuer
	redeemer   *sound.Redeemer
	config     *config.Config
}

func NewTerminalHandler(
	controller *session.Controller,
	issuer *sound.Issuer,
	redeemer *sound.Redeemer,
	cfg *config.Config,
) *TerminalHandler {
	return &TerminalHandler{
		controller: controller,
		issuer:     issuer,
		redeemer:   redeemer,
		config:     cfg,
	}
}

// POST /api/payment/start - begin a payment attempt on a transport
func (h *TerminalHandler) StartPayment(c *gin.Context) {
	var req struct {
		Transport       string          `json:"transport" binding:"required"`
		Amount          decimal.Decimal `json:"amount"`
		TipAmount       decimal.Decimal `json:"tip_amount"`
		PaymentID       string          `json:"payment_id" binding:"required"`
		CheckoutSession bool            `json:"checkout_session"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{Error: "Invalid request format"})
		return
	}

	ref := models.PaymentRef{Kind: models.RefPaymentLink, ID: req.PaymentID}
	if req.CheckoutSession {
		ref.Kind = models.RefCheckoutSession
	}

	// The attempt outlives this request: the 202 returns while the scan
	// is still running, so it must not die with the request context.
	err := h.controller.Start(context.WithoutCancel(c.Request.Context()), session.StartParams{
		Transport: models.Transport(req.Transport),
		Ref:       ref,
		Amount:    req.Amount,
		TipAmount: req.TipAmount,
	})
	if err != nil {
		status, body := classifyHandlerError(err)
		c.JSON(status, body)
		return
	}

	c.Status(http.StatusAccepted)
}

// POST /api/payment/cancel - stop scanning and return to idle
func (h *TerminalHandler) CancelPayment(c *gin.Context) {
	if err := h.controller.Cancel(); err != nil {
		c.JSON(http.StatusConflict, api.APIError{Error: err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

// POST /api/payment/reset - consume a terminal state
func (h *TerminalHandler) ResetPayment(c *gin.Context) {
	h.controller.Reset()
	c.Status(http.StatusOK)
}

// GET /api/payment/status - current session snapshot for UI polling
func (h *TerminalHandler) PaymentStatus(c *gin.Context) {
	snap := h.controller.Snapshot()
	if snap == nil {
		c.JSON(http.StatusOK, gin.H{"state": models.StateIdle})
		return
	}

	resp := gin.H{
		"state":     snap.State,
		"transport": snap.Transport,
		"session":   snap.ID,
	}
	if snap.LastError != nil {
		resp["error_kind"] = snap.LastError.Kind
		resp["error"] = snap.LastError.Message
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/transports - which proximity channels this device offers;
// the UI hides unsupported affordances instead of showing errors
func (h *TerminalHandler) Transports(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"nfc":   h.controller.Supported(models.TransportNFC),
		"sound": h.controller.Supported(models.TransportSound),
	})
}

// POST /api/sound/broadcast - vendor side: emit a one-time token
func (h *TerminalHandler) SoundBroadcast(c *gin.Context) {
	var req struct {
		PaymentID string `json:"payment_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{Error: "Invalid request format"})
		return
	}

	// Same detachment as StartPayment: the broadcast continues after the
	// 202 is written.
	err := h.issuer.Broadcast(context.WithoutCancel(c.Request.Context()),
		req.PaymentID, h.config.Store.ID, h.config.Store.APISecret)
	if err != nil {
		c.JSON(http.StatusConflict, api.APIError{Error: err.Error()})
		return
	}

	c.Status(http.StatusAccepted)
}

// GET /api/sound/status - issuer display state
func (h *TerminalHandler) SoundStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": h.issuer.State()})
}

// POST /api/sound/cancel - stop the local broadcast
func (h *TerminalHandler) SoundCancel(c *gin.Context) {
	h.issuer.Cancel()
	c.Status(http.StatusOK)
}

// GET /api/sound/redeem/:token - payer side: look up what a heard token
// is asking for, so the payer can confirm the amount
func (h *TerminalHandler) SoundRedeemInfo(c *gin.Context) {
	info, err := h.redeemer.Lookup(c.Request.Context(), c.Param("token"))
	if err != nil {
		var serr *models.SessionError
		if errors.As(err, &serr) {
			c.JSON(http.StatusNotFound, api.APIError{Error: serr.Message})
			return
		}
		c.JSON(http.StatusBadGateway, api.APIError{Error: "Failed to redeem token"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// POST /api/sound/pay - payer side: verify the token and settle
func (h *TerminalHandler) SoundPay(c *gin.Context) {
	var req struct {
		Token          string          `json:"token" binding:"required"`
		CustomerWallet string          `json:"customer_wallet"`
		PaymentID      string          `json:"payment_id" binding:"required"`
		TipAmount      decimal.Decimal `json:"tip_amount"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{Error: "Invalid request format"})
		return
	}

	// A payer-mode terminal pays with its own configured wallet unless
	// the request names another.
	wallet := req.CustomerWallet
	if wallet == "" {
		wallet = h.config.Wallet.Address
	}
	if wallet == "" {
		c.JSON(http.StatusUnauthorized, api.APIError{Error: "Please login to pay"})
		return
	}

	err := h.redeemer.Redeem(c.Request.Context(), req.Token, wallet, req.PaymentID, req.TipAmount)
	if err != nil {
		status, body := classifyHandlerError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": h.redeemer.State()})
}

// GET /health
func (h *TerminalHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"store":  h.config.Store.Name,
	})
}

func classifyHandlerError(err error) (int, api.APIError) {
	if errors.Is(err, session.ErrAttemptInProgress) {
		return http.StatusConflict, api.APIError{Error: err.Error()}
	}

	var serr *models.SessionError
	if errors.As(err, &serr) {
		switch serr.Kind {
		case models.ErrUnsupported:
			return http.StatusNotImplemented, api.APIError{Error: serr.Message}
		case models.ErrKeyUnavailable:
			return http.StatusUnauthorized, api.APIError{Error: serr.Message}
		default:
			return http.StatusBadRequest, api.APIError{Error: serr.Message}
		}
	}

	return http.StatusInternalServerError, api.APIError{Error: "Internal error"}
}
