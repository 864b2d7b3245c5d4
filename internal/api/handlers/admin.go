package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printdesk/printdesk/internal/core"
	"github.com/printdesk/printdesk/internal/db"
	"github.com/printdesk/printdesk/internal/notify"
)

type ProvisionTerminalRequest struct {
	TerminalID string `json:"terminal_id" binding:"required"`
	AuthKey    string `json:"auth_key" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Printer    string `json:"printer" binding:"required"`
	Location   string `json:"location"`
	Endpoint   string `json:"endpoint"`
	SSID       string `json:"ssid"`
	Password   string `json:"password"`
	Comment    string `json:"comment"`
}

type UpdateTerminalRequest struct {
	Config  map[string]string `json:"config"`
	Status  *int64            `json:"status"`
	Comment string            `json:"comment"`
}

type CreditRequest struct {
	Username string `json:"username" binding:"required"`
	Amount   int64  `json:"amount" binding:"required"`
}

// AdminHandler is the operator surface: terminal provisioning and credit
// top-ups. Guarded by the shared admin key, not user sessions.
type AdminHandler struct {
	ledger   *core.Ledger
	registry *core.Registry
	notifier *notify.Registry
}

func NewAdminHandler(ledger *core.Ledger, registry *core.Registry, notifier *notify.Registry) *AdminHandler {
	return &AdminHandler{ledger: ledger, registry: registry, notifier: notifier}
}

func (h *AdminHandler) ProvisionTerminal(c *gin.Context) {
	var req ProvisionTerminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	terminal := &db.Terminal{
		TerminalID: req.TerminalID,
		AuthKey:    req.AuthKey,
		Name:       req.Name,
		Printer:    req.Printer,
		Location:   req.Location,
		Endpoint:   req.Endpoint,
		SSID:       req.SSID,
		Password:   req.Password,
		Status:     db.TerminalInactive,
		Comment:    req.Comment,
	}
	if err := h.registry.Provision(c.Request.Context(), terminal); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to provision terminal"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Terminal provisioned", "terminal_id": terminal.TerminalID})
}

func (h *AdminHandler) UpdateTerminal(c *gin.Context) {
	terminalID := c.Param("id")

	var req UpdateTerminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if len(req.Config) > 0 {
		if err := h.registry.UpdateConfig(ctx, terminalID, req.Config); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"message": "Terminal not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
	}
	if req.Status != nil {
		if err := h.registry.SetStatus(ctx, terminalID, *req.Status, req.Comment); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"message": "Terminal not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update terminal"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Terminal updated"})
}

func (h *AdminHandler) Credit(c *gin.Context) {
	var req CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username and amount are required"})
		return
	}

	if err := h.ledger.Credit(c.Request.Context(), req.Username, req.Amount); err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Amount must be positive"})
		case errors.Is(err, core.ErrAccountNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "Account not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		}
		return
	}

	h.notifier.Notify(req.Username, notify.Event{Type: notify.EventBalanceChanged})
	c.JSON(http.StatusOK, gin.H{"message": "Balance credited"})
}
