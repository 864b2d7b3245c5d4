package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printdesk/printdesk/internal/core"
	"github.com/printdesk/printdesk/internal/notify"
	"github.com/printdesk/printdesk/internal/webhook"
)

type PingRequest struct {
	TerminalID string `json:"terminal_id" binding:"required"`
	AuthKey    string `json:"auth_key" binding:"required"`
}

type ReportRequest struct {
	TerminalID string            `json:"terminal_id" binding:"required"`
	AuthKey    string            `json:"auth_key" binding:"required"`
	Settings   map[string]string `json:"settings" binding:"required"`
}

type ScanRequest struct {
	TerminalID string `json:"terminal_id" binding:"required"`
	AuthKey    string `json:"auth_key" binding:"required"`
	RFID       string `json:"rfid" binding:"required"`
}

// TerminalHandler is the device-facing protocol surface: heartbeat,
// configuration reconciliation and badge scans. No JWT here; terminals
// carry their credentials in every request.
type TerminalHandler struct {
	registry   *core.Registry
	dispatcher *core.Dispatcher
	notifier   *notify.Registry
	hooks      *webhook.Sender
}

func NewTerminalHandler(registry *core.Registry, dispatcher *core.Dispatcher, notifier *notify.Registry, hooks *webhook.Sender) *TerminalHandler {
	return &TerminalHandler{
		registry:   registry,
		dispatcher: dispatcher,
		notifier:   notifier,
		hooks:      hooks,
	}
}

func (h *TerminalHandler) Ping(c *gin.Context) {
	var req PingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "terminal_id and auth_key are required"})
		return
	}

	result, err := h.registry.Ping(c.Request.Context(), req.TerminalID, req.AuthKey)
	if err != nil {
		if errors.Is(err, core.ErrTerminalAuth) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// Stale terminals get the full canonical configuration flattened into
	// the response, which is what the device firmware expects to apply.
	response := gin.H{
		"update_flag": result.UpdateFlag,
		"last_ping":   result.LastPing,
	}
	for key, value := range result.Config {
		response[key] = value
	}
	c.JSON(http.StatusOK, response)
}

func (h *TerminalHandler) Update(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "terminal_id, auth_key and settings are required"})
		return
	}

	result, err := h.registry.ApplyReport(c.Request.Context(), req.TerminalID, req.AuthKey, req.Settings)
	if err != nil {
		if errors.Is(err, core.ErrTerminalAuth) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if result.UpdateFlag == 1 {
		h.hooks.Send(webhook.EventTerminalStale, webhook.TerminalEventData{
			TerminalID: req.TerminalID,
			UpdateFlag: result.UpdateFlag,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"update_flag": result.UpdateFlag,
		"last_ping":   result.LastPing,
	})
}

func (h *TerminalHandler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "terminal_id, auth_key and rfid are required"})
		return
	}

	record, err := h.dispatcher.Scan(c.Request.Context(), req.TerminalID, req.AuthKey, req.RFID)
	if err != nil {
		var printErr *core.PrintError
		switch {
		case errors.Is(err, core.ErrTerminalAuth):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		case errors.Is(err, core.ErrTerminalInactive):
			c.JSON(http.StatusForbidden, gin.H{"error": "Terminal is not active"})
		case errors.Is(err, core.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "No matching user or queued file found"})
		case errors.As(err, &printErr):
			h.hooks.Send(webhook.EventPrintFailed, webhook.JobEventData{
				TerminalID: req.TerminalID,
				Error:      printErr.Err.Error(),
			})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Print job failed", "details": printErr.Err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	h.notifier.Notify(record.Username, notify.Event{Type: notify.EventQueueChanged})
	h.notifier.Notify(record.Username, notify.Event{Type: notify.EventBalanceChanged})
	h.hooks.Send(webhook.EventJobPrinted, webhook.JobEventData{
		PrintID:    record.PrintID,
		Username:   record.Username,
		TerminalID: record.TerminalID,
		Pages:      record.Pages,
		Bill:       record.Bill,
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "Print job completed successfully",
		"file":    record,
	})
}
