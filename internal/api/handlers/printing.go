package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printdesk/printdesk/internal/api/middleware"
	"github.com/printdesk/printdesk/internal/core"
	"github.com/printdesk/printdesk/internal/db"
	"github.com/printdesk/printdesk/internal/notify"
	"github.com/printdesk/printdesk/internal/storage"
	"github.com/printdesk/printdesk/internal/webhook"
)

type DeleteRequest struct {
	PrintID int64 `json:"print_id" binding:"required"`
}

type PriorityRequest struct {
	FileID   string `json:"file_id" binding:"required"`
	Priority int64  `json:"priority"`
}

type PrintingHandler struct {
	queue    *core.Queue
	store    *storage.DiskStore
	pages    storage.PageCounter
	notifier *notify.Registry
	hooks    *webhook.Sender
}

func NewPrintingHandler(queue *core.Queue, store *storage.DiskStore, pages storage.PageCounter, notifier *notify.Registry, hooks *webhook.Sender) *PrintingHandler {
	return &PrintingHandler{
		queue:    queue,
		store:    store,
		pages:    pages,
		notifier: notifier,
		hooks:    hooks,
	}
}

// Upload stores the document, counts its pages and submits the job. The
// reservation and the queue entry are created atomically by the queue;
// when funds are insufficient the stored document is discarded again.
func (h *PrintingHandler) Upload(c *gin.Context) {
	username := middleware.Username(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No file uploaded"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to read upload"})
		return
	}
	defer f.Close()

	fileID, err := h.store.Save(f, fileHeader.Filename)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to store file"})
		return
	}

	pages, err := h.pages.Count(h.store.Path(fileID))
	if err != nil {
		h.store.Delete(fileID)
		c.JSON(http.StatusBadRequest, gin.H{"message": "Could not determine page count"})
		return
	}

	unitCost, err := h.queue.UnitCost(c.Request.Context())
	if err != nil {
		h.store.Delete(fileID)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	entry, err := h.queue.Submit(c.Request.Context(), username, fileHeader.Filename, fileID, pages, unitCost)
	if err != nil {
		h.store.Delete(fileID)
		if errors.Is(err, core.ErrInsufficientFunds) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Insufficient balance"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	h.notifier.Notify(username, notify.Event{Type: notify.EventQueueChanged})
	h.hooks.Send(webhook.EventJobQueued, webhook.JobEventData{
		PrintID:  entry.PrintID,
		Username: username,
		Pages:    entry.Pages,
		Bill:     entry.Bill,
	})

	c.JSON(http.StatusOK, gin.H{"message": "File uploaded successfully", "entry": entry})
}

func (h *PrintingHandler) Cost(c *gin.Context) {
	cost, err := h.queue.UnitCost(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error fetching print cost"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cost": cost})
}

func (h *PrintingHandler) Queue(c *gin.Context) {
	entries, err := h.queue.ListFor(c.Request.Context(), middleware.Username(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	if entries == nil {
		entries = []*db.QueueEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *PrintingHandler) Delete(c *gin.Context) {
	username := middleware.Username(c)

	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "print_id is required"})
		return
	}

	entry, err := h.queue.Cancel(c.Request.Context(), req.PrintID, username)
	if err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "File not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	// The ledger and queue are already consistent; a document that fails to
	// delete is an operator cleanup concern, not a request failure.
	h.store.Delete(entry.FileID)

	h.notifier.Notify(username, notify.Event{Type: notify.EventQueueChanged})
	h.hooks.Send(webhook.EventJobCancelled, webhook.JobEventData{
		PrintID:  entry.PrintID,
		Username: username,
		Bill:     entry.Bill,
	})

	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully and balance adjusted"})
}

func (h *PrintingHandler) Priority(c *gin.Context) {
	var req PriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "file_id is required"})
		return
	}

	err := h.queue.SetPriority(c.Request.Context(), req.FileID, middleware.Username(c), req.Priority)
	if err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "File not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File priority updated successfully"})
}

func (h *PrintingHandler) History(c *gin.Context) {
	entries, err := h.queue.HistoryFor(c.Request.Context(), middleware.Username(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	if entries == nil {
		entries = []*db.HistoryEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *PrintingHandler) Download(c *gin.Context) {
	fileID := c.Param("fileId")

	entry, err := h.queue.GetByFileID(c.Request.Context(), fileID)
	if err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "File not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	path := h.store.Path(entry.FileID)
	c.FileAttachment(path, entry.Filename)
}

func (h *PrintingHandler) Terminals(c *gin.Context) {
	terminals, err := db.Terminals.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error fetching terminals"})
		return
	}
	if terminals == nil {
		terminals = []*db.Terminal{}
	}
	c.JSON(http.StatusOK, terminals)
}
