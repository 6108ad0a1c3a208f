package web

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sweeney/ac-controller/internal/inbox"
	"github.com/sweeney/ac-controller/internal/logger"
	"github.com/sweeney/ac-controller/internal/logic"
	"github.com/sweeney/ac-controller/internal/status"
	"github.com/sweeney/ac-controller/internal/store"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 500
)

// Handler wires the HTTP layer to the tracker and the command inbox.
type Handler struct {
	tracker *status.Tracker
	inbox   *inbox.Inbox
	events  EventSource
	log     *logger.Logger
}

// NewHandler constructs the HTTP handler.
func NewHandler(tracker *status.Tracker, in *inbox.Inbox, events EventSource, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	if events == nil {
		events = trackerEvents{tracker}
	}
	return &Handler{tracker: tracker, inbox: in, events: events, log: log}
}

// InitRoutes builds the gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", h.index)
	router.GET("/index.html", h.index)
	router.GET("/health", h.health)

	api := router.Group("/api/v1")
	{
		api.GET("/status", h.status)
		api.GET("/events", h.listEvents)
		// Body example: {"command":"learn"}
		api.POST("/command", h.postCommand)
	}
	return router
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) index(c *gin.Context) {
	var buf bytes.Buffer
	if err := renderHTML(&buf, h.tracker.Snapshot()); err != nil {
		h.log.Errorw("render_index_failed", "err", err)
		c.String(http.StatusInternalServerError, "render failed")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, status.Build(h.tracker.Snapshot()))
}

func (h *Handler) listEvents(c *gin.Context) {
	limit := defaultEventLimit
	if qs := c.Query("limit"); qs != "" {
		n, err := strconv.Atoi(qs)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := h.events.Recent(c.Request.Context(), limit)
	if err != nil {
		h.log.Errorw("events_list_failed", "err", err, "limit", limit)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load events"})
		return
	}
	if events == nil {
		events = []store.JournalEntry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

type commandRequest struct {
	Command string `json:"command" binding:"required"`
}

func (h *Handler) postCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Command) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": `body must be {"command":"<payload>"}`})
		return
	}
	if len(req.Command) > logic.MaxPayload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "command longer than " + strconv.Itoa(logic.MaxPayload) + " bytes"})
		return
	}
	if !h.inbox.Push(inbox.SourceHTTP, []byte(req.Command)) {
		h.log.Warnw("command_dropped", "command", req.Command)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "command queue full"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": req.Command})
}

// trackerEvents serves the in-memory history when no journal is configured.
type trackerEvents struct {
	tracker *status.Tracker
}

func (t trackerEvents) Recent(_ context.Context, limit int) ([]store.JournalEntry, error) {
	return t.tracker.Events(limit), nil
}
