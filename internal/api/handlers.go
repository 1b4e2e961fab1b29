// Package api implements the HTTP surface of the prospect discovery
// service: discovery lifecycle endpoints, an SSE progress stream, and
// health/metrics endpoints.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/prospect-discovery/internal/discovery"
	"github.com/jonesrussell/prospect-discovery/internal/domain"
	"github.com/jonesrussell/prospect-discovery/internal/logger"
	"github.com/jonesrussell/prospect-discovery/internal/quota"
	"github.com/jonesrussell/prospect-discovery/internal/sse"
	"github.com/jonesrussell/prospect-discovery/internal/websets"
)

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler holds dependencies for the discovery endpoints.
type Handler struct {
	service *discovery.Service
	logger  logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(service *discovery.Service, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// StartDiscovery handles POST /api/v1/discoveries.
func (h *Handler) StartDiscovery(c *gin.Context) {
	var req domain.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body: "+err.Error())
		return
	}

	snap, err := h.service.Start(c.Request.Context(), &req)
	if err != nil {
		h.respondStartError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, snap)
}

// respondStartError maps submission failures onto HTTP statuses.
func (h *Handler) respondStartError(c *gin.Context, err error) {
	var apiErr *websets.APIError

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, quota.ErrQuotaExceeded):
		respondError(c, http.StatusTooManyRequests, "QUOTA_EXCEEDED", err.Error())
	case errors.Is(err, websets.ErrMissingAPIKey):
		respondError(c, http.StatusServiceUnavailable, "PROVIDER_UNCONFIGURED", err.Error())
	case errors.As(err, &apiErr):
		respondError(c, http.StatusBadGateway, "PROVIDER_ERROR", err.Error())
	default:
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to start discovery")
	}
}

// GetDiscovery handles GET /api/v1/discoveries/:id. A known discovery
// id returns the loop's latest snapshot; an unknown id is treated as a
// remote job id and answered with one stand-alone merge tick, so
// callers that never started a loop can still poll. The optional
// target query parameter scales the completion percentage.
func (h *Handler) GetDiscovery(c *gin.Context) {
	id := c.Param("id")

	snap, err := h.service.Get(id)
	if errors.Is(err, discovery.ErrNotFound) {
		target, _ := strconv.Atoi(c.Query("target"))
		snap, err = h.service.PollOnce(c.Request.Context(), id, target)
	}
	if err != nil {
		h.respondPollError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// respondPollError maps pull failures onto HTTP statuses. A provider
// 404 means the id is neither a discovery nor a live remote job.
func (h *Handler) respondPollError(c *gin.Context, err error) {
	var apiErr *websets.APIError

	switch {
	case errors.Is(err, discovery.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.As(err, &apiErr):
		respondError(c, http.StatusBadGateway, "PROVIDER_ERROR", err.Error())
	default:
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to fetch discovery")
	}
}

// CancelDiscovery handles DELETE /api/v1/discoveries/:id.
func (h *Handler) CancelDiscovery(c *gin.Context) {
	if err := h.service.Cancel(c.Param("id")); err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "canceling"})
}

// StreamDiscovery handles GET /api/v1/discoveries/:id/stream. It
// replays the latest state immediately, then pushes every progress
// update until the discovery ends or the client disconnects.
func (h *Handler) StreamDiscovery(c *gin.Context) {
	id := c.Param("id")

	events, detach, err := h.service.Subscribe(id)
	if err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	defer detach()

	sse.SetHeaders(c.Writer)
	c.Writer.Flush()

	if writeErr := sse.WriteEvent(c.Writer, sse.NewConnectedEvent(id)); writeErr != nil {
		h.logger.Debug("SSE handshake write failed", logger.Error(writeErr))
		return
	}

	ticker := time.NewTicker(sse.DefaultHeartbeatInterval)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			frame, n := streamEvent(ev, sent)
			if writeErr := sse.WriteEvent(c.Writer, frame); writeErr != nil {
				h.logger.Debug("SSE write failed (client likely disconnected)", logger.Error(writeErr))
				return
			}
			sent = n
			if ev.State.Status.Terminal() {
				return
			}
		case <-ticker.C:
			if writeErr := sse.WriteHeartbeat(c.Writer); writeErr != nil {
				h.logger.Debug("SSE heartbeat failed (client disconnected)")
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}

// streamFrame is the wire shape of one push update: only the prospects
// not yet delivered on this connection, plus running counters.
type streamFrame struct {
	Prospects         []domain.Prospect `json:"prospects"`
	Found             int               `json:"found"`
	Analyzed          int               `json:"analyzed"`
	CompletionPercent int               `json:"completion_percent"`
	Status            domain.Status     `json:"status"`
	TotalProspects    int               `json:"total_prospects"`
	Message           string            `json:"message,omitempty"`
}

// streamEvent maps a discovery event onto its SSE representation. sent
// is the connection's delivery cursor: the frame carries only the
// prospects beyond it, and the returned cursor replaces it. Because
// every event holds the full accumulated set in first-seen order, a
// frame skipped for a slow consumer is recovered by the next one's
// tail.
func streamEvent(ev discovery.Event, sent int) (sse.Event, int) {
	eventType := sse.EventTypeProgress
	switch ev.State.Status {
	case domain.StatusCompleted:
		eventType = sse.EventTypeCompleted
	case domain.StatusFailed, domain.StatusTimedOut, domain.StatusCanceled:
		eventType = sse.EventTypeError
	}

	total := len(ev.Prospects)
	var fresh []domain.Prospect
	if sent < total {
		fresh = ev.Prospects[sent:]
	}

	frame := streamFrame{
		Prospects:         fresh,
		Found:             ev.State.Found,
		Analyzed:          ev.State.Analyzed,
		CompletionPercent: ev.State.CompletionPercent,
		Status:            ev.State.Status,
		TotalProspects:    total,
		Message:           ev.Message,
	}
	return sse.Event{Type: eventType, Data: frame}, total
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	})
}
