package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/callgate/internal/session"
	"github.com/dkeye/callgate/internal/turn"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func errorResponse(c *gin.Context, status int, code string) {
	c.JSON(status, gin.H{"ok": false, "error": code})
}

func handleServiceError(c *gin.Context, err error) {
	var we *session.WindowError
	switch {
	case errors.As(err, &we):
		c.JSON(http.StatusForbidden, gin.H{
			"ok":         false,
			"error":      "outside_join_window",
			"openAtISO":  isoUTC(we.OpenAt),
			"closeAtISO": isoUTC(we.CloseAt),
			"startISO":   isoUTC(we.Start),
			"endISO":     isoUTC(we.End),
		})
	case errors.Is(err, session.ErrForbidden):
		errorResponse(c, http.StatusForbidden, "forbidden")
	case errors.Is(err, session.ErrNotFound):
		errorResponse(c, http.StatusNotFound, "booking_not_found")
	case errors.Is(err, session.ErrInvalidRole):
		errorResponse(c, http.StatusBadRequest, "invalid_role")
	case errors.Is(err, turn.ErrNotConfigured):
		errorResponse(c, http.StatusServiceUnavailable, "turn_not_configured")
	case errors.Is(err, turn.ErrNoRelay):
		log.Warn().Err(err).Str("module", "adapters.http").Str("request_id", c.GetString(requestIDKey)).Msg("no relay servers")
		errorResponse(c, http.StatusBadGateway, "no_turn_servers")
	case errors.Is(err, turn.ErrUpstream):
		log.Warn().Err(err).Str("module", "adapters.http").Str("request_id", c.GetString(requestIDKey)).Msg("turn upstream failed")
		errorResponse(c, http.StatusBadGateway, "turn_upstream_error")
	default:
		reqID := c.GetString(requestIDKey)
		log.Error().Err(err).Str("module", "adapters.http").Str("request_id", reqID).Msg("unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal_error", "requestId": reqID})
	}
}

func isoUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
