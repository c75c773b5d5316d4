package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/callgate/internal/app"
	"github.com/dkeye/callgate/internal/booking"
	"github.com/dkeye/callgate/internal/presence"
	"github.com/dkeye/callgate/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
)

type SessionService interface {
	Session(ctx context.Context, req session.Request) (*session.Result, error)
	TURN(ctx context.Context, req session.Request) ([]webrtc.ICEServer, error)
}

type Handlers struct {
	Sessions SessionService
	Bookings booking.Directory
	Beacon   *presence.Beacon
	Registry *app.Registry
}

type sessionRequest struct {
	BookingID   string `json:"bookingId" binding:"required"`
	Role        string `json:"role"`
	Email       string `json:"email"`
	StudentID   string `json:"studentId"`
	DisplayName string `json:"displayName" binding:"max=64"`
}

func (r sessionRequest) toService() session.Request {
	return session.Request{
		BookingKey:  strings.TrimSpace(r.BookingID),
		Role:        strings.TrimSpace(r.Role),
		Email:       r.Email,
		StudentID:   strings.TrimSpace(r.StudentID),
		DisplayName: strings.TrimSpace(r.DisplayName),
	}
}

type sessionResponse struct {
	OK             bool               `json:"ok"`
	RoomID         string             `json:"roomId"`
	ChannelName    string             `json:"channelName"`
	SignalingToken string             `json:"signalingToken"`
	ICEServers     []webrtc.ICEServer `json:"iceServers"`
	JoinToken      string             `json:"joinToken,omitempty"`
}

func (h *Handlers) PostSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "bad_request")
		return
	}
	res, err := h.Sessions.Session(c.Request.Context(), req.toService())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		OK:             true,
		RoomID:         string(res.RoomID),
		ChannelName:    res.ChannelName,
		SignalingToken: res.SignalingToken,
		ICEServers:     res.ICEServers,
		JoinToken:      res.JoinToken,
	})
}

func (h *Handlers) PostTURN(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "bad_request")
		return
	}
	servers, err := h.Sessions.TURN(c.Request.Context(), req.toService())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "iceServers": servers})
}

// resolveWaiting maps the bookingId query to a canonical booking id.
func (h *Handlers) resolveWaiting(c *gin.Context) (string, bool) {
	key := strings.TrimSpace(c.Query("bookingId"))
	if key == "" {
		errorResponse(c, http.StatusBadRequest, "missing_booking_id")
		return "", false
	}
	b, err := h.Bookings.Resolve(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			err = session.ErrNotFound
		}
		handleServiceError(c, err)
		return "", false
	}
	return b.ID, true
}

func (h *Handlers) PostWaiting(c *gin.Context) {
	id, ok := h.resolveWaiting(c)
	if !ok {
		return
	}
	if err := h.Beacon.Mark(c.Request.Context(), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) GetWaiting(c *gin.Context) {
	id, ok := h.resolveWaiting(c)
	if !ok {
		return
	}
	st, err := h.Beacon.Status(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp := gin.H{"ok": true, "waiting": st.Waiting}
	if !st.LastSeen.IsZero() {
		resp["lastSeenISO"] = st.LastSeen.UTC().Format(time.RFC3339Nano)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) RoomStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Registry.Stats())
}
