package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkeye/callgate/internal/adapters/signal"
	"github.com/dkeye/callgate/internal/app"
	"github.com/dkeye/callgate/internal/app/orch"
	"github.com/dkeye/callgate/internal/auth"
	"github.com/dkeye/callgate/internal/booking"
	"github.com/dkeye/callgate/internal/config"
	"github.com/dkeye/callgate/internal/domain"
	"github.com/dkeye/callgate/internal/presence"
	"github.com/dkeye/callgate/internal/session"
	"github.com/dkeye/callgate/internal/turn"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSessions struct {
	res     *session.Result
	servers []webrtc.ICEServer
	err     error
	got     session.Request
}

func (s *stubSessions) Session(_ context.Context, req session.Request) (*session.Result, error) {
	s.got = req
	return s.res, s.err
}

func (s *stubSessions) TURN(_ context.Context, req session.Request) ([]webrtc.ICEServer, error) {
	s.got = req
	return s.servers, s.err
}

func newRouter(t *testing.T, svc SessionService, cfg *config.Config) (*gin.Engine, *app.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := booking.NewMemoryDirectory()
	dir.PutBooking(domain.Booking{ID: "b1", Code: "CODE1", StudentID: "stu_1"})

	reg := app.NewRegistry()
	o := &orch.Orchestrator{Registry: reg, Policy: app.SimplePolicy{}, Verifier: auth.NewJWTVerifier("x")}
	h := &Handlers{
		Sessions: svc,
		Bookings: dir,
		Beacon:   presence.NewBeacon(presence.NewMemoryStore(), time.Minute),
		Registry: reg,
	}
	if cfg == nil {
		cfg = &config.Config{Mode: "test"}
	}
	return SetupRouter(context.Background(), cfg, h, signal.NewSignalWSController(o, signal.Options{})), reg
}

func do(r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestPostSessionOK(t *testing.T) {
	svc := &stubSessions{res: &session.Result{
		RoomID:         "booking-b1",
		ChannelName:    "call_booking-b1_0123456789abcdef",
		SignalingToken: "0123456789abcdef0123456789abcdef",
		ICEServers:     []webrtc.ICEServer{{URLs: []string{session.DefaultSTUNURL}}},
		JoinToken:      "jwt",
	}}
	r, _ := newRouter(t, svc, nil)

	w, out := do(r, http.MethodPost, "/session", gin.H{"bookingId": " b1 ", "role": "student", "studentId": "stu_1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, "booking-b1", out["roomId"])
	assert.Equal(t, "call_booking-b1_0123456789abcdef", out["channelName"])
	assert.Equal(t, "jwt", out["joinToken"])
	ice := out["iceServers"].([]any)
	require.Len(t, ice, 1)
	assert.Equal(t, []any{session.DefaultSTUNURL}, ice[0].(map[string]any)["urls"])

	assert.Equal(t, "b1", svc.got.BookingKey)
	assert.Equal(t, "stu_1", svc.got.StudentID)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestPostSessionErrorMapping(t *testing.T) {
	open := time.Date(2025, 1, 9, 23, 50, 0, 0, time.UTC)
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", session.ErrNotFound, http.StatusNotFound, "booking_not_found"},
		{"bad role", session.ErrInvalidRole, http.StatusBadRequest, "invalid_role"},
		{"forbidden", session.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"window", &session.WindowError{OpenAt: open, CloseAt: open.Add(45 * time.Minute), Start: open.Add(10 * time.Minute), End: open.Add(35 * time.Minute)}, http.StatusForbidden, "outside_join_window"},
		{"turn off", turn.ErrNotConfigured, http.StatusServiceUnavailable, "turn_not_configured"},
		{"no relay", turn.ErrNoRelay, http.StatusBadGateway, "no_turn_servers"},
		{"upstream", fmt.Errorf("%w: status 500", turn.ErrUpstream), http.StatusBadGateway, "turn_upstream_error"},
		{"config", fmt.Errorf("%w: bad ICE", session.ErrConfig), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newRouter(t, &stubSessions{err: tc.err}, nil)
			w, out := do(r, http.MethodPost, "/turn", gin.H{"bookingId": "b1", "role": "student"})
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, false, out["ok"])
			assert.Equal(t, tc.code, out["error"])
		})
	}
}

func TestWindowErrorPayload(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	start := time.Date(2025, 1, 10, 9, 0, 0, 0, seoul)
	we := &session.WindowError{OpenAt: start.Add(-10 * time.Minute), CloseAt: start.Add(35 * time.Minute), Start: start, End: start.Add(25 * time.Minute)}

	r, _ := newRouter(t, &stubSessions{err: we}, nil)
	w, out := do(r, http.MethodPost, "/session", gin.H{"bookingId": "b1", "role": "student"})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "2025-01-09T23:50:00Z", out["openAtISO"])
	assert.Equal(t, "2025-01-10T00:35:00Z", out["closeAtISO"])
	assert.Equal(t, "2025-01-10T00:00:00Z", out["startISO"])
	assert.Equal(t, "2025-01-10T00:25:00Z", out["endISO"])
}

func TestInternalErrorCarriesRequestID(t *testing.T) {
	r, _ := newRouter(t, &stubSessions{err: fmt.Errorf("boom")}, nil)

	req := httptest.NewRequest(http.MethodPost, "/session", bytes.NewBufferString(`{"bookingId":"b1","role":"teacher"}`))
	req.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"ok":false,"error":"internal_error","requestId":"req-42"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestPostSessionBadBody(t *testing.T) {
	r, _ := newRouter(t, &stubSessions{}, nil)

	w, out := do(r, http.MethodPost, "/session", gin.H{"role": "student"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", out["error"])

	req := httptest.NewRequest(http.MethodPost, "/session", bytes.NewBufferString(`{`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostTURNOK(t *testing.T) {
	svc := &stubSessions{servers: []webrtc.ICEServer{{URLs: []string{"turn:relay.example.org:3478"}, Username: "u", Credential: "p"}}}
	r, _ := newRouter(t, svc, nil)

	w, out := do(r, http.MethodPost, "/turn", gin.H{"bookingId": "b1", "role": "teacher"})
	require.Equal(t, http.StatusOK, w.Code)
	ice := out["iceServers"].([]any)
	require.Len(t, ice, 1)
	first := ice[0].(map[string]any)
	assert.Equal(t, "u", first["username"])
	assert.Equal(t, "p", first["credential"])
}

func TestWaitingBeacon(t *testing.T) {
	r, _ := newRouter(t, &stubSessions{}, nil)

	w, out := do(r, http.MethodGet, "/waiting?bookingId=b1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, out["waiting"])
	assert.NotContains(t, out, "lastSeenISO")

	w, _ = do(r, http.MethodPost, "/waiting?bookingId=CODE1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, out = do(r, http.MethodGet, "/waiting?bookingId=b1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["waiting"])
	assert.NotEmpty(t, out["lastSeenISO"])

	w, out = do(r, http.MethodGet, "/waiting?bookingId=nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "booking_not_found", out["error"])

	w, out = do(r, http.MethodPost, "/waiting", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_booking_id", out["error"])
}

func TestOpsEndpoints(t *testing.T) {
	r, reg := newRouter(t, &stubSessions{}, nil)

	w, out := do(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["ok"])

	reg.Bind("c1", nil, nil)
	w, out = do(r, http.MethodGet, "/rooms/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, out["rooms"])
	assert.EqualValues(t, 1, out["connections"])
}

func TestRateLimit(t *testing.T) {
	r, _ := newRouter(t, &stubSessions{}, &config.Config{Mode: "test", RateLimitRPS: 1, RateLimitBurst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w, _ := do(r, http.MethodGet, "/waiting?bookingId=b1", nil)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	w, _ := do(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIPRateLimiterSweepsIdleVisitors(t *testing.T) {
	rl := NewIPRateLimiter(1, 1)
	now := time.Unix(1700000000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))

	now = now.Add(limiterIdle + time.Second)
	assert.True(t, rl.Allow("2.2.2.2"))
	assert.Len(t, rl.visitors, 1)
}
