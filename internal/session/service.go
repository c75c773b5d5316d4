// Package session authorizes a participant against a booking and hands out
// everything needed to start a call: room identity, ICE configuration, relay
// credentials and a join credential for the signaling broker.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/callgate/internal/booking"
	"github.com/dkeye/callgate/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const DefaultJoinMargin = 10 * time.Minute

type Config struct {
	Secret         string
	ICEServersJSON string
	DevMode        bool
	Location       *time.Location
	Margin         time.Duration
}

// TokenIssuer mints broker join credentials.
type TokenIssuer interface {
	Issue(room domain.RoomID, role domain.Role, subject, displayName string) (string, error)
}

// RelayProvider returns relay-only ICE servers.
type RelayProvider interface {
	Credentials(ctx context.Context) ([]webrtc.ICEServer, error)
}

type Service struct {
	dir    booking.Directory
	issuer TokenIssuer
	relays RelayProvider
	cfg    Config
	now    func() time.Time
}

func NewService(dir booking.Directory, issuer TokenIssuer, relays RelayProvider, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Margin <= 0 {
		cfg.Margin = DefaultJoinMargin
	}
	return &Service{dir: dir, issuer: issuer, relays: relays, cfg: cfg, now: time.Now}
}

type Request struct {
	BookingKey  string
	Role        string
	Email       string
	StudentID   string
	DisplayName string
}

type Result struct {
	RoomID         domain.RoomID
	ChannelName    string
	SignalingToken string
	ICEServers     []webrtc.ICEServer
	JoinToken      string
}

func (s *Service) Session(ctx context.Context, req Request) (*Result, error) {
	b, role, err := s.admit(ctx, req)
	if err != nil {
		return nil, err
	}

	room := domain.RoomIDForBooking(b.ID)
	token := SignalingToken(s.cfg.Secret, room)
	ice, err := ParseICEServers(s.cfg.ICEServersJSON)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RoomID:         room,
		ChannelName:    ChannelName(room, token),
		SignalingToken: token,
		ICEServers:     ice,
	}
	if s.issuer != nil {
		jt, err := s.issuer.Issue(room, role, subjectFor(b, role, req), req.DisplayName)
		if err != nil {
			return nil, fmt.Errorf("issue join token: %w", err)
		}
		res.JoinToken = jt
	}
	log.Info().Str("module", "session").Str("room", string(room)).Str("role", string(role)).Msg("session granted")
	return res, nil
}

func (s *Service) TURN(ctx context.Context, req Request) ([]webrtc.ICEServer, error) {
	b, role, err := s.admit(ctx, req)
	if err != nil {
		return nil, err
	}
	servers, err := s.relays.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "session").Str("booking", b.ID).Str("role", string(role)).Int("relays", len(servers)).Msg("turn credentials granted")
	return servers, nil
}

// subjectFor picks the most specific identity the caller proved.
func subjectFor(b *domain.Booking, role domain.Role, req Request) string {
	switch {
	case role == domain.RoleTeacher:
		return "teacher:" + b.ID
	case req.StudentID != "":
		return req.StudentID
	case normalizeEmail(req.Email) != "":
		return normalizeEmail(req.Email)
	default:
		return "guest:" + uuid.NewString()
	}
}
