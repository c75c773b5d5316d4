// Package protocol holds the JSON messages exchanged with signaling clients.
// Every frame is one object with a string "type".
package protocol

import (
	"encoding/json"

	"github.com/dkeye/callgate/internal/core"
	"github.com/dkeye/callgate/internal/domain"
)

const Version = 1

const (
	TypeHello      = "hello"
	TypeJoin       = "join"
	TypeJoined     = "joined"
	TypeError      = "error"
	TypePeerJoined = "peer_joined"
	TypePeerReady  = "peer_ready"
	TypeSignal     = "signal"
	TypeLeave      = "leave"
	TypePeerLeft   = "peer_left"
)

const (
	CodeNotJoined     = "not_joined"
	CodeMissingToken  = "missing_token"
	CodeInvalidToken  = "invalid_token"
	CodeRoomFull      = "room_full"
	CodeAlreadyJoined = "already_joined"
)

type Envelope struct {
	Type string `json:"type"`
}

type Hello struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
}

type Join struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type Joined struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	Role   domain.Role   `json:"role"`
	Sub    string        `json:"sub"`
	Peers  int           `json:"peers"`
}

type Error struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

// Signal carries data exactly as the sender wrote it.
type Signal struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEnvelope reports false for anything that is not an object with a
// non-empty string type.
func ParseEnvelope(b []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil || env.Type == "" {
		return Envelope{}, false
	}
	return env, true
}

// ParseJoin extracts the token. A non-string token reads as empty.
func ParseJoin(b []byte) Join {
	var j Join
	_ = json.Unmarshal(b, &j)
	return j
}

// ParseSignal returns the raw data field, or nil when it is absent.
func ParseSignal(b []byte) json.RawMessage {
	var s Signal
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	return s.Data
}

func HelloFrame() core.Frame {
	return encode(Hello{Type: TypeHello, Version: Version})
}

func JoinedFrame(m *domain.Member, peers int) core.Frame {
	return encode(Joined{Type: TypeJoined, RoomID: m.RoomID, Role: m.Role, Sub: m.Subject, Peers: peers})
}

func ErrorFrame(code string) core.Frame {
	return encode(Error{Type: TypeError, Code: code})
}

// SignalFrame splices data into the frame byte for byte. data must be a
// single JSON value, as returned by ParseSignal.
func SignalFrame(data json.RawMessage) core.Frame {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	out := make([]byte, 0, len(signalPrefix)+len(data)+1)
	out = append(out, signalPrefix...)
	out = append(out, data...)
	return append(out, '}')
}

const signalPrefix = `{"type":"` + TypeSignal + `","data":`

// EventFrame builds a type-only frame such as peer_joined.
func EventFrame(typ string) core.Frame {
	return encode(Envelope{Type: typ})
}

// encode is only used with the fixed message structs above, which always
// marshal.
func encode(v any) core.Frame {
	b, _ := json.Marshal(v)
	return b
}
