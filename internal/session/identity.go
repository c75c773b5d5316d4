package session

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dkeye/callgate/internal/domain"
)

// SignalingToken is hex(sha256(secret + ":" + room)) cut to 32 characters.
// It is a secret-derived value and must never be logged.
func SignalingToken(secret string, room domain.RoomID) string {
	sum := sha256.Sum256([]byte(secret + ":" + string(room)))
	return hex.EncodeToString(sum[:])[:32]
}

// ChannelName is deterministic for both peers yet not derivable from the
// booking id without the secret.
func ChannelName(room domain.RoomID, signalingToken string) string {
	sum := sha256.Sum256([]byte(signalingToken))
	return "call_" + string(room) + "_" + hex.EncodeToString(sum[:])[:16]
}
