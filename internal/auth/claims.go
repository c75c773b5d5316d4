package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the payload of a join credential. Subject (sub) identifies the
// participant.
type Claims struct {
	RoomID      string `json:"roomId"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName,omitempty"`
	jwt.RegisteredClaims
}
