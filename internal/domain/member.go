package domain

// Member is the immutable metadata attached to a connection once it has joined.
// No transport or lifecycle logic here.
type Member struct {
	RoomID      RoomID
	Subject     string
	Role        Role
	DisplayName string
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(room RoomID, subject string, role Role, displayName string) *Member {
	return &Member{
		RoomID:      room,
		Subject:     subject,
		Role:        role,
		DisplayName: displayName,
	}
}
