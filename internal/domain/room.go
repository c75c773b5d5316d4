package domain

// MaxRoomPeers is the hard cap of joined connections per room.
const MaxRoomPeers = 2

type RoomID string

// RoomIDForBooking always keys on the canonical booking id, never the code,
// so both aliases of one booking land in the same room.
func RoomIDForBooking(bookingID string) RoomID {
	return RoomID("booking-" + bookingID)
}
