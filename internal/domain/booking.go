package domain

import (
	"fmt"
	"time"
)

// Booking is owned by the booking store; this service only reads it.
type Booking struct {
	ID              string `json:"id" yaml:"id"`
	Code            string `json:"code,omitempty" yaml:"code"`
	Open            bool   `json:"open" yaml:"open"`
	StudentID       string `json:"studentId,omitempty" yaml:"studentId"`
	Email           string `json:"email,omitempty" yaml:"email"`
	SlotID          string `json:"slotId,omitempty" yaml:"slotId"`
	MeetingProvider string `json:"meetingProvider,omitempty" yaml:"meetingProvider"`
}

// Slot is a lesson slot in business-local time. StartMin and EndMin count
// minutes from local midnight of DateKey (YYYY-MM-DD).
type Slot struct {
	ID       string `json:"id" yaml:"id"`
	DateKey  string `json:"dateKey" yaml:"dateKey"`
	StartMin int    `json:"startMin" yaml:"startMin"`
	EndMin   int    `json:"endMin" yaml:"endMin"`
}

// Bounds resolves the slot to absolute instants in loc.
func (s Slot) Bounds(loc *time.Location) (start, end time.Time, err error) {
	day, err := time.ParseInLocation(time.DateOnly, s.DateKey, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("slot %s: bad dateKey %q: %w", s.ID, s.DateKey, err)
	}
	if s.EndMin < s.StartMin {
		return time.Time{}, time.Time{}, fmt.Errorf("slot %s: endMin %d before startMin %d", s.ID, s.EndMin, s.StartMin)
	}
	start = day.Add(time.Duration(s.StartMin) * time.Minute)
	end = day.Add(time.Duration(s.EndMin) * time.Minute)
	return start, end, nil
}
