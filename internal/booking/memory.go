package booking

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dkeye/callgate/internal/domain"
	"gopkg.in/yaml.v2"
)

type MemoryDirectory struct {
	mu       sync.RWMutex
	bookings map[string]domain.Booking
	codes    map[string]string
	slots    map[string]domain.Slot
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		bookings: make(map[string]domain.Booking),
		codes:    make(map[string]string),
		slots:    make(map[string]domain.Slot),
	}
}

type fixtures struct {
	Bookings []domain.Booking `yaml:"bookings"`
	Slots    []domain.Slot    `yaml:"slots"`
}

// LoadFile reads a YAML file with top-level `bookings` and `slots` lists.
func LoadFile(path string) (*MemoryDirectory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bookings file: %w", err)
	}
	var fx fixtures
	if err := yaml.UnmarshalStrict(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse bookings file %s: %w", path, err)
	}
	d := NewMemoryDirectory()
	for _, b := range fx.Bookings {
		if strings.TrimSpace(b.ID) == "" {
			return nil, fmt.Errorf("bookings file %s: booking without id", path)
		}
		d.PutBooking(b)
	}
	for _, s := range fx.Slots {
		d.PutSlot(s)
	}
	return d, nil
}

func (d *MemoryDirectory) PutBooking(b domain.Booking) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bookings[b.ID] = b
	if b.Code != "" {
		d.codes[b.Code] = b.ID
	}
}

func (d *MemoryDirectory) PutSlot(s domain.Slot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slots[s.ID] = s
}

func (d *MemoryDirectory) Resolve(_ context.Context, key string) (*domain.Booking, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrNotFound
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if b, ok := d.bookings[key]; ok {
		return &b, nil
	}
	if id, ok := d.codes[key]; ok {
		if b, ok := d.bookings[id]; ok {
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

func (d *MemoryDirectory) Slot(_ context.Context, id string) (*domain.Slot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.slots[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}
