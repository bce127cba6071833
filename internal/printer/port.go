package printer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"tomgalvin.uk/labelle/internal/device"
)

// Port is an open, exclusively held connection to one printer.
type Port interface {
	Write(ctx context.Context, data []byte) error
	// Read returns the next response from the printer. An empty slice means
	// the printer had nothing to say.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Location identifies one physical printer. The zero Location means the
// first device of the model that is found.
type Location struct {
	Bus     int
	Address int
	// BLE MAC, or the platform's id for it where MACs are hidden.
	BLEAddress string
}

// ParseLocation reads "bus:address" for USB devices, anything else is taken
// as a BLE address.
func ParseLocation(s string) (Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Location{}, nil
	}
	s = strings.TrimPrefix(s, "usb:")
	if bus, address, ok := strings.Cut(s, ":"); ok && !strings.Contains(address, ":") {
		b, err := strconv.Atoi(bus)
		if err != nil {
			return Location{}, fmt.Errorf("Couldn't parse USB bus %q:\n%w", bus, err)
		}
		a, err := strconv.Atoi(address)
		if err != nil {
			return Location{}, fmt.Errorf("Couldn't parse USB address %q:\n%w", address, err)
		}
		return Location{Bus: b, Address: a}, nil
	}
	return Location{BLEAddress: strings.TrimPrefix(s, "ble:")}, nil
}

func (l Location) IsZero() bool {
	return l == Location{}
}

func (l Location) String() string {
	switch {
	case l.BLEAddress != "":
		return "ble:" + l.BLEAddress
	case l.IsZero():
		return "any"
	}
	return fmt.Sprintf("usb:%d:%d", l.Bus, l.Address)
}

// lockKey names what a session holds. Without a location it may end up on
// any device of the model, so it holds the model.
func lockKey(p device.Profile, at Location) string {
	if at.IsZero() {
		return p.Model
	}
	return p.Model + "@" + at.String()
}

type Opener interface {
	// Open connects to the device at, or the first device matching p when
	// at is zero.
	Open(ctx context.Context, p device.Profile, at Location) (Port, error)
}

// TransportOpener picks the opener matching the transport of the profile.
type TransportOpener struct {
	USB Opener
	BLE Opener
}

func (o TransportOpener) Open(ctx context.Context, p device.Profile, at Location) (Port, error) {
	var opener Opener
	switch p.Transport {
	case device.TransportBLE:
		opener = o.BLE
	default:
		opener = o.USB
	}
	if opener == nil {
		return nil, fmt.Errorf("%w: no %s transport available for %s", ErrDeviceNotFound, p.Transport, p.Model)
	}
	return opener.Open(ctx, p, at)
}

// Locks hands out one session at a time per device.
type Locks struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocks() *Locks {
	return &Locks{held: map[string]bool{}}
}

// TryAcquire claims key or fails straight away with ErrDeviceBusy. The
// returned release func may be called any number of times.
func (l *Locks) TryAcquire(key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return nil, fmt.Errorf("%w: %s is in use by another print job", ErrDeviceBusy, key)
	}
	l.held[key] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
