package printer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"tomgalvin.uk/labelle/internal/bitmap"
	"tomgalvin.uk/labelle/internal/device"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultPollAttempts = 10
)

// Protocol turns a composed bitmap into frames for one model family. A
// Protocol value is used for a single session.
type Protocol interface {
	// Stream writes every frame of b in order.
	Stream(ctx context.Context, port Port, b bitmap.Bitmap) error
	// Acknowledge polls the printer until it reports the job complete.
	Acknowledge(ctx context.Context, port Port) error
}

// ProtocolFor returns a fresh protocol for the variant of p.
func ProtocolFor(p device.Profile) (Protocol, error) {
	switch p.Variant {
	case device.VariantD1, "":
		return NewD1(), nil
	case device.VariantLW550:
		return NewLW550(uuid.New().ID()), nil
	}
	return nil, fmt.Errorf("Unsupported protocol variant %q for %s", p.Variant, p.Model)
}

// MaxHeadHeightPx is the tallest column the line framing of v can carry.
// d1 gives the bytes of a line in a single byte.
func MaxHeadHeightPx(v device.Variant) int {
	if v == device.VariantLW550 {
		return math.MaxInt32
	}
	return 8 * math.MaxUint8
}

// poll calls check until it reports done, waiting interval between tries.
func poll(ctx context.Context, interval time.Duration, attempts int, check func() (bool, error)) error {
	for i := range attempts {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return &AbortError{Reason: "cancelled while waiting for the printer", Err: ctx.Err()}
		case <-time.After(interval):
		}
	}
	return &AbortError{Reason: fmt.Sprintf("printer didn't report completion after %d status requests", attempts)}
}
