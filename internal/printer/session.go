package printer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"tomgalvin.uk/labelle/internal/bitmap"
	"tomgalvin.uk/labelle/internal/device"
)

type State int

const (
	Idle State = iota
	Opened
	Streaming
	Acknowledged
	Closed
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Opened:
		return "opened"
	case Streaming:
		return "streaming"
	case Acknowledged:
		return "acknowledged"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Printer runs print sessions, allowing at most one at a time per device.
type Printer struct {
	opener Opener
	locks  *Locks
	logger *slog.Logger
}

func New(logger *slog.Logger, opener Opener) *Printer {
	return &Printer{
		opener: opener,
		locks:  NewLocks(),
		logger: logger,
	}
}

// Print sends b to the device described by p and waits until the device
// says the label is done.
func (pr *Printer) Print(ctx context.Context, p device.Profile, b bitmap.Bitmap) error {
	return pr.PrintAt(ctx, p, Location{}, b)
}

// PrintAt is Print on the device at a given location.
func (pr *Printer) PrintAt(ctx context.Context, p device.Profile, at Location, b bitmap.Bitmap) error {
	proto, err := ProtocolFor(p)
	if err != nil {
		return err
	}
	s := pr.NewSession(p, proto)
	s.At = at
	return s.Run(ctx, b)
}

// DeviceSink sends every bitmap it is given to one device.
type DeviceSink struct {
	Printer *Printer
	Profile device.Profile
	At      Location
}

func (d *DeviceSink) Output(ctx context.Context, b bitmap.Bitmap) error {
	return d.Printer.PrintAt(ctx, d.Profile, d.At, b)
}

func (pr *Printer) NewSession(p device.Profile, proto Protocol) *Session {
	id := uuid.New()
	return &Session{
		ID:       id,
		Profile:  p,
		protocol: proto,
		printer:  pr,
		logger:   pr.logger.With("session", id.String(), "device", p.Model),
	}
}

// Session is a single print job on a single device.
type Session struct {
	ID      uuid.UUID
	Profile device.Profile
	// Zero for the first device of the model.
	At Location

	protocol Protocol
	printer  *Printer
	logger   *slog.Logger

	state   State
	port    Port
	release func()
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) transition(to State) {
	s.logger.Debug("Print session state change", "from", s.state, "to", to)
	s.state = to
}

// Run takes the session from Idle to Closed. The device is released
// whichever state fails. Cancelling ctx stops the session only until the
// device is open. After that the label is finished or fails with what the
// printer reported, each I/O still bounded by the port's timeout.
func (s *Session) Run(ctx context.Context, b bitmap.Bitmap) (err error) {
	if s.state != Idle {
		return fmt.Errorf("Print session already %s", s.state)
	}

	defer func() {
		if cerr := s.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	steps := []func(context.Context, bitmap.Bitmap) error{
		s.open,
		s.stream,
		s.acknowledge,
	}
	for _, step := range steps {
		if err := step(ctx, b); err != nil {
			s.logger.Error("Print failed", "state", s.state, "error", err)
			s.transition(Errored)
			return err
		}
		ctx = context.WithoutCancel(ctx)
	}
	return nil
}

func (s *Session) open(ctx context.Context, _ bitmap.Bitmap) error {
	release, err := s.printer.locks.TryAcquire(lockKey(s.Profile, s.At))
	if err != nil {
		return err
	}
	s.release = release

	port, err := s.printer.opener.Open(ctx, s.Profile, s.At)
	if err != nil {
		return timeoutAs(err, ErrDeviceBusy)
	}
	s.port = port
	s.transition(Opened)
	return nil
}

func (s *Session) stream(ctx context.Context, b bitmap.Bitmap) error {
	s.transition(Streaming)
	if err := s.protocol.Stream(ctx, s.port, b); err != nil {
		return timeoutAs(err, ErrPrintAborted)
	}
	return nil
}

func (s *Session) acknowledge(ctx context.Context, _ bitmap.Bitmap) error {
	if err := s.protocol.Acknowledge(ctx, s.port); err != nil {
		return timeoutAs(err, ErrPrintAborted)
	}
	s.transition(Acknowledged)
	s.logger.Info("Label printed")
	return nil
}

// close releases the port and the device lock exactly once.
func (s *Session) close() error {
	var err error
	if s.port != nil {
		if err = s.port.Close(); err != nil {
			err = fmt.Errorf("Couldn't close device:\n%w", err)
		}
		s.port = nil
	}
	if s.release != nil {
		s.release()
		s.release = nil
	}
	if s.state != Errored {
		s.transition(Closed)
	}
	return err
}

// timeoutAs reports I/O timeouts as the error a caller can act on.
func timeoutAs(err, as error) error {
	if !errors.Is(err, ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(as, ErrPrintAborted) {
		var abort *AbortError
		if errors.As(err, &abort) {
			return err
		}
		return &AbortError{Reason: "printer stopped responding", Err: err}
	}
	return fmt.Errorf("%w: %w", as, err)
}
