package printer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tomgalvin.uk/labelle/internal/bitmap"
)

// Error bits of the LabelManager status byte.
const (
	d1StatusTapeOut = 0x20
	d1StatusJammed  = 0x40
	d1StatusError   = 0x80
)

// D1 speaks the LabelManager line protocol: every column of the label is a
// SYN prefixed line.
type D1 struct {
	// Lines sent between status requests, so the printer can keep up.
	SynWait int
	// Longer labels are sent as several segments.
	MaxLines     int
	PollInterval time.Duration
	PollAttempts int

	bytesPerLine int
}

func NewD1() *D1 {
	return &D1{
		SynWait:      64,
		MaxLines:     200,
		PollInterval: defaultPollInterval,
		PollAttempts: defaultPollAttempts,
		bytesPerLine: -1,
	}
}

func (d *D1) Stream(ctx context.Context, port Port, b bitmap.Bitmap) error {
	lines := bitmap.PackColumns(b, bitmap.LSBFirst)
	slog.Debug("Streaming label", "protocol", "d1", "lines", len(lines), "bytesPerLine", (b.Height()+7)/8)

	for len(lines) > d.MaxLines+1 {
		if err := d.segment(ctx, port, lines[:d.MaxLines]); err != nil {
			return err
		}
		lines = lines[d.MaxLines:]
	}
	return d.segment(ctx, port, lines)
}

func (d *D1) segment(ctx context.Context, port Port, lines [][]byte) error {
	frames := [][]byte{setTapeColour(0)}
	for _, line := range lines {
		if len(line) != d.bytesPerLine {
			frames = append(frames, setBytesPerLine(byte(len(line))))
			d.bytesPerLine = len(line)
		}
		frames = append(frames, printLine(line))
	}
	if err := d.send(ctx, port, frames); err != nil {
		return err
	}
	_, err := d.status(ctx, port)
	return err
}

// send writes frames in chunks of at most SynWait lines, asking for status
// before each chunk.
func (d *D1) send(ctx context.Context, port Port, frames [][]byte) error {
	var chunk []byte
	lines := 0

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if _, err := d.status(ctx, port); err != nil {
			return err
		}
		if err := port.Write(ctx, chunk); err != nil {
			return fmt.Errorf("Couldn't write label data:\n%w", err)
		}
		slog.Debug("Wrote chunk", "size", len(chunk), "lines", lines)
		chunk, lines = nil, 0
		return nil
	}

	for _, f := range frames {
		if f[0] == Syn {
			if lines == d.SynWait {
				if err := flush(); err != nil {
					return err
				}
			}
			lines++
		}
		chunk = append(chunk, f...)
	}
	return flush()
}

// status requests and checks the status byte. It returns false if the
// printer sent nothing back.
func (d *D1) status(ctx context.Context, port Port) (bool, error) {
	if err := port.Write(ctx, requestStatus()); err != nil {
		return false, fmt.Errorf("Couldn't request printer status:\n%w", err)
	}
	resp, err := port.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("Couldn't read printer status:\n%w", err)
	}
	if len(resp) == 0 {
		return false, nil
	}

	s := resp[0]
	switch {
	case s&d1StatusTapeOut != 0:
		return true, &AbortError{Reason: "tape cassette empty or missing"}
	case s&d1StatusJammed != 0:
		return true, &AbortError{Reason: "tape jammed"}
	case s&d1StatusError != 0:
		return true, &AbortError{Reason: fmt.Sprintf("printer error, status %#02x", s)}
	}
	return true, nil
}

func (d *D1) Acknowledge(ctx context.Context, port Port) error {
	return poll(ctx, d.PollInterval, d.PollAttempts, func() (bool, error) {
		return d.status(ctx, port)
	})
}
