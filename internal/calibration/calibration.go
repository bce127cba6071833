// Package calibration maps a (device model, tape width) pair onto the rows
// of the print head the tape actually exposes.
package calibration

import (
	"errors"
	"fmt"

	"tomgalvin.uk/labelle/internal/device"
)

const (
	MinCanvasHeightPx = 32
	MaxCanvasHeightPx = 512
)

var (
	ErrCalibrationOutOfRange = errors.New("Calibration out of range")
	ErrPersistence           = errors.New("Couldn't persist calibration")
)

type Source string

const (
	SourceHardcoded Source = "hardcoded"
	SourceUser      Source = "user"
	// Neither a user nor a hardcoded entry exists.
	SourceDefault Source = "default"
)

type Key struct {
	Model  string
	TapeMm int
}

type TapeCalibration struct {
	Model          string `json:"model"`
	TapeMm         int    `json:"tapeMm"`
	OffsetPx       int    `json:"offsetPx"`
	CanvasHeightPx int    `json:"canvasHeightPx"`
	Source         Source `json:"source"`
}

func (c TapeCalibration) Key() Key {
	return Key{c.Model, c.TapeMm}
}

func (c TapeCalibration) String() string {
	return fmt.Sprintf("%s %dmm: offset %dpx, canvas %dpx (%s)", c.Model, c.TapeMm, c.OffsetPx, c.CanvasHeightPx, c.Source)
}

// Validate checks c against a print head of headHeightPx rows.
func (c TapeCalibration) Validate(headHeightPx int) error {
	switch {
	case c.OffsetPx < 0:
		return fmt.Errorf("%w: negative offset %d", ErrCalibrationOutOfRange, c.OffsetPx)
	case c.CanvasHeightPx < MinCanvasHeightPx || c.CanvasHeightPx > MaxCanvasHeightPx:
		return fmt.Errorf("%w: canvas height %d outside %d..%d", ErrCalibrationOutOfRange, c.CanvasHeightPx, MinCanvasHeightPx, MaxCanvasHeightPx)
	case c.OffsetPx+c.CanvasHeightPx > headHeightPx:
		return fmt.Errorf("%w: offset %d + canvas %d exceeds print head height %d", ErrCalibrationOutOfRange, c.OffsetPx, c.CanvasHeightPx, headHeightPx)
	}
	return nil
}

// PersistenceError is returned when a calibration could not be written. The
// message carries the values so the user can keep them by hand.
type PersistenceError struct {
	Path  string
	Entry TapeCalibration
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("Couldn't save calibration to %s; please note offset=%d canvas=%d for %s with %dmm tape:\n%v",
		e.Path, e.Entry.OffsetPx, e.Entry.CanvasHeightPx, e.Entry.Model, e.Entry.TapeMm, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// Default is the conservative fallback: the whole print head, capped to the
// largest canvas a calibration may describe.
func Default(p device.Profile, tapeMm int) TapeCalibration {
	return TapeCalibration{
		Model:          p.Model,
		TapeMm:         tapeMm,
		OffsetPx:       0,
		CanvasHeightPx: min(p.HeadHeightPx, MaxCanvasHeightPx),
		Source:         SourceDefault,
	}
}

// tapeHeightPx is the printable height of a tape on the LabelManager family:
// 8 bytes per line for every 12mm of tape.
func tapeHeightPx(tapeMm int) int {
	return (8 * tapeMm / 12) * 8
}

// Hardcoded returns the factory calibrations for every profile in r: the
// tape's printable height centred on the print head.
func Hardcoded(r *device.Registry) []TapeCalibration {
	var out []TapeCalibration
	for _, p := range r.Profiles() {
		for _, tape := range p.TapeSizesMm {
			canvas := p.HeadHeightPx
			if p.Variant == device.VariantD1 {
				canvas = min(tapeHeightPx(tape), p.HeadHeightPx)
			}
			canvas = min(canvas, MaxCanvasHeightPx)
			c := TapeCalibration{
				Model:          p.Model,
				TapeMm:         tape,
				OffsetPx:       (p.HeadHeightPx - canvas) / 2,
				CanvasHeightPx: canvas,
				Source:         SourceHardcoded,
			}
			if c.Validate(p.HeadHeightPx) != nil {
				continue
			}
			out = append(out, c)
		}
	}
	return out
}
