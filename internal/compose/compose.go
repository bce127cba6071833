// Package compose lays rendered nodes out side by side and places the result
// on the rows of the print head a calibration says the tape exposes.
package compose

import (
	"errors"
	"fmt"
	"log/slog"

	"tomgalvin.uk/labelle/internal/bitmap"
	"tomgalvin.uk/labelle/internal/calibration"
	"tomgalvin.uk/labelle/internal/device"
	"tomgalvin.uk/labelle/internal/label"
	"tomgalvin.uk/labelle/internal/render"
)

const (
	DefaultSpacingPx = 4
	// Blank label fed before and after the content, about 8mm at 180dpi.
	DefaultMarginPx = 56
)

var (
	ErrEmptyJob     = errors.New("Label job has no nodes")
	ErrLabelTooWide = errors.New("Label too wide")
)

type Options struct {
	SpacingPx  int
	MarginPx   int
	MinWidthPx int
	// Zero means unlimited.
	MaxWidthPx int
	Justify    label.Justify
}

func DefaultOptions() Options {
	return Options{
		SpacingPx: DefaultSpacingPx,
		MarginPx:  DefaultMarginPx,
		Justify:   label.Center,
	}
}

type Compositor struct {
	Renderer *render.Renderer
	Options  Options
}

func New(r *render.Renderer, opts Options) *Compositor {
	return &Compositor{Renderer: r, Options: opts}
}

// Compose renders job at the calibrated canvas height and returns a bitmap
// exactly as tall as the print head of p.
func (c *Compositor) Compose(job label.Job, p device.Profile, cal calibration.TapeCalibration) (*bitmap.PixelBitmap, error) {
	if len(job) == 0 {
		return nil, ErrEmptyJob
	}
	if err := cal.Validate(p.HeadHeightPx); err != nil {
		return nil, err
	}

	parts, err := c.Renderer.RenderJob(job, cal.CanvasHeightPx)
	if err != nil {
		return nil, err
	}
	return c.place(Concatenate(parts, c.Options.SpacingPx, cal.CanvasHeightPx), p, cal)
}

// ComposePattern places the sample pattern for the calibrated canvas.
func (c *Compositor) ComposePattern(p device.Profile, cal calibration.TapeCalibration) (*bitmap.PixelBitmap, error) {
	if err := cal.Validate(p.HeadHeightPx); err != nil {
		return nil, err
	}
	pattern, err := c.Renderer.SamplePattern(cal.CanvasHeightPx)
	if err != nil {
		return nil, err
	}
	return c.place(pattern, p, cal)
}

// Concatenate joins parts left to right with spacing pixels between them,
// centring each part vertically on a canvas of the given height.
func Concatenate(parts []*bitmap.PixelBitmap, spacing, height int) *bitmap.PixelBitmap {
	width := 0
	for i, part := range parts {
		if i > 0 {
			width += spacing
		}
		width += part.Width()
	}

	b := bitmap.New(width, height)
	x := 0
	for _, part := range parts {
		b.Paste(part, x, (height-part.Height())/2)
		x += part.Width() + spacing
	}
	return b
}

// labelWidth applies the horizontal margins and width limits, returning the
// total width and the x offset of the content.
func (o Options) labelWidth(contentWidth int) (int, int, error) {
	width := contentWidth + 2*o.MarginPx
	if o.MaxWidthPx > 0 && width > o.MaxWidthPx {
		return 0, 0, fmt.Errorf("%w: %dpx exceeds the maximum of %dpx", ErrLabelTooWide, width, o.MaxWidthPx)
	}
	width = max(width, o.MinWidthPx)

	padding := width - contentWidth
	switch o.Justify {
	case label.Left:
		return width, o.MarginPx, nil
	case label.Right:
		return width, padding - o.MarginPx, nil
	default:
		return width, padding / 2, nil
	}
}

// place pads canvas to the print head: offset blank rows below it and the
// remainder above.
func (c *Compositor) place(canvas *bitmap.PixelBitmap, p device.Profile, cal calibration.TapeCalibration) (*bitmap.PixelBitmap, error) {
	width, x, err := c.Options.labelWidth(canvas.Width())
	if err != nil {
		return nil, err
	}

	top := p.HeadHeightPx - cal.OffsetPx - cal.CanvasHeightPx
	b := bitmap.New(width, p.HeadHeightPx)
	b.Paste(canvas, x, top)

	slog.Debug("Composed label", "model", p.Model, "width", width, "head", p.HeadHeightPx, "top", top, "offset", cal.OffsetPx)
	return b, nil
}
