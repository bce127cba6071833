package render

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"

	"tomgalvin.uk/labelle/internal/bitmap"
	"tomgalvin.uk/labelle/internal/label"
)

// whiteCanvas returns a white greyscale image to draw glyphs onto before
// thresholding.
func whiteCanvas(width, height int) *image.Gray {
	i := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(i, i.Bounds(), image.White, image.Point{}, draw.Src)
	return i
}

// drawString draws s in black with its baseline starting at (x, baseline).
func drawString(dst draw.Image, face font.Face, x, baseline int, s string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(baseline)},
	}
	d.DrawString(s)
}

func glyphHeight(face font.Face) int {
	m := face.Metrics()
	return (m.Ascent + m.Descent).Ceil()
}

// fitFace returns a face of the named font whose ascent plus descent is at
// most target pixels.
func (r *Renderer) fitFace(name string, target float64) (font.Face, error) {
	if target < 1 {
		target = 1
	}
	size := target
	for range 4 {
		face, err := r.Fonts.Face(name, size)
		if err != nil {
			return nil, err
		}
		h := glyphHeight(face)
		if float64(h) <= target || size <= 1 {
			return face, nil
		}
		face.Close()
		size = max(1, size*target/float64(h)-0.5)
	}
	return r.Fonts.Face(name, size)
}

func (r *Renderer) renderText(t label.TextBlock, height int) (*bitmap.PixelBitmap, error) {
	lines := make([]string, len(t.Lines))
	for i, l := range t.Lines {
		lines[i] = norm.NFC.String(l)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}

	frame := max(t.FrameWidthPx, 0)
	inner := height - 2*frame
	if inner < len(lines) {
		return nil, fmt.Errorf("%w: %d lines inside a %dpx frame need more than %dpx", ErrNodeTooTall, len(lines), frame, height)
	}
	lineHeight := inner / len(lines)

	fontName := t.Font
	if fontName == "" {
		fontName = r.DefaultFont
	}
	face, err := r.fitFace(fontName, float64(lineHeight*t.Scale())/100)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	defer face.Close()

	pad := max((lineHeight-glyphHeight(face))/2, 0)
	widths := make([]int, len(lines))
	maxWidth := 0
	for i, l := range lines {
		widths[i] = font.MeasureString(face, l).Ceil()
		maxWidth = max(maxWidth, widths[i])
	}
	width := maxWidth + 2*pad + 2*frame

	canvas := whiteCanvas(width, height)
	top := frame + (inner-lineHeight*len(lines))/2
	ascent := face.Metrics().Ascent.Ceil()
	for i, l := range lines {
		var x int
		switch t.Align {
		case label.Center:
			x = (width - widths[i]) / 2
		case label.Right:
			x = width - frame - pad - widths[i]
		default:
			x = frame + pad
		}
		drawString(canvas, face, x, top+i*lineHeight+pad+ascent, l)
	}

	b := bitmap.FromImageThreshold(canvas)
	if frame > 0 {
		b.FillRect(image.Rect(0, 0, width, frame), 1)
		b.FillRect(image.Rect(0, height-frame, width, height), 1)
		b.FillRect(image.Rect(0, 0, frame, height), 1)
		b.FillRect(image.Rect(width-frame, 0, width, height), 1)
	}
	return b, nil
}
