package render

import (
	"fmt"
	"math/bits"
	"strconv"

	"golang.org/x/image/font"

	"tomgalvin.uk/labelle/internal/bitmap"
)

const (
	patternFontSizePx   = 12
	patternMarkerWidth  = 40
	patternMarkerLines  = 4
	patternVerticalLine = 5
	patternBlockWidth   = 12
	patternLabelXOffset = 3
	// One row above plus two rows below each row number.
	patternDigitMargin = 3
)

// SamplePattern renders the calibration test pattern for a canvas of the
// given height: corner markers, vertical lines, a fine checkerboard, a solid
// block and a checkerboard numbering every row block from the bottom.
func (r *Renderer) SamplePattern(height int) (*bitmap.PixelBitmap, error) {
	if height < 2*patternMarkerLines {
		return nil, fmt.Errorf("%w: sample pattern needs at least %dpx", ErrNodeTooTall, 2*patternMarkerLines)
	}
	face, err := r.Fonts.Face(DefaultFont, patternFontSizePx)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	markers := patternMarkers(face, height)
	parts := []*bitmap.PixelBitmap{
		markers,
		patternVerticalLines(height),
		patternFineCheckerboard(height),
		patternSolid(height),
		patternRowNumbers(face, height),
		markers,
	}

	width := 0
	for _, p := range parts {
		width += p.Width()
	}
	b := bitmap.New(width, height)
	x := 0
	for _, p := range parts {
		b.Paste(p, x, 0)
		x += p.Width()
	}
	return b, nil
}

// thresholdText renders s onto a white canvas the size of a part so it can be
// pasted or XORed onto the part.
func thresholdText(face font.Face, width, height, x, top int, s string) *bitmap.PixelBitmap {
	canvas := whiteCanvas(width, height)
	drawString(canvas, face, x, top+face.Metrics().Ascent.Ceil(), s)
	return bitmap.FromImageThreshold(canvas)
}

// Staggered horizontal lines in the top and bottom rows, so the extent of
// the printable area can be read off the print, with the canvas height
// written in the middle.
func patternMarkers(face font.Face, height int) *bitmap.PixelBitmap {
	b := bitmap.New(patternMarkerWidth, height)
	half := patternMarkerWidth / 2
	for y0 := 0; y0 < 2*patternMarkerLines; y0 += 2 {
		for x := range patternMarkerWidth {
			y := y0
			if x >= half {
				y++
			}
			b.SetBit(x, y, 1)
		}
	}
	for y0 := height - 2*patternMarkerLines; y0 < height; y0 += 2 {
		for x := range patternMarkerWidth {
			y := y0
			if x < half {
				y++
			}
			b.SetBit(x, y, 1)
		}
	}

	text := fmt.Sprintf("h=%d", height)
	textHeight := glyphHeight(face)
	b.Paste(thresholdText(face, patternMarkerWidth, height, patternLabelXOffset, (height-textHeight)/2, text), 0, 0)
	return b
}

func patternVerticalLines(height int) *bitmap.PixelBitmap {
	b := bitmap.New(2*patternVerticalLine-1, height)
	for x := 0; x < b.Width(); x += 2 {
		for y := range height {
			b.SetBit(x, y, 1)
		}
	}
	return b
}

func patternFineCheckerboard(height int) *bitmap.PixelBitmap {
	b := bitmap.New(patternBlockWidth, height)
	for y := range height {
		for x := range patternBlockWidth {
			if (x+y)%2 == 0 {
				b.SetBit(x, y, 1)
			}
		}
	}
	return b
}

func patternSolid(height int) *bitmap.PixelBitmap {
	b := bitmap.New(patternBlockWidth, height)
	for y := range height {
		for x := range patternBlockWidth {
			b.SetBit(x, y, 1)
		}
	}
	return b
}

// patternRowNumbers draws a binary checkerboard: column block k toggles
// every 2^k rows counted from the bottom, and the last block carries the row
// count at every block boundary.
func patternRowNumbers(face font.Face, height int) *bitmap.PixelBitmap {
	digitHeight := face.Metrics().Ascent.Ceil()
	logBlock := bits.Len(uint(digitHeight + patternDigitMargin - 1))
	block := 1 << logBlock

	textWidth := 0
	for yc := block; yc <= height; yc += block {
		textWidth = max(textWidth, font.MeasureString(face, strconv.Itoa(yc)).Ceil())
	}
	textX := logBlock * block
	width := textX + textWidth + 2

	canvas := whiteCanvas(width, height)
	for yc := block; yc <= height; yc += block {
		drawString(canvas, face, textX+1, height-yc-1+2+face.Metrics().Ascent.Ceil(), strconv.Itoa(yc))
	}
	b := bitmap.FromImageThreshold(canvas)

	for yc := range height {
		y := height - yc - 1
		for x := range width {
			bit := min(x/block, logBlock)
			if (yc>>bit)&1 == 0 {
				b.SetBit(x, y, b.GetBit(x, y)^1)
			}
		}
	}
	return b
}
