// This package defines an interface for a simple bitmap structure that has a
// width, height, and can get bits from the bitmap by (x,y) coordinate.
// PixelBitmap is the mutable implementation every renderer draws into and the
// compositor stitches together; a set bit is a burned (black) dot.
// The packing functions turn a bitmap into the byte layouts the label
// printers consume over the wire.
package bitmap

import (
	"fmt"
	"image"
	"image/color"
)

type Bitmap interface {
	Width() int
	Height() int
	GetBit(x int, y int) byte
}

type PixelBitmap struct {
	pixels        [][]byte
	width, height int
}

// New returns an all-white bitmap of the given size.
func New(width, height int) *PixelBitmap {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	pixels := make([][]byte, height)
	for y := range height {
		pixels[y] = make([]byte, width)
	}
	return &PixelBitmap{pixels, width, height}
}

// FromRows builds a bitmap from rows of 0/1 values. All rows must be the
// same length.
func FromRows(rows [][]byte) (*PixelBitmap, error) {
	height := len(rows)
	width := 0
	if height > 0 {
		width = len(rows[0])
	}
	b := New(width, height)
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("Row %d has %d pixels, expecting %d", y, len(row), width)
		}
		for x, v := range row {
			b.pixels[y][x] = v & 1
		}
	}
	return b, nil
}

func (b *PixelBitmap) Width() int {
	return b.width
}

func (b *PixelBitmap) Height() int {
	return b.height
}

func (b *PixelBitmap) GetBit(x int, y int) byte {
	return b.pixels[y][x]
}

// SetBit sets the pixel at (x, y); coordinates outside the bitmap are ignored.
func (b *PixelBitmap) SetBit(x int, y int, v byte) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return
	}
	b.pixels[y][x] = v & 1
}

func (b *PixelBitmap) FillRect(r image.Rectangle, v byte) {
	r = r.Intersect(image.Rect(0, 0, b.width, b.height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			b.pixels[y][x] = v & 1
		}
	}
}

// Paste copies the set bits of src onto b with src's origin at (x, y).
func (b *PixelBitmap) Paste(src Bitmap, x0 int, y0 int) {
	for y := range src.Height() {
		for x := range src.Width() {
			if src.GetBit(x, y) == 1 {
				b.SetBit(x0+x, y0+y, 1)
			}
		}
	}
}

// Row returns a copy of row y.
func (b *PixelBitmap) Row(y int) []byte {
	row := make([]byte, b.width)
	copy(row, b.pixels[y])
	return row
}

func (b *PixelBitmap) String() string {
	return fmt.Sprintf("PixelBitmap(%d,%d)", b.width, b.height)
}

// Equal reports whether two bitmaps have the same size and pixels.
func Equal(b1 Bitmap, b2 Bitmap) bool {
	if b1.Width() != b2.Width() || b1.Height() != b2.Height() {
		return false
	}
	for y := range b1.Height() {
		for x := range b1.Width() {
			if b1.GetBit(x, y) != b2.GetBit(x, y) {
				return false
			}
		}
	}
	return true
}

var palette = color.Palette{color.White, color.Black}

// ToImage renders the bitmap as a two colour paletted image, black for set bits.
func ToImage(b Bitmap) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, b.Width(), b.Height()), palette)
	for y := range b.Height() {
		for x := range b.Width() {
			img.SetColorIndex(x, y, b.GetBit(x, y))
		}
	}
	return img
}
