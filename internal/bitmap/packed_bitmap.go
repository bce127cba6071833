// This file implements methods to pack bitmap pixel data into the bit
// structures accepted by the printers: row-major packing for image export and
// column-major packing for the print protocols, where every printed line is a
// column of the label.

package bitmap

import "fmt"

// a bitmap packed in memory, one row after another
type PackedBitmap struct {
	data                  []byte
	width, height, stride int
}

const bitsPerWord = 8

func (b *PackedBitmap) Width() int {
	return b.width
}

func (b *PackedBitmap) Height() int {
	return b.height
}

func (b *PackedBitmap) Stride() int {
	return b.stride
}

func (b *PackedBitmap) Data() []byte {
	return b.data
}

// Gets a single bit from the bitmap at the (x, y) coordinate, returns either 0 or 1
func (b *PackedBitmap) GetBit(x int, y int) byte {
	index := (y * b.stride) + (x / bitsPerWord)
	return (b.data[index] >> (bitsPerWord - 1 - x%bitsPerWord)) & 1
}

func (b *PackedBitmap) String() string {
	return fmt.Sprintf("PackedBitmap(%d,%d)", b.width, b.height)
}

// Takes a horizontal band of the packed bitmap, starting at row start
func (b *PackedBitmap) VerticalSlice(start int, height int) *PackedBitmap {
	return &PackedBitmap{
		data:   b.data[b.stride*start : b.stride*(start+height)],
		width:  b.width,
		height: height,
		stride: b.stride,
	}
}

// Take data from any Bitmap implementation and pack it row by row, most
// significant bit first. Pixels are left-aligned to the byte, so when the
// width isn't a multiple of 8 the unused low bits of the last byte are zero.
func PackBitmap(b Bitmap) *PackedBitmap {
	width, height, stride := b.Width(), b.Height(), (b.Width()+bitsPerWord-1)/bitsPerWord
	data := make([]byte, stride*height)

	for y := range height {
		for x := range width {
			if b.GetBit(x, y)&1 == 1 {
				data[y*stride+x/bitsPerWord] |= 0x80 >> (x % bitsPerWord)
			}
		}
	}

	return &PackedBitmap{data, width, height, stride}
}

type BitOrder int

const (
	// The first (topmost) pixel of each group of 8 lands in the most significant bit.
	MSBFirst BitOrder = iota
	// The first (topmost) pixel of each group of 8 lands in the least significant bit.
	LSBFirst
)

// PackColumns packs each column of the bitmap into ceil(height/8) bytes,
// starting with the top row. The result has one entry per column, left to
// right, which is the order the print head sees them.
func PackColumns(b Bitmap, order BitOrder) [][]byte {
	width, height := b.Width(), b.Height()
	stride := (height + bitsPerWord - 1) / bitsPerWord
	lines := make([][]byte, width)

	for x := range width {
		line := make([]byte, stride)
		for y := range height {
			if b.GetBit(x, y)&1 == 0 {
				continue
			}
			shift := y % bitsPerWord
			if order == MSBFirst {
				shift = bitsPerWord - 1 - shift
			}
			line[y/bitsPerWord] |= 1 << shift
		}
		lines[x] = line
	}

	return lines
}

// UnpackColumns is the inverse of PackColumns.
func UnpackColumns(lines [][]byte, height int, order BitOrder) *PixelBitmap {
	b := New(len(lines), height)
	for x, line := range lines {
		for y := range height {
			shift := y % bitsPerWord
			if order == MSBFirst {
				shift = bitsPerWord - 1 - shift
			}
			b.SetBit(x, y, (line[y/bitsPerWord]>>shift)&1)
		}
	}
	return b
}
