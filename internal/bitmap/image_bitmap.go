package bitmap

import (
	"fmt"
	"image"
	"image/color"

	"github.com/makeworld-the-better-one/dither/v2"
	"golang.org/x/image/draw"
)

// Brightness at or above which a pixel is left unburned.
const Threshold = 128

type ImageBitmap struct {
	image *image.Paletted
	// colorMap[i] represents the bit value of the palette colour at index i.
	// If the first colour in the image is black, and a high bit in a bitmap
	// sent to the device will be printed as black, then colorMap[0] == 1.
	colorMap [2]byte
}

func (b *ImageBitmap) Width() int {
	return b.image.Rect.Dx()
}

func (b *ImageBitmap) Height() int {
	return b.image.Rect.Dy()
}

func (b *ImageBitmap) GetBit(x int, y int) byte {
	o := b.image.Rect.Min
	return b.colorMap[b.image.ColorIndexAt(o.X+x, o.Y+y)]
}

func FromPaletted(i *image.Paletted) (*ImageBitmap, error) {
	if len(i.Palette) != 2 {
		return nil, fmt.Errorf("Image passed to FromPaletted must have only 2 colours in palette")
	}

	var colorMap [2]byte

	// Determine which of the two colours in the image's palette is closest to white.
	if i.Palette.Index(color.White) == 0 {
		colorMap = [2]byte{0, 1}
	} else {
		colorMap = [2]byte{1, 0}
	}

	return &ImageBitmap{
		image:    i,
		colorMap: colorMap,
	}, nil
}

// ScaleToHeight resizes i with Catmull-Rom so that it is exactly height
// pixels tall, keeping the aspect ratio. Width is rounded up.
func ScaleToHeight(i image.Image, height int) image.Image {
	b := i.Bounds()
	if b.Dy() == height || b.Dy() == 0 {
		return i
	}
	width := (b.Dx()*height + b.Dy() - 1) / b.Dy()
	if width < 1 {
		width = 1
	}
	scaledBounds := image.Rect(0, 0, width, height)
	scaledImage := image.NewRGBA(scaledBounds)
	draw.Draw(scaledImage, scaledBounds, image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(scaledImage, scaledBounds, i, b, draw.Over, nil)
	return scaledImage
}

// grayscale flattens i onto white, so transparent areas come out unburned.
func grayscale(i image.Image) *image.Gray {
	b := i.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(flat, flat.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), i, b.Min, draw.Over)

	gray := image.NewGray(flat.Bounds())
	draw.Draw(gray, gray.Bounds(), flat, image.Point{}, draw.Src)
	return gray
}

// FromImageThreshold converts i to a bitmap, burning every pixel darker than
// Threshold.
func FromImageThreshold(i image.Image) *PixelBitmap {
	gray := grayscale(i)
	b := New(gray.Rect.Dx(), gray.Rect.Dy())
	for y := range b.height {
		for x := range b.width {
			if gray.GrayAt(x, y).Y < Threshold {
				b.pixels[y][x] = 1
			}
		}
	}
	return b
}

// FromImageDithered converts i to a bitmap with serpentine Floyd-Steinberg
// error diffusion.
func FromImageDithered(i image.Image) *PixelBitmap {
	gray := grayscale(i)

	palette := []color.Color{color.Black, color.White}
	ditherer := dither.NewDitherer(palette)
	ditherer.Matrix = dither.FloydSteinberg
	ditherer.Serpentine = true
	ditheredImage := ditherer.DitherPaletted(gray)

	ib, err := FromPaletted(ditheredImage)
	if err != nil {
		// DitherPaletted always returns the two colour palette it was given
		panic(err)
	}
	b := New(ib.Width(), ib.Height())
	b.Paste(ib, 0, 0)
	return b
}
