package render

import (
	"fmt"
	"image"

	"github.com/skip2/go-qrcode"

	"tomgalvin.uk/labelle/internal/bitmap"
	"tomgalvin.uk/labelle/internal/label"
)

const qrQuietZoneModules = 1

// renderQR draws the code at the largest whole number of pixels per module
// that fits the canvas.
func renderQR(n label.QrCode, height int) (*bitmap.PixelBitmap, error) {
	code, err := qrcode.New(n.Payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	code.DisableBorder = true
	grid := code.Bitmap()

	size := len(grid) + 2*qrQuietZoneModules
	scale := height / size
	if scale < 1 {
		return nil, fmt.Errorf("%w: QR code of %d modules needs %dpx", ErrNodeTooTall, len(grid), size)
	}

	b := bitmap.New(size*scale, size*scale)
	for y, row := range grid {
		for x, dark := range row {
			if !dark {
				continue
			}
			px := (x + qrQuietZoneModules) * scale
			py := (y + qrQuietZoneModules) * scale
			b.FillRect(image.Rect(px, py, px+scale, py+scale), 1)
		}
	}
	return b, nil
}
