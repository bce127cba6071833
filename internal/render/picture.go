package render

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"tomgalvin.uk/labelle/internal/bitmap"
	"tomgalvin.uk/labelle/internal/label"
)

var supportedPictureTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/bmp",
	"image/tiff",
	"image/webp",
}

// LoadPicture reads and decodes the picture a node refers to.
func LoadPicture(p label.Picture) (image.Image, error) {
	data := p.Data
	if data == nil {
		var err error
		if data, err = os.ReadFile(p.Path); err != nil {
			return nil, fmt.Errorf("Couldn't read picture:\n%w", err)
		}
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), supportedPictureTypes...) {
		return nil, fmt.Errorf("Unsupported picture format %s", mtype.String())
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("Couldn't decode %s picture:\n%w", mtype.String(), err)
	}
	return img, nil
}

// renderPicture scales pictures taller than the canvas down to fit. Smaller
// pictures keep their size.
func renderPicture(n label.Picture, height int) (*bitmap.PixelBitmap, error) {
	img, err := LoadPicture(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	if img.Bounds().Dy() > height {
		img = bitmap.ScaleToHeight(img, height)
	}

	if n.Dither {
		return bitmap.FromImageDithered(img), nil
	}
	return bitmap.FromImageThreshold(img), nil
}
