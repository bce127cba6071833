package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/codabar"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/ean"
	"github.com/boombuler/barcode/twooffive"

	"tomgalvin.uk/labelle/internal/bitmap"
	"tomgalvin.uk/labelle/internal/label"
)

const (
	barcodeModuleWidthPx    = 2
	barcodeVerticalMarginPx = 8
	barcodeQuietZoneModules = 10
	// Share of the canvas height used by the caption under the bars.
	barcodeCaptionScale = 0.4
)

func encodeBarcode(s label.Symbology, payload string) (barcode.Barcode, error) {
	switch s {
	case label.Code128, "":
		if payload == "" {
			payload = " "
		}
		return code128.Encode(payload)
	case label.Code39:
		return code39.Encode(payload, false, true)
	case label.Codabar:
		p := strings.ToUpper(payload)
		if p == "" || !strings.ContainsRune("ABCD", rune(p[0])) {
			p = "A" + p + "B"
		}
		return codabar.Encode(p)
	case label.EAN, label.EAN13, label.JAN:
		if s != label.EAN && len(payload) != 12 && len(payload) != 13 {
			return nil, fmt.Errorf("%s needs 12 or 13 digits, got %d", s, len(payload))
		}
		return ean.Encode(payload)
	case label.EAN8:
		if len(payload) != 7 && len(payload) != 8 {
			return nil, fmt.Errorf("EAN8 needs 7 or 8 digits, got %d", len(payload))
		}
		return ean.Encode(payload)
	case label.UPCA:
		if len(payload) != 11 && len(payload) != 12 {
			return nil, fmt.Errorf("UPC-A needs 11 or 12 digits, got %d", len(payload))
		}
		return ean.Encode("0" + payload)
	case label.ITF:
		if len(payload)%2 == 1 {
			payload = "0" + payload
		}
		return twooffive.Encode(payload, true)
	default:
		return nil, fmt.Errorf("Unsupported symbology %q", string(s))
	}
}

// barcodeModules reads the bar pattern out of an encoded one-dimensional
// barcode: true for a dark module.
func barcodeModules(code image.Image) []bool {
	bounds := code.Bounds()
	modules := make([]bool, bounds.Dx())
	for x := range modules {
		c := color.GrayModel.Convert(code.At(bounds.Min.X+x, bounds.Min.Y)).(color.Gray)
		modules[x] = c.Y < bitmap.Threshold
	}
	return modules
}

func (r *Renderer) renderBarcode(n label.Barcode, height int) (*bitmap.PixelBitmap, error) {
	if height <= 2*barcodeVerticalMarginPx {
		return nil, fmt.Errorf("%w: barcode needs more than %dpx", ErrNodeTooTall, 2*barcodeVerticalMarginPx)
	}

	code, err := encodeBarcode(n.Symbology, n.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	modules := barcodeModules(code)

	quiet := barcodeQuietZoneModules * barcodeModuleWidthPx
	barsWidth := len(modules)*barcodeModuleWidthPx + 2*quiet

	var caption *bitmap.PixelBitmap
	if n.ShowText {
		caption, err = r.renderText(label.TextBlock{
			Lines: []string{n.Payload},
			Align: label.Center,
		}, int(float64(height)*barcodeCaptionScale))
		if err != nil {
			return nil, err
		}
	}

	width := barsWidth
	if caption != nil {
		width = max(width, caption.Width())
	}
	b := bitmap.New(width, height)
	x0 := (width-barsWidth)/2 + quiet
	bars := image.Rect(0, barcodeVerticalMarginPx, 0, height-barcodeVerticalMarginPx)
	for i, dark := range modules {
		if dark {
			bars.Min.X = x0 + i*barcodeModuleWidthPx
			bars.Max.X = bars.Min.X + barcodeModuleWidthPx
			b.FillRect(bars, 1)
		}
	}

	if caption != nil {
		cx, cy := (width-caption.Width())/2, height-caption.Height()-1
		b.FillRect(image.Rect(cx, cy, cx+caption.Width(), cy+caption.Height()), 0)
		b.Paste(caption, cx, cy)
	}
	return b, nil
}
