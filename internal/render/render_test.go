package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"tomgalvin.uk/labelle/internal/bitmap"
	"tomgalvin.uk/labelle/internal/label"
)

func countSet(b bitmap.Bitmap) int {
	n := 0
	for y := range b.Height() {
		for x := range b.Width() {
			n += int(b.GetBit(x, y))
		}
	}
	return n
}

func rowIsBlank(b bitmap.Bitmap, y int) bool {
	for x := range b.Width() {
		if b.GetBit(x, y) == 1 {
			return false
		}
	}
	return true
}

func aPNG(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRenderEveryNode(t *testing.T) {
	r := New(nil, "")
	nodes := []label.Node{
		label.TextBlock{Lines: []string{"FD12", "2013"}},
		label.Barcode{Payload: "1234", Symbology: label.Code128},
		label.QrCode{Payload: "12345"},
		label.Picture{Data: aPNG(t, 20, 20, color.Black)},
	}
	for _, n := range nodes {
		t.Run(n.String(), func(t *testing.T) {
			b, err := r.Render(n, 64)
			if err != nil {
				t.Fatal(err)
			}
			if b.Height() > 64 || b.Width() == 0 {
				t.Errorf("Rendered %s", b)
			}
			if countSet(b) == 0 {
				t.Error("Nothing drawn")
			}
		})
	}
}

func TestRenderDeterministic(t *testing.T) {
	r := New(nil, "")
	n := label.TextBlock{Lines: []string{"LINE1", "LINE2"}, FrameWidthPx: 2}
	b1, err := r.Render(n, 48)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := r.Render(n, 48)
	if err != nil {
		t.Fatal(err)
	}
	if !bitmap.Equal(b1, b2) {
		t.Error("Rendering the same node twice gave different bitmaps")
	}
}

func TestTextFillsCanvasHeight(t *testing.T) {
	r := New(nil, "")
	b, err := r.Render(label.TextBlock{Lines: []string{"Hg"}}, 40)
	if err != nil {
		t.Fatal(err)
	}
	if b.Height() != 40 {
		t.Errorf("Text block height %d", b.Height())
	}
}

func TestTextNormalisesUnicode(t *testing.T) {
	r := New(nil, "")
	composed, err := r.Render(label.TextBlock{Lines: []string{"caf\u00e9"}}, 32)
	if err != nil {
		t.Fatal(err)
	}
	decomposed, err := r.Render(label.TextBlock{Lines: []string{"cafe\u0301"}}, 32)
	if err != nil {
		t.Fatal(err)
	}
	if !bitmap.Equal(composed, decomposed) {
		t.Error("Composed and decomposed forms rendered differently")
	}
}

func TestTextFrame(t *testing.T) {
	r := New(nil, "")
	b, err := r.Render(label.TextBlock{Lines: []string{"x"}, FrameWidthPx: 3}, 40)
	if err != nil {
		t.Fatal(err)
	}
	w, h := b.Width(), b.Height()
	for _, p := range [][2]int{{0, 0}, {w - 1, 0}, {0, h - 1}, {w - 1, h - 1}, {2, h / 2}, {w - 3, h / 2}} {
		if b.GetBit(p[0], p[1]) != 1 {
			t.Errorf("Frame pixel %v not set", p)
		}
	}
}

func TestTextTooManyLines(t *testing.T) {
	r := New(nil, "")
	lines := make([]string, 40)
	_, err := r.Render(label.TextBlock{Lines: lines, FrameWidthPx: 1}, 32)
	if !errors.Is(err, ErrNodeTooTall) {
		t.Errorf("Expected ErrNodeTooTall, got %v", err)
	}
}

func TestTextUnknownFont(t *testing.T) {
	r := New(nil, "")
	_, err := r.Render(label.TextBlock{Lines: []string{"x"}, Font: "comic-sans-pro"}, 32)
	if !errors.Is(err, ErrEncoding) {
		t.Errorf("Expected ErrEncoding, got %v", err)
	}
}

func TestBarcodeLayout(t *testing.T) {
	r := New(nil, "")
	b, err := r.Render(label.Barcode{Payload: "1234"}, 64)
	if err != nil {
		t.Fatal(err)
	}

	code, err := encodeBarcode(label.Code128, "1234")
	if err != nil {
		t.Fatal(err)
	}
	expectedWidth := code.Bounds().Dx()*barcodeModuleWidthPx + 2*barcodeQuietZoneModules*barcodeModuleWidthPx
	if b.Width() != expectedWidth || b.Height() != 64 {
		t.Errorf("Barcode rendered as %s, expected width %d", b, expectedWidth)
	}
	for y := range barcodeVerticalMarginPx {
		if !rowIsBlank(b, y) || !rowIsBlank(b, 63-y) {
			t.Errorf("Margin row %d not blank", y)
		}
	}
	for x := range barcodeQuietZoneModules * barcodeModuleWidthPx {
		if b.GetBit(x, 32) != 0 {
			t.Errorf("Quiet zone column %d not blank", x)
		}
	}
}

func TestBarcodeEmptyCode128(t *testing.T) {
	r := New(nil, "")
	if _, err := r.Render(label.Barcode{Payload: ""}, 64); err != nil {
		t.Errorf("Empty CODE128 payload failed: %v", err)
	}
}

func TestBarcodeSymbologies(t *testing.T) {
	r := New(nil, "")
	for _, n := range []label.Barcode{
		{Payload: "HELLO", Symbology: label.Code39},
		{Payload: "12345", Symbology: label.Codabar},
		{Payload: "590123412345", Symbology: label.EAN13},
		{Payload: "9638507", Symbology: label.EAN8},
		{Payload: "03600029145", Symbology: label.UPCA},
		{Payload: "12345", Symbology: label.ITF},
		{Payload: "4901234567894", Symbology: label.JAN},
	} {
		t.Run(n.String(), func(t *testing.T) {
			if _, err := r.Render(n, 48); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestBarcodeEncodingErrors(t *testing.T) {
	r := New(nil, "")
	for _, n := range []label.Barcode{
		{Payload: "1234", Symbology: "PDF417"},
		{Payload: "123", Symbology: label.EAN8},
		{Payload: "abc", Symbology: label.EAN13},
		{Payload: "lower", Symbology: label.ITF},
	} {
		t.Run(n.String(), func(t *testing.T) {
			if _, err := r.Render(n, 48); !errors.Is(err, ErrEncoding) {
				t.Errorf("Expected ErrEncoding, got %v", err)
			}
		})
	}
}

func TestBarcodeCaption(t *testing.T) {
	r := New(nil, "")
	plain, err := r.Render(label.Barcode{Payload: "1234"}, 64)
	if err != nil {
		t.Fatal(err)
	}
	captioned, err := r.Render(label.Barcode{Payload: "1234", ShowText: true}, 64)
	if err != nil {
		t.Fatal(err)
	}
	if bitmap.Equal(plain, captioned) {
		t.Error("Caption didn't change the barcode")
	}
	if captioned.Height() != 64 {
		t.Errorf("Captioned barcode height %d", captioned.Height())
	}
}

func TestQRScalesToCanvas(t *testing.T) {
	r := New(nil, "")
	small, err := r.Render(label.QrCode{Payload: "12345"}, 30)
	if err != nil {
		t.Fatal(err)
	}
	large, err := r.Render(label.QrCode{Payload: "12345"}, 120)
	if err != nil {
		t.Fatal(err)
	}
	if small.Width() != small.Height() || large.Width() != large.Height() {
		t.Errorf("QR codes not square: %s %s", small, large)
	}
	if large.Height() < 3*small.Height() {
		t.Errorf("QR code didn't scale up: %s vs %s", small, large)
	}
	if !rowIsBlank(large, 0) {
		t.Error("Missing quiet zone")
	}
}

func TestQRTooTall(t *testing.T) {
	r := New(nil, "")
	_, err := r.Render(label.QrCode{Payload: "12345"}, 10)
	if !errors.Is(err, ErrNodeTooTall) {
		t.Errorf("Expected ErrNodeTooTall, got %v", err)
	}
}

func TestQREmptyPayload(t *testing.T) {
	r := New(nil, "")
	if _, err := r.Render(label.QrCode{}, 64); !errors.Is(err, ErrEncoding) {
		t.Errorf("Expected ErrEncoding, got %v", err)
	}
}

func TestPictureScalesDown(t *testing.T) {
	r := New(nil, "")
	b, err := r.Render(label.Picture{Data: aPNG(t, 10, 200, color.Black)}, 64)
	if err != nil {
		t.Fatal(err)
	}
	if b.Height() != 64 || b.Width() != 4 {
		t.Errorf("Picture rendered as %s", b)
	}
}

func TestPictureKeepsSmallSize(t *testing.T) {
	r := New(nil, "")
	b, err := r.Render(label.Picture{Data: aPNG(t, 10, 20, color.White)}, 64)
	if err != nil {
		t.Fatal(err)
	}
	if b.Height() != 20 || b.Width() != 10 || countSet(b) != 0 {
		t.Errorf("Picture rendered as %s with %d dots", b, countSet(b))
	}
}

func TestPictureFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "black.png")
	if err := os.WriteFile(path, aPNG(t, 8, 8, color.Black), 0o644); err != nil {
		t.Fatal(err)
	}
	r := New(nil, "")
	b, err := r.Render(label.Picture{Path: path, Dither: true}, 32)
	if err != nil {
		t.Fatal(err)
	}
	if countSet(b) != 64 {
		t.Errorf("Expected a solid 8x8 block, got %d dots", countSet(b))
	}
}

func TestPictureErrors(t *testing.T) {
	r := New(nil, "")
	for name, p := range map[string]label.Picture{
		"not an image": {Data: []byte("LABELLE-LABEL-SPEC-VERSION:1")},
		"missing file": {Path: filepath.Join(t.TempDir(), "nope.png")},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := r.Render(p, 32); !errors.Is(err, ErrEncoding) {
				t.Errorf("Expected ErrEncoding, got %v", err)
			}
		})
	}
}

func TestRenderJobReportsIndex(t *testing.T) {
	r := New(nil, "")
	_, err := r.RenderJob(label.Job{
		label.TextBlock{Lines: []string{"ok"}},
		label.QrCode{Payload: "12345"},
	}, 12)

	var ne *NodeError
	if !errors.As(err, &ne) {
		t.Fatalf("Expected a NodeError, got %v", err)
	}
	if ne.Index != 1 || !errors.Is(err, ErrNodeTooTall) {
		t.Errorf("Unexpected error %v", err)
	}
}

func TestSamplePattern(t *testing.T) {
	r := New(nil, "")
	for _, height := range []int{32, 64, 128, 512} {
		b, err := r.SamplePattern(height)
		if err != nil {
			t.Fatal(err)
		}
		if b.Height() != height {
			t.Errorf("Pattern height %d, expected %d", b.Height(), height)
		}
		// staggered corner markers
		if b.GetBit(0, 0) != 1 || b.GetBit(patternMarkerWidth-1, 1) != 1 {
			t.Errorf("Top markers missing at height %d", height)
		}
		if b.GetBit(0, height-1) != 1 || b.GetBit(patternMarkerWidth-1, height-2) != 1 {
			t.Errorf("Bottom markers missing at height %d", height)
		}
		// the markers are repeated at the far end
		if b.GetBit(b.Width()-patternMarkerWidth, 0) != 1 {
			t.Errorf("Trailing markers missing at height %d", height)
		}
	}
}

func TestFontResolver(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "MyFont.ttf"), goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	fonts := NewFontResolver(dir)

	for _, name := range []string{"goregular", "bold", "GoMono", "myfont", filepath.Join(dir, "MyFont.ttf")} {
		t.Run(name, func(t *testing.T) {
			if _, err := fonts.Resolve(name); err != nil {
				t.Error(err)
			}
		})
	}

	if _, err := fonts.Resolve("missing"); err == nil {
		t.Error("Expected an error for a missing font")
	}
}
