// Package preview shows composed labels without printing them.
package preview

import (
	"context"
	"fmt"
	"image/png"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"tomgalvin.uk/labelle/internal/bitmap"
)

// Sink receives a finished label. Printing is one kind of sink, previews
// are the others; none of them change the bitmap.
type Sink interface {
	Output(ctx context.Context, b bitmap.Bitmap) error
}

type Kind string

const (
	KindConsole         Kind = "console"
	KindConsoleInverted Kind = "console_inverted"
	KindPNG             Kind = "png"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindConsole, KindConsoleInverted, KindPNG:
		return k, nil
	}
	return "", fmt.Errorf("Unknown preview output %q", s)
}

// Rotate turns b a quarter clockwise, so a label runs down the screen.
func Rotate(b bitmap.Bitmap) *bitmap.PixelBitmap {
	r := bitmap.New(b.Height(), b.Width())
	for y := range b.Height() {
		for x := range b.Width() {
			r.SetBit(b.Height()-1-y, x, b.GetBit(x, y))
		}
	}
	return r
}

// Blocks draws b with unicode half blocks, two rows per line of text.
func Blocks(b bitmap.Bitmap, inverted bool) string {
	glyphs := [4]string{" ", "▀", "▄", "█"}
	if inverted {
		glyphs = [4]string{"█", "▄", "▀", " "}
	}

	var sb strings.Builder
	for y := 0; y < b.Height(); y += 2 {
		for x := range b.Width() {
			top := b.GetBit(x, y) & 1
			var bottom byte
			if y+1 < b.Height() {
				bottom = b.GetBit(x, y+1) & 1
			}
			sb.WriteString(glyphs[top|bottom<<1])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ConsoleSink writes the label as text. Labels wider than Columns are
// rotated to run down the screen; zero Columns always rotates.
type ConsoleSink struct {
	W        io.Writer
	Inverted bool
	Columns  int
}

// NewConsoleSink writes to f, sized to the terminal when f is one.
func NewConsoleSink(f *os.File, inverted bool) *ConsoleSink {
	return &ConsoleSink{W: f, Inverted: inverted, Columns: TerminalColumns(f)}
}

// TerminalColumns returns the width of the terminal on f, or 0 if f isn't a
// terminal.
func TerminalColumns(f *os.File) int {
	if !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func (c *ConsoleSink) Output(_ context.Context, b bitmap.Bitmap) error {
	if b.Width() > c.Columns {
		b = Rotate(b)
	}
	_, err := io.WriteString(c.W, Blocks(b, c.Inverted))
	return err
}

// PNGSink writes the label as a black on white PNG at one pixel per dot.
type PNGSink struct {
	W io.Writer
}

func (p *PNGSink) Output(_ context.Context, b bitmap.Bitmap) error {
	if err := png.Encode(p.W, bitmap.ToImage(b)); err != nil {
		return fmt.Errorf("Couldn't encode preview:\n%w", err)
	}
	return nil
}

// FileSink creates Path and hands it to a PNGSink.
type FileSink struct {
	Path string
}

func (f *FileSink) Output(ctx context.Context, b bitmap.Bitmap) error {
	file, err := os.Create(f.Path)
	if err != nil {
		return fmt.Errorf("Couldn't create preview file:\n%w", err)
	}
	if err := (&PNGSink{W: file}).Output(ctx, b); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
