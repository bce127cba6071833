// Package render turns a single label node into a monochrome bitmap no taller
// than the canvas it is rendered for.
package render

import (
	"errors"
	"fmt"
	"log/slog"

	"tomgalvin.uk/labelle/internal/bitmap"
	"tomgalvin.uk/labelle/internal/label"
)

var (
	ErrNodeTooTall = errors.New("Node too tall for canvas")
	ErrEncoding    = errors.New("Couldn't encode node content")
)

// NodeError locates a render failure within a job. Index is zero based.
type NodeError struct {
	Index int
	Node  label.Node
	Err   error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("Couldn't render node #%d %s:\n%v", e.Index+1, e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

type Renderer struct {
	Fonts *FontResolver
	// Font used by text blocks that don't name one.
	DefaultFont string
}

func New(fonts *FontResolver, defaultFont string) *Renderer {
	if fonts == nil {
		fonts = NewFontResolver()
	}
	if defaultFont == "" {
		defaultFont = DefaultFont
	}
	return &Renderer{Fonts: fonts, DefaultFont: defaultFont}
}

// Render draws n for a canvas of the given height.
func (r *Renderer) Render(n label.Node, height int) (*bitmap.PixelBitmap, error) {
	if height <= 0 {
		return nil, fmt.Errorf("%w: canvas height %d", ErrNodeTooTall, height)
	}

	var b *bitmap.PixelBitmap
	var err error
	switch n := n.(type) {
	case label.TextBlock:
		b, err = r.renderText(n, height)
	case label.Barcode:
		b, err = r.renderBarcode(n, height)
	case label.QrCode:
		b, err = renderQR(n, height)
	case label.Picture:
		b, err = renderPicture(n, height)
	default:
		err = fmt.Errorf("Unsupported node type %T", n)
	}
	if err != nil {
		return nil, err
	}

	if b.Height() > height {
		return nil, fmt.Errorf("%w: %dpx rendered for a %dpx canvas", ErrNodeTooTall, b.Height(), height)
	}
	return b, nil
}

// RenderJob renders every node of job in order, stopping at the first
// failure.
func (r *Renderer) RenderJob(job label.Job, height int) ([]*bitmap.PixelBitmap, error) {
	out := make([]*bitmap.PixelBitmap, 0, len(job))
	for i, n := range job {
		b, err := r.Render(n, height)
		if err != nil {
			return nil, &NodeError{Index: i, Node: n, Err: err}
		}
		slog.Debug("Rendered node", "index", i, "node", n.String(), "size", b.String())
		out = append(out, b)
	}
	return out, nil
}
