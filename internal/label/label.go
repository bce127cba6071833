// Package label defines the content nodes that make up a printable label.
// Both the batch parser and the HTTP adapter produce a Job; the renderer and
// compositor only ever consume one.
package label

import (
	"fmt"
	"strings"
)

// Node is one renderable unit of a label. The set of implementations is
// closed: only the types in this package satisfy it.
type Node interface {
	isNode()
	String() string
}

// Job is the ordered list of nodes printed left to right.
type Job []Node

type Justify string

const (
	Left   Justify = "left"
	Center Justify = "center"
	Right  Justify = "right"
)

func ParseJustify(s string) (Justify, error) {
	switch j := Justify(strings.ToLower(s)); j {
	case Left, Center, Right:
		return j, nil
	case "":
		return Left, nil
	default:
		return "", fmt.Errorf("Unknown alignment %q", s)
	}
}

type TextBlock struct {
	Lines []string
	// Font family; either a builtin name, a font file path, or a name looked
	// up in the configured font directories.
	Font string
	// Percentage of each line's slot taken up by the glyphs. Zero means 90.
	ScalePercent int
	FrameWidthPx int
	Align        Justify
}

type Barcode struct {
	Payload   string
	Symbology Symbology
	// Prints the payload under the bars.
	ShowText bool
}

type QrCode struct {
	Payload string
}

// Picture carries either encoded image data or a path to read it from.
type Picture struct {
	Path   string
	Data   []byte
	Dither bool
}

func (TextBlock) isNode() {}
func (Barcode) isNode()   {}
func (QrCode) isNode()    {}
func (Picture) isNode()   {}

func (t TextBlock) String() string {
	return fmt.Sprintf("TextBlock(%q)", t.Lines)
}

func (b Barcode) String() string {
	return fmt.Sprintf("Barcode(%q, %s)", b.Payload, b.Symbology)
}

func (q QrCode) String() string {
	return fmt.Sprintf("QrCode(%q)", q.Payload)
}

func (p Picture) String() string {
	if p.Path != "" {
		return fmt.Sprintf("Picture(%s)", p.Path)
	}
	return fmt.Sprintf("Picture(%d bytes)", len(p.Data))
}

const DefaultScalePercent = 90

// Scale returns the effective font scale of the block.
func (t TextBlock) Scale() int {
	if t.ScalePercent <= 0 {
		return DefaultScalePercent
	}
	return t.ScalePercent
}
