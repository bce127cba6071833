// Package batch parses the line-oriented label description read by the
// `batch` subcommand:
//
//	LABELLE-LABEL-SPEC-VERSION:1
//	TEXT:<text>
//	NEWLINE:<text>
//	QR:<payload>
//	BARCODE[#<symbology>]:<payload>
//
// Every command except NEWLINE closes the open block and starts a new node.
package batch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"tomgalvin.uk/labelle/internal/label"
)

const VersionLine = "LABELLE-LABEL-SPEC-VERSION:1"

var (
	ErrUnsupportedSpecVersion = errors.New("Unsupported spec version")
	ErrUnknownCommand         = errors.New("Unknown command")
	ErrNewlineWithoutBlock    = errors.New("NEWLINE without an open text or QR block")
)

// ParseError reports the line a batch failed on. Line 1 is the version line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const (
	cmdText    = "TEXT"
	cmdNewline = "NEWLINE"
	cmdQR      = "QR"
	cmdBarcode = "BARCODE"
)

// parser accumulates nodes; the open block is always the last node.
type parser struct {
	job  label.Job
	open bool
}

func (p *parser) start(n label.Node) {
	p.job = append(p.job, n)
	p.open = true
}

func (p *parser) appendLine(arg string) error {
	if !p.open {
		return ErrNewlineWithoutBlock
	}
	switch n := p.job[len(p.job)-1].(type) {
	case label.TextBlock:
		n.Lines = append(n.Lines, arg)
		p.job[len(p.job)-1] = n
	case label.QrCode:
		n.Payload += "\n" + arg
		p.job[len(p.job)-1] = n
	default:
		return ErrNewlineWithoutBlock
	}
	return nil
}

func (p *parser) command(line string) error {
	head, arg, ok := strings.Cut(line, ":")
	if !ok {
		return ErrUnknownCommand
	}
	cmd, modifier, hasModifier := strings.Cut(head, "#")
	if hasModifier && cmd != cmdBarcode {
		return ErrUnknownCommand
	}

	switch cmd {
	case cmdText:
		p.start(label.TextBlock{Lines: []string{arg}})
	case cmdNewline:
		return p.appendLine(arg)
	case cmdQR:
		p.start(label.QrCode{Payload: arg})
	case cmdBarcode:
		p.start(label.Barcode{Payload: arg, Symbology: label.NormalizeSymbology(modifier)})
	default:
		return ErrUnknownCommand
	}
	return nil
}

// Parse reads a batch from r. Blank lines before the version line are
// skipped and not counted; blank lines after it are ignored.
func Parse(r io.Reader) (label.Job, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	p := &parser{job: label.Job{}}
	lineNo := 0
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if lineNo == 0 {
			if strings.TrimSpace(line) == "" {
				continue
			}
			lineNo = 1
			if line != VersionLine {
				return nil, &ParseError{Line: lineNo, Text: line, Err: ErrUnsupportedSpecVersion}
			}
			continue
		}
		lineNo++
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := p.command(line); err != nil {
			return nil, &ParseError{Line: lineNo, Text: line, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("Couldn't read batch:\n%w", err)
	}
	if lineNo == 0 {
		return nil, &ParseError{Line: 1, Err: ErrUnsupportedSpecVersion}
	}

	return p.job, nil
}

// ParseString is Parse over an in-memory batch.
func ParseString(s string) (label.Job, error) {
	return Parse(strings.NewReader(s))
}
