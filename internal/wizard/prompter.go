package wizard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"tomgalvin.uk/labelle/internal/bitmap"
	"tomgalvin.uk/labelle/internal/calibration"
	"tomgalvin.uk/labelle/internal/compose"
	"tomgalvin.uk/labelle/internal/device"
)

var ErrNotInteractive = errors.New("Calibration needs an interactive terminal")

// TextPrompter asks questions line by line. Typing q at any prompt, or
// closing the input, aborts.
type TextPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTextPrompter(in io.Reader, out io.Writer) *TextPrompter {
	return &TextPrompter{in: bufio.NewReader(in), out: out}
}

// NewTerminalPrompter refuses to run unless in is a terminal, so a piped
// script can't answer for the user.
func NewTerminalPrompter(in *os.File, out io.Writer) (*TextPrompter, error) {
	if !term.IsTerminal(int(in.Fd())) {
		return nil, ErrNotInteractive
	}
	return NewTextPrompter(in, out), nil
}

func (p *TextPrompter) Say(msg string) {
	fmt.Fprintln(p.out, msg)
}

func (p *TextPrompter) ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	switch {
	case errors.Is(err, io.EOF) && line == "":
		return "", ErrAborted
	case err != nil && !errors.Is(err, io.EOF):
		return "", fmt.Errorf("Couldn't read answer:\n%w", err)
	}
	line = strings.TrimSpace(line)
	if strings.EqualFold(line, "q") {
		return "", ErrAborted
	}
	return line, nil
}

func (p *TextPrompter) Confirm(ctx context.Context, question string) (bool, error) {
	for {
		answer, err := p.ask(ctx, question+" [y/n] ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		p.Say("Please answer y or n, or q to quit.")
	}
}

func (p *TextPrompter) ReadFeedback(ctx context.Context) (string, string, error) {
	low, err := p.ask(ctx, "Lowest row number fully visible on the tape: ")
	if err != nil {
		return "", "", err
	}
	high, err := p.ask(ctx, "Highest row number fully visible on the tape: ")
	if err != nil {
		return "", "", err
	}
	return low, high, nil
}

// Sink is where composed test patterns go: a printer or a preview.
type Sink interface {
	Output(ctx context.Context, b bitmap.Bitmap) error
}

// SinkPrinter composes the sample pattern and sends it to a sink.
type SinkPrinter struct {
	Compositor *compose.Compositor
	Sink       Sink
}

func (s *SinkPrinter) PrintPattern(ctx context.Context, p device.Profile, cal calibration.TapeCalibration) error {
	b, err := s.Compositor.ComposePattern(p, cal)
	if err != nil {
		return err
	}
	return s.Sink.Output(ctx, b)
}
