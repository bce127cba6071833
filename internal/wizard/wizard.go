// Package wizard walks a user through measuring which print head rows a tape
// exposes, and saves the result as a calibration.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"tomgalvin.uk/labelle/internal/calibration"
	"tomgalvin.uk/labelle/internal/device"
)

// Where users can share calibrations so they can be built in.
const UpstreamURL = "https://github.com/labelle-org/labelle/issues"

var ErrAborted = errors.New("Calibration aborted")

type State int

const (
	Intro State = iota
	PrintInitial
	CollectFeedback
	PrintVerification
	ConfirmResult
	Save
	Thank
	Aborted
)

func (s State) String() string {
	switch s {
	case Intro:
		return "intro"
	case PrintInitial:
		return "print initial"
	case CollectFeedback:
		return "collect feedback"
	case PrintVerification:
		return "print verification"
	case ConfirmResult:
		return "confirm result"
	case Save:
		return "save"
	case Thank:
		return "thank"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == Thank || s == Aborted
}

type Prompter interface {
	Say(msg string)
	Confirm(ctx context.Context, question string) (bool, error)
	// ReadFeedback asks for the lowest and highest visible row numbers.
	// Returning ErrAborted ends the wizard.
	ReadFeedback(ctx context.Context) (low, high string, err error)
}

// PatternPrinter prints the sample pattern placed according to cal.
type PatternPrinter interface {
	PrintPattern(ctx context.Context, p device.Profile, cal calibration.TapeCalibration) error
}

type Saver interface {
	Save(ctx context.Context, p device.Profile, c calibration.TapeCalibration) error
}

type Wizard struct {
	ID      uuid.UUID
	Profile device.Profile
	TapeMm  int

	prompter Prompter
	printer  PatternPrinter
	saver    Saver
	logger   *slog.Logger

	state  State
	result calibration.TapeCalibration
	err    error
}

func New(p device.Profile, tapeMm int, prompter Prompter, printer PatternPrinter, saver Saver) *Wizard {
	id := uuid.New()
	return &Wizard{
		ID:       id,
		Profile:  p,
		TapeMm:   tapeMm,
		prompter: prompter,
		printer:  printer,
		saver:    saver,
		logger:   slog.With("src", "wizard", "session", id.String(), "device", p.Model, "tape", tapeMm),
	}
}

func (w *Wizard) State() State {
	return w.state
}

// InitialCanvasPx is the canvas of the first test print: as much of the
// print head as a canvas may cover, from the bottom row up.
func InitialCanvasPx(p device.Profile) int {
	return min(calibration.MaxCanvasHeightPx, p.HeadHeightPx)
}

// Run steps through every state until Thank or Aborted. It returns the
// saved calibration, or an error wrapping ErrAborted. Cancelling ctx stops it
// at the next state change.
func (w *Wizard) Run(ctx context.Context) (calibration.TapeCalibration, error) {
	transitions := map[State]func(context.Context) State{
		Intro:             w.intro,
		PrintInitial:      w.printInitial,
		CollectFeedback:   w.collectFeedback,
		PrintVerification: w.printVerification,
		ConfirmResult:     w.confirmResult,
		Save:              w.save,
	}

	for !w.state.Terminal() {
		var next State
		if err := ctx.Err(); err != nil {
			next = w.abort(err)
		} else {
			next = transitions[w.state](ctx)
		}
		if next != w.state {
			w.logger.Debug("Calibration state change", "from", w.state, "to", next)
		}
		w.state = next
	}

	if w.state == Thank {
		return w.result, nil
	}
	if w.err == nil {
		return calibration.TapeCalibration{}, ErrAborted
	}
	return calibration.TapeCalibration{}, fmt.Errorf("%w:\n%w", ErrAborted, w.err)
}

// abort records why the wizard stopped. A user declining isn't an error.
func (w *Wizard) abort(err error) State {
	if err != nil && !errors.Is(err, ErrAborted) {
		w.err = err
		w.logger.Error("Calibration aborted", "state", w.state, "error", err)
	}
	w.prompter.Say("Calibration aborted, nothing was saved.")
	return Aborted
}

func (w *Wizard) intro(ctx context.Context) State {
	w.prompter.Say(fmt.Sprintf(
		"This measures which rows of the %d row print head a %dmm tape exposes on the %s.\n"+
			"A test pattern will be printed with every row numbered from the bottom.",
		w.Profile.HeadHeightPx, w.TapeMm, w.Profile.Name,
	))
	ok, err := w.prompter.Confirm(ctx, fmt.Sprintf("Is a %dmm tape loaded and ready to print?", w.TapeMm))
	if err != nil || !ok {
		return w.abort(err)
	}
	return PrintInitial
}

// printPattern isn't interrupted by cancelling ctx: a label the printer has
// started must come out whole. Run checks ctx again once it returns.
func (w *Wizard) printPattern(ctx context.Context, cal calibration.TapeCalibration) error {
	w.prompter.Say(fmt.Sprintf("Printing test pattern with %s...", cal))
	return w.printer.PrintPattern(context.WithoutCancel(ctx), w.Profile, cal)
}

func (w *Wizard) printInitial(ctx context.Context) State {
	cal := calibration.TapeCalibration{
		Model:          w.Profile.Model,
		TapeMm:         w.TapeMm,
		OffsetPx:       0,
		CanvasHeightPx: InitialCanvasPx(w.Profile),
	}
	if err := w.printPattern(ctx, cal); err != nil {
		return w.abort(err)
	}
	w.prompter.Say("Look at the row numbers on the right of the pattern.")
	return CollectFeedback
}

func (w *Wizard) collectFeedback(ctx context.Context) State {
	low, high, err := w.prompter.ReadFeedback(ctx)
	if err != nil {
		return w.abort(err)
	}

	offset, canvas, err := ParseFeedback(low, high, w.Profile.HeadHeightPx)
	if err != nil {
		w.prompter.Say(err.Error())
		return CollectFeedback
	}

	w.result = calibration.TapeCalibration{
		Model:          w.Profile.Model,
		TapeMm:         w.TapeMm,
		OffsetPx:       offset,
		CanvasHeightPx: canvas,
		Source:         calibration.SourceUser,
	}
	return PrintVerification
}

func (w *Wizard) printVerification(ctx context.Context) State {
	if err := w.printPattern(ctx, w.result); err != nil {
		return w.abort(err)
	}
	return ConfirmResult
}

func (w *Wizard) confirmResult(ctx context.Context) State {
	ok, err := w.prompter.Confirm(ctx, "Are all the corner markers fully visible, top and bottom, on both ends?")
	if err != nil || !ok {
		return w.abort(err)
	}
	return Save
}

func (w *Wizard) save(ctx context.Context) State {
	if err := w.saver.Save(ctx, w.Profile, w.result); err != nil {
		w.prompter.Say(err.Error())
		return w.abort(err)
	}
	w.logger.Info("Saved calibration", "offset", w.result.OffsetPx, "canvas", w.result.CanvasHeightPx)
	w.prompter.Say(fmt.Sprintf(
		"Saved %s.\nThank you! Please consider sharing these values at %s so other %s owners get them built in.",
		w.result, UpstreamURL, w.Profile.Name,
	))
	return Thank
}
