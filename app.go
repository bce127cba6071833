package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"tomgalvin.uk/labelle/internal/calibration"
	"tomgalvin.uk/labelle/internal/compose"
	"tomgalvin.uk/labelle/internal/config"
	"tomgalvin.uk/labelle/internal/device"
	"tomgalvin.uk/labelle/internal/label"
	"tomgalvin.uk/labelle/internal/preview"
	"tomgalvin.uk/labelle/internal/printer"
	"tomgalvin.uk/labelle/internal/render"
	"tomgalvin.uk/labelle/internal/wizard"
)

// Used for previews when no device is named or attached.
const previewModel = "labelmanager-pnp"

const outputPrinter = "printer"

var errUnknownCommand = errors.New("Unknown command")

type command func(ctx context.Context, args []string) error

type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *device.Registry
	stdin    io.Reader
	stdout   io.Writer

	// Replaced in tests.
	attached func() ([]printer.Attached, error)
	opener   printer.Opener
	prompter func() (wizard.Prompter, error)
}

func newApp(cfg config.Config, logger *slog.Logger) *app {
	registry := device.Builtin()
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		attached: func() ([]printer.Attached, error) {
			return printer.ListUSB(registry)
		},
		opener: printer.TransportOpener{
			USB: &printer.USBOpener{Timeout: cfg.IOTimeout.Duration},
			BLE: &printer.BluetoothOpener{Timeout: cfg.IOTimeout.Duration},
		},
	}
	a.prompter = func() (wizard.Prompter, error) {
		return wizard.NewTerminalPrompter(os.Stdin, a.stdout)
	}
	return a
}

func (a *app) commands() map[string]command {
	return map[string]command{
		"print":     a.printCommand,
		"batch":     a.batchCommand,
		"pattern":   a.patternCommand,
		"calibrate": a.calibrateCommand,
		"devices":   a.devicesCommand,
		"serve":     a.serveCommand,
	}
}

func (a *app) run(ctx context.Context, name string, args []string) error {
	cmd, ok := a.commands()[name]
	if !ok {
		return fmt.Errorf("%w %q", errUnknownCommand, name)
	}
	return cmd(ctx, args)
}

// outputFlags are shared by every command that produces a label.
type outputFlags struct {
	device string
	at     string
	tapeMm int
	output string
	path   string
}

func (a *app) addOutputFlags(fs *flag.FlagSet) *outputFlags {
	o := &outputFlags{}
	fs.StringVar(&o.device, "device", a.cfg.Device, "model id or part of the model name; detected when empty")
	fs.StringVar(&o.at, "at", "", "bus:address of the USB printer, or address of the BLE one, when several are attached")
	fs.IntVar(&o.tapeMm, "tape", a.cfg.TapeMm, "tape width in mm")
	fs.StringVar(&o.output, "output", outputPrinter, "printer, console, console_inverted or png")
	fs.StringVar(&o.path, "o", "label.png", "file written by -output png")
	return o
}

// profile picks the device named by filter, or the single supported
// printer attached over USB. Previews fall back to a common model. The
// location is zero unless exactly one attached printer matches.
func (a *app) profile(filter string, forPreview bool) (device.Profile, printer.Location, error) {
	if filter != "" {
		p, err := a.registry.Resolve(filter)
		if err != nil {
			return device.Profile{}, printer.Location{}, err
		}
		return p, a.locate(p), nil
	}

	found, err := a.attached()
	if err == nil && len(found) == 1 {
		a.logger.Debug("Detected printer", "device", found[0].String())
		return found[0].Profile, found[0].Location(), nil
	}
	if forPreview {
		p, err := a.registry.ByModel(previewModel)
		return p, printer.Location{}, err
	}
	if err != nil {
		return device.Profile{}, printer.Location{}, err
	}
	if len(found) == 0 {
		return device.Profile{}, printer.Location{}, fmt.Errorf("%w: no supported printer attached", printer.ErrDeviceNotFound)
	}
	return device.Profile{}, printer.Location{}, fmt.Errorf("%d printers attached, choose one with -device", len(found))
}

// locate finds where the only attached printer of model p is.
func (a *app) locate(p device.Profile) printer.Location {
	found, err := a.attached()
	if err != nil {
		return printer.Location{}
	}
	var at []printer.Location
	for _, d := range found {
		if d.Profile.Model == p.Model {
			at = append(at, d.Location())
		}
	}
	if len(at) != 1 {
		return printer.Location{}
	}
	return at[0]
}

// target resolves the device of a label and where it goes. The tape is
// checked by the caller against the calibrations.
func (a *app) target(o *outputFlags) (device.Profile, preview.Sink, error) {
	isPrinter := o.output == outputPrinter
	p, at, err := a.profile(o.device, !isPrinter)
	if err != nil {
		return device.Profile{}, nil, err
	}
	if isPrinter {
		if o.at != "" {
			if at, err = printer.ParseLocation(o.at); err != nil {
				return device.Profile{}, nil, err
			}
		}
		return p, &printer.DeviceSink{Printer: a.printer(), Profile: p, At: at}, nil
	}

	kind, err := preview.ParseKind(o.output)
	if err != nil {
		return device.Profile{}, nil, err
	}
	switch kind {
	case preview.KindPNG:
		return p, &preview.FileSink{Path: o.path}, nil
	case preview.KindConsoleInverted:
		return p, a.consoleSink(true), nil
	}
	return p, a.consoleSink(false), nil
}

func (a *app) consoleSink(inverted bool) *preview.ConsoleSink {
	if f, ok := a.stdout.(*os.File); ok {
		return preview.NewConsoleSink(f, inverted)
	}
	return &preview.ConsoleSink{W: a.stdout, Inverted: inverted, Columns: 80}
}

func (a *app) printer() *printer.Printer {
	return printer.New(a.logger.With("src", "printer"), a.opener)
}

// compositor builds the renderer and layout options from the config, with
// justify and the margins overridable per command.
func (a *app) compositor(justify string) (*compose.Compositor, error) {
	j, err := label.ParseJustify(justify)
	if err != nil {
		return nil, err
	}
	opts := compose.DefaultOptions()
	opts.MarginPx = a.cfg.MarginPx
	opts.SpacingPx = a.cfg.SpacingPx
	opts.Justify = j
	return compose.New(render.New(render.NewFontResolver(a.cfg.FontDirs...), a.cfg.Font), opts), nil
}

func (a *app) calibrations(ctx context.Context) (*calibration.Store, io.Closer, error) {
	return openCalibrations(ctx, a.cfg.CalibrationDB, a.registry)
}
