package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"tomgalvin.uk/labelle/internal/batch"
	"tomgalvin.uk/labelle/internal/compose"
	"tomgalvin.uk/labelle/internal/label"
	"tomgalvin.uk/labelle/internal/printer"
	"tomgalvin.uk/labelle/internal/server"
	"tomgalvin.uk/labelle/internal/wizard"
)

const shutdownTimeout = 5 * time.Second

func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// printJob composes job for the target named by out and sends it there.
func (a *app) printJob(ctx context.Context, out *outputFlags, c *compose.Compositor, job label.Job) error {
	p, sink, err := a.target(out)
	if err != nil {
		return err
	}
	store, closer, err := a.calibrations(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := store.CheckTape(p, out.tapeMm); err != nil {
		return err
	}
	cal := store.Lookup(p, out.tapeMm)
	b, err := c.Compose(job, p, cal)
	if err != nil {
		return err
	}
	a.logger.Info("Composed label", "device", p.Model, "tape", out.tapeMm, "calibration", cal.String(), "length", b.Width())
	return sink.Output(ctx, b)
}

func (a *app) printCommand(ctx context.Context, args []string) error {
	fs := a.newFlagSet("print")
	out := a.addOutputFlags(fs)

	var job label.Job
	symbology := label.DefaultSymbology
	fs.Func("text", `text block, repeat for more blocks; \n separates lines`, func(s string) error {
		job = append(job, label.TextBlock{Lines: strings.Split(s, `\n`)})
		return nil
	})
	fs.Func("qr", "QR code payload", func(s string) error {
		job = append(job, label.QrCode{Payload: s})
		return nil
	})
	fs.Func("barcode-type", "symbology of the barcodes that follow: CODE128, CODE39, CODABAR, EAN13, EAN8, UPC or ITF", func(s string) error {
		symbology = label.NormalizeSymbology(s)
		return nil
	})
	fs.Func("barcode", "barcode payload", func(s string) error {
		job = append(job, label.Barcode{Payload: s, Symbology: symbology})
		return nil
	})
	fs.Func("picture", "path of a picture", func(s string) error {
		job = append(job, label.Picture{Path: s})
		return nil
	})
	font := fs.String("font", "", "font name or file for text blocks")
	scale := fs.Int("scale", label.DefaultScalePercent, "percentage of each text line filled by glyphs")
	frame := fs.Int("frame", 0, "frame width around text blocks in px")
	align := fs.String("align", "left", "alignment of lines within a text block")
	barcodeText := fs.Bool("barcode-text", false, "print the payload under barcodes")
	dither := fs.Bool("dither", false, "dither pictures instead of thresholding them")
	justify := fs.String("justify", "center", "position of the content on a label longer than it")
	minWidth := fs.Int("min-length", 0, "minimum label length in px")
	maxWidth := fs.Int("max-length", 0, "maximum label length in px, 0 for no limit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	textAlign, err := label.ParseJustify(*align)
	if err != nil {
		return err
	}
	for i, n := range job {
		switch n := n.(type) {
		case label.TextBlock:
			n.Font, n.ScalePercent, n.FrameWidthPx, n.Align = *font, *scale, *frame, textAlign
			job[i] = n
		case label.Barcode:
			n.ShowText = *barcodeText
			job[i] = n
		case label.Picture:
			n.Dither = *dither
			job[i] = n
		}
	}

	c, err := a.compositor(*justify)
	if err != nil {
		return err
	}
	c.Options.MinWidthPx, c.Options.MaxWidthPx = *minWidth, *maxWidth
	return a.printJob(ctx, out, c, job)
}

func (a *app) batchCommand(ctx context.Context, args []string) error {
	fs := a.newFlagSet("batch")
	out := a.addOutputFlags(fs)
	file := fs.String("f", "-", "batch file, - for stdin")
	justify := fs.String("justify", "center", "position of the content on the label")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var r io.Reader = a.stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("Couldn't open batch file:\n%w", err)
		}
		defer f.Close()
		r = f
	}
	job, err := batch.Parse(r)
	if err != nil {
		return err
	}

	c, err := a.compositor(*justify)
	if err != nil {
		return err
	}
	return a.printJob(ctx, out, c, job)
}

func (a *app) patternCommand(ctx context.Context, args []string) error {
	fs := a.newFlagSet("pattern")
	out := a.addOutputFlags(fs)
	offset := fs.Int("offset", -1, "print with this offset instead of the stored calibration")
	canvas := fs.Int("canvas", -1, "print with this canvas height instead of the stored calibration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, sink, err := a.target(out)
	if err != nil {
		return err
	}
	store, closer, err := a.calibrations(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := store.CheckTape(p, out.tapeMm); err != nil {
		return err
	}
	cal := store.Lookup(p, out.tapeMm)
	if *offset >= 0 {
		cal.OffsetPx = *offset
	}
	if *canvas >= 0 {
		cal.CanvasHeightPx = *canvas
	}
	if rows := cal.OffsetPx + cal.CanvasHeightPx; rows > p.HeadHeightPx {
		if limit := printer.MaxHeadHeightPx(p.Variant); rows > limit {
			return fmt.Errorf("Pattern needs %d rows, %s can send at most %d", rows, p.Variant, limit)
		}
		a.logger.Warn("Pattern is taller than the print head, rows past it won't print", "device", p.Model, "head", p.HeadHeightPx, "rows", rows)
		p.HeadHeightPx = rows
	}
	c, err := a.compositor("center")
	if err != nil {
		return err
	}
	b, err := c.ComposePattern(p, cal)
	if err != nil {
		return err
	}
	return sink.Output(ctx, b)
}

func (a *app) calibrateCommand(ctx context.Context, args []string) error {
	fs := a.newFlagSet("calibrate")
	out := a.addOutputFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	prompter, err := a.prompter()
	if err != nil {
		return err
	}
	p, sink, err := a.target(out)
	if err != nil {
		return err
	}
	store, closer, err := a.calibrations(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := p.CheckTape(out.tapeMm); err != nil {
		a.logger.Warn("Calibrating a tape the model doesn't list", "device", p.Model, "tape", out.tapeMm, "listed", p.TapeSizesMm)
	}
	c, err := a.compositor("center")
	if err != nil {
		return err
	}
	w := wizard.New(p, out.tapeMm, prompter, &wizard.SinkPrinter{Compositor: c, Sink: sink}, store)
	_, err = w.Run(ctx)
	return err
}

func (a *app) devicesCommand(_ context.Context, args []string) error {
	fs := a.newFlagSet("devices")
	all := fs.Bool("all", false, "list every supported model, not just attached ones")
	filter := fs.String("device", a.cfg.Device, "only list models matching this")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if *all {
		fmt.Fprintln(tw, "MODEL\tNAME\tUSB\tHEAD\tPROTOCOL\tTAPES")
		for _, p := range a.registry.Match(*filter) {
			usb := "ble"
			if p.VendorID != 0 {
				usb = fmt.Sprintf("%04x:%04x", p.VendorID, p.ProductID)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%dpx\t%s\t%v\n", p.Model, p.Name, usb, p.HeadHeightPx, p.Variant, p.TapeSizesMm)
		}
		return nil
	}

	found, err := a.attached()
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Fprintln(tw, "No supported printer attached. Use -all to list supported models.")
		return nil
	}
	fmt.Fprintln(tw, "MODEL\tNAME\tBUS\tADDRESS")
	for _, d := range found {
		if *filter != "" && !strings.Contains(strings.ToLower(d.Profile.Model+" "+d.Profile.Name), strings.ToLower(*filter)) {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", d.Profile.Model, d.Profile.Name, d.Bus, d.Address)
	}
	return nil
}

func (a *app) serveCommand(ctx context.Context, args []string) error {
	fs := a.newFlagSet("serve")
	listen := fs.String("listen", a.cfg.Listen, "address to listen on")
	justify := fs.String("justify", "center", "default position of the content on a label")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, closer, err := a.calibrations(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()
	c, err := a.compositor(*justify)
	if err != nil {
		return err
	}

	s := server.NewServer(a.logger.With("src", "server"), a.registry, store, c, a.printer())
	s.DefaultDevice = a.cfg.Device
	s.DefaultTapeMm = a.cfg.TapeMm

	srv := &http.Server{Addr: *listen, Handler: s.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("Starting server", "listen", *listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("Couldn't start server:\n%w", err)
	}
	return nil
}
