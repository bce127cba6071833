package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tomgalvin.uk/labelle/internal/config"
	"tomgalvin.uk/labelle/internal/logging"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: labelle <command> [flags]

Commands:
  print      print text, barcodes, QR codes and pictures given as flags
  batch      print a label description read from a file or stdin
  pattern    print the calibration test pattern
  calibrate  measure the printable area of a tape interactively
  devices    list attached and supported printers
  serve      run the HTTP API

Run labelle <command> -h for the flags of a command.
Configuration is read from %s.
`, config.Path())
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, err := logging.Setup(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(cfg, logger)
	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		if errors.Is(err, errUnknownCommand) {
			fmt.Fprintln(os.Stderr, err)
			usage()
			os.Exit(2)
		}
		slog.Debug("Command failed", "command", os.Args[1], "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
