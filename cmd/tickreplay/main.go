package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/l1jgo/tickcore/internal/config"
	"github.com/l1jgo/tickcore/internal/logging"
	"github.com/l1jgo/tickcore/internal/replay"
)

var errDiverged = errors.New("replay diverged")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	runs := flag.Int("runs", 4, "number of independent replays")
	level := flag.String("log-level", "warn", "log level")
	format := flag.String("log-format", "console", `"console" or "json"`)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] scenario.yaml...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return errors.New("no scenario given")
	}

	log, err := logging.New(config.LoggingConfig{Level: *level, Format: *format})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := message.NewPrinter(language.English)
	failed := 0
	for _, path := range flag.Args() {
		sc, err := replay.Load(path)
		if err != nil {
			return err
		}
		rep, err := replay.Verify(ctx, sc, *runs, log)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		printReport(p, path, rep)
		if rep.Divergence != nil {
			failed++
			log.Error("replay diverged", zap.String("scenario", path), zap.Stringer("divergence", rep.Divergence))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d scenario(s): %w", failed, errDiverged)
	}
	return nil
}

func printReport(p *message.Printer, path string, rep *replay.Report) {
	status := "\033[32mdeterministic\033[0m"
	if rep.Divergence != nil {
		status = "\033[31mDIVERGED\033[0m"
	}
	p.Printf("%s (%s)\n", rep.Scenario, path)
	p.Printf("  runs %d · events %d · ticks %d · failed calls %d\n", rep.Runs, rep.Events, rep.Steps, rep.Errors)
	p.Printf("  final digest %x  %s\n", rep.Final[:8], status)
	if rep.Divergence != nil {
		p.Printf("  %s\n", rep.Divergence.String())
	}
}
