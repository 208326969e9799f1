package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/tickcore/internal/config"
	"github.com/l1jgo/tickcore/internal/logging"
	"github.com/l1jgo/tickcore/internal/scripting"
	"github.com/l1jgo/tickcore/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner() {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             tickcore  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m     deterministic simulation substrate    \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, value any) {
	s := fmt.Sprint(value)
	dotsLen := 42 - len(label) - len(s)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), s)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/tickd.toml"
	if p := os.Getenv("TICKCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	flag.StringVar(&cfgPath, "config", cfgPath, "path to the TOML config")
	maxTicks := flag.Uint64("ticks", 0, "stop after this many ticks (0 = run until signalled)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner()

	// 3. Build the world
	w, err := world.New(cfg, log)
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}
	defer w.Destroy()

	printSection("world")
	printStat("max entities", cfg.Simulation.MaxEntities)
	printStat("lanes", w.Router().Count())
	printStat("start tick", w.CurrentTick())
	printStat("target ups", cfg.Simulation.TargetUPS)
	fmt.Println()

	// 4. Load rule scripts and bind them to the phases
	engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	if err := engine.Bind(w); err != nil {
		return fmt.Errorf("bind scripts: %w", err)
	}

	var reloads <-chan string
	if cfg.Scripting.Watch {
		watcher, err := scripting.NewWatcher(cfg.Scripting.Dir)
		if err != nil {
			return fmt.Errorf("watch scripts: %w", err)
		}
		defer watcher.Close()
		reloads = watcher.Events
		go func() {
			for err := range watcher.Errors {
				log.Warn("script watcher error", zap.Error(err))
			}
		}()
	}

	// 5. Start tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ups := cfg.Simulation.TargetUPS
	if ups <= 0 {
		ups = 20
	}
	interval := time.Second / time.Duration(ups)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	meter := time.NewTicker(time.Second)
	defer meter.Stop()

	printSection("running")
	printReady(fmt.Sprintf("tick loop started (interval: %s)", interval))
	fmt.Println()

	var stepped, window uint64
	for {
		select {
		case <-ticker.C:
			if err := w.Step(); err != nil {
				return fmt.Errorf("step: %w", err)
			}
			stepped++
			window++
			if *maxTicks > 0 && stepped >= *maxTicks {
				log.Info("tick limit reached", zap.Uint64("ticks", stepped), zap.String("digest", digest(w)))
				return nil
			}
		case <-meter.C:
			// Effective UPS is measured here, never inside the core.
			w.SetEffectiveUPS(int(window))
			if int(window) < ups*9/10 {
				log.Warn("running behind target", zap.Uint64("effective_ups", window), zap.Int("target_ups", ups))
			}
			window = 0
		case file, ok := <-reloads:
			if !ok {
				reloads = nil
				continue
			}
			if err := engine.Reload(); err != nil {
				log.Error("script reload failed, keeping previous scripts", zap.String("file", file), zap.Error(err))
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received",
				zap.String("signal", sig.String()),
				zap.Uint64("tick", w.CurrentTick()),
				zap.String("digest", digest(w)),
			)
			return nil
		}
	}
}

func digest(w *world.World) string {
	d := w.Digest()
	return fmt.Sprintf("%x", d[:8])
}
