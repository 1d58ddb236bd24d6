package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cerea1/lifetime/internal/config"
	"github.com/cerea1/lifetime/internal/core/event"
	"github.com/cerea1/lifetime/internal/core/lifetime"
	coresys "github.com/cerea1/lifetime/internal/core/system"
	"github.com/cerea1/lifetime/internal/data"
	"github.com/cerea1/lifetime/internal/metrics"
	"github.com/cerea1/lifetime/internal/persist"
	"github.com/cerea1/lifetime/internal/scripting"
	"github.com/cerea1/lifetime/internal/system"
	"github.com/cerea1/lifetime/internal/world"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(kinds int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            lifetimed  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mkinds:\033[0m %d\n\n", kinds)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Arena host ────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/lifetimed.toml"
	if p := os.Getenv(config.EnvPath); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Load kinds and build the lifetime graph
	kinds, err := data.LoadKindTable(cfg.Arena.KindsFile)
	if err != nil {
		return fmt.Errorf("load kinds: %w", err)
	}
	b := lifetime.NewBuilder(log).Strict(cfg.Arena.StrictKinds)
	kinds.Declare(b)
	reg, err := b.Build()
	if err != nil {
		return fmt.Errorf("build lifetime graph: %w", err)
	}
	defer reg.Close()

	printBanner(kinds.Count())
	printSection("kinds")
	printStat("declared", kinds.Count())
	printStat("graph nodes", len(reg.Kinds()))

	// 4. Arena state
	bus := event.NewBus()
	arena, err := world.NewState(reg, kinds, bus, cfg.Arena.PoolPrewarm, log)
	if err != nil {
		return fmt.Errorf("init arena: %w", err)
	}
	printOK(fmt.Sprintf("arena ready (prewarm %d per pooled kind)", cfg.Arena.PoolPrewarm))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := coresys.NewRunner()

	// 5. Scenario script
	if cfg.Arena.Script != "" {
		engine, err := scripting.NewEngine(cfg.Arena.Script, arena, log)
		if err != nil {
			return fmt.Errorf("load script: %w", err)
		}
		defer engine.Close()
		runner.Register(system.NewScriptSystem(arena, bus, engine))
		printOK("script " + cfg.Arena.Script)
	}

	runner.Register(system.NewDispatchSystem(bus))
	runner.Register(system.NewExpirySystem(arena, log))

	// 6. Metrics
	if cfg.Metrics.Enabled {
		collector := metrics.New()
		runner.Register(system.NewMetricsSystem(arena, bus, collector))
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.Listen, log); err != nil {
				log.Error("metrics server", zap.Error(err))
			}
		}()
		printOK("metrics on " + cfg.Metrics.Listen)
	}

	// 7. Journal
	var (
		journal *system.JournalSystem
		repo    *persist.JournalRepo
		runID   uuid.UUID
	)
	if cfg.Journal.Enabled {
		printSection("journal")
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := persist.NewDB(dbCtx, cfg.Journal, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		version, err := persist.RunMigrations(dbCtx, db.Pool, log)
		if err != nil {
			cancel()
			return fmt.Errorf("migrations: %w", err)
		}
		printStat("schema version", int(version))
		repo = persist.NewJournalRepo(db)
		runID, err = repo.StartRun(dbCtx, kinds.Names())
		cancel()
		if err != nil {
			return fmt.Errorf("start run: %w", err)
		}
		journal = system.NewJournalSystem(bus, repo, runID, log, cfg.Journal.FlushTicks)
		runner.Register(journal)
		printOK("run " + runID.String())
	}

	runner.Register(system.NewCleanupSystem(arena))

	// 8. Tick loop
	ticker := time.NewTicker(cfg.Arena.TickRate)
	defer ticker.Stop()

	printSection("running")
	printReady(fmt.Sprintf("tick %s, %d systems", cfg.Arena.TickRate, runner.Len()))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			arena.Advance()
			runner.Tick(cfg.Arena.TickRate)
			if cfg.Arena.MaxTicks > 0 && arena.Tick() >= cfg.Arena.MaxTicks {
				log.Info("max ticks reached", zap.Uint64("tick", arena.Tick()))
				return shutdown(arena, runner, journal, repo, runID, log)
			}
		case <-ctx.Done():
			log.Info("shutdown signal received", zap.Uint64("tick", arena.Tick()))
			return shutdown(arena, runner, journal, repo, runID, log)
		}
	}
}

// shutdown disposes and destroys every actor, delivers the resulting events
// and writes the rest of the journal.
func shutdown(arena *world.State, runner *coresys.Runner, journal *system.JournalSystem, repo *persist.JournalRepo, runID uuid.UUID, log *zap.Logger) error {
	arena.Shutdown()
	runner.TickPhase(coresys.PhaseDispatch, 0)

	var err error
	if journal != nil {
		journal.Flush()
		if n := journal.Buffered(); n > 0 {
			err = fmt.Errorf("journal: %d entries not written", n)
		}
		ctx, cancel := context.WithTimeout(context.Background(), persist.WriteTimeout)
		defer cancel()
		err = errors.Join(err, repo.FinishRun(ctx, runID, arena.Tick()))
	}
	log.Info("arena stopped",
		zap.Uint64("tick", arena.Tick()),
		zap.Int("subscriber_failures", arena.Failures()))
	return err
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
