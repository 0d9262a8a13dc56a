package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/l1jgo/workbench/internal/component"
	"github.com/l1jgo/workbench/internal/config"
	"github.com/l1jgo/workbench/internal/core/ecs"
	"github.com/l1jgo/workbench/internal/core/event"
	"github.com/l1jgo/workbench/internal/editor"
	"github.com/l1jgo/workbench/internal/input"
	"github.com/l1jgo/workbench/internal/logbridge"
	"github.com/l1jgo/workbench/internal/metrics"
	"github.com/l1jgo/workbench/internal/mode"
	"github.com/l1jgo/workbench/internal/persist"
	"github.com/l1jgo/workbench/internal/scripting"
	"github.com/l1jgo/workbench/internal/system"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the editor loop with an interactive console on stdin",
	RunE:  runEditor,
}

func init() {
	runCmd.Flags().Bool("write-config", false, "write the effective settings back to the config path on exit")
	rootCmd.AddCommand(runCmd)
}

func editorOptions(cfg config.EditorConfig) editor.Options {
	return editor.Options{
		HistoryCapacity:  cfg.HistoryCapacity,
		CoalesceWindow:   cfg.CoalesceWindow,
		GroupIdleTimeout: cfg.GroupIdleTimeout,
		FixedStep:        cfg.FixedStep,
		DefaultScale:     cfg.DefaultScale,
	}
}

func runEditor(cmd *cobra.Command, _ []string) error {
	// 1. Config and logger
	cfg, cfgPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logbridge.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	log.Info("config loaded", zap.String("path", cfgPath))

	bindings, err := input.LoadBindings(cfg.Input.Bindings)
	if err != nil {
		return fmt.Errorf("keybindings: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. World and editor
	reg := ecs.NewRegistry()
	component.RegisterAll(reg)
	bus := event.NewBus()
	world, handles := demoWorld(reg)
	log.Info("demo world ready", zap.Int("entities", world.EntityCount()), zap.Int("render_slots", handles.Len()))
	ed := editor.New(world, bus, log, editorOptions(cfg.Editor))
	logbridge.Subscribe(bus, log)

	// 3. Game systems, only ticked in Play
	regen := system.NewRegenSystem(cfg.Simulation.RegenEvery)
	ed.AddGameSystem(system.NewMotionSystem())
	ed.AddGameSystem(regen)
	ed.AddGameSystem(system.NewCleanupSystem())
	ed.OnEnterPlay(regen.Reset)

	scripts, err := scripting.NewEngine(cfg.Simulation.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("scripts: %w", err)
	}
	defer scripts.Close()
	ed.AddGameSystem(scripting.NewSystem(scripts))
	log.Info("scripts loaded", zap.Strings("systems", scripts.Systems()))

	if cfg.Simulation.WatchScripts && cfg.Simulation.ScriptsDir != "" {
		watcher, err := scripting.NewWatcher(cfg.Simulation.ScriptsDir, log)
		if err != nil {
			log.Warn("script watcher disabled", zap.Error(err))
		} else if err := watcher.Start(); err != nil {
			log.Warn("script watcher disabled", zap.Error(err))
		} else {
			defer watcher.Stop()
			ed.OnEnterPlay(scripts.ReloadHook(watcher, bus))
		}
	}

	// 4. Metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		m.Subscribe(bus)
		ed.AddEditorSystem(m.System(func() (string, time.Duration) {
			return ed.CurrentMode().String(), ed.ClockSnapshot().Elapsed
		}))
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.ListenAddress, log); err != nil {
				log.Error("metrics server", zap.Error(err))
			}
		}()
	}

	// 5. Scenes and journal
	con := &console{ed: ed, bindings: bindings, out: os.Stdout}
	var (
		journal  *persist.Journal
		batches  chan []persist.JournalEntry
		writerWG sync.WaitGroup
	)
	if cfg.Database.Enabled {
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := persist.NewDB(dbCtx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		err = persist.RunMigrations(dbCtx, db.Pool)
		cancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		scenes := persist.NewSceneRepo(db)
		con.scenes = scenes

		journal = persist.NewJournal(bus, time.Now)
		batches = make(chan []persist.JournalEntry, 16)
		repo := persist.NewJournalRepo(db)
		con.journal = repo
		writerWG.Add(1)
		go func() {
			defer writerWG.Done()
			for batch := range batches {
				wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := repo.Write(wctx, batch); err != nil {
					log.Error("journal write", zap.Error(err), zap.Int("entries", len(batch)))
				}
				cancel()
			}
		}()

		if cfg.Editor.Scene != "" {
			if err := loadScene(ctx, ed, scenes, cfg.Editor.Scene); err != nil {
				if !errors.Is(err, persist.ErrSceneNotFound) {
					return fmt.Errorf("load scene: %w", err)
				}
				log.Warn("startup scene not found, using demo world", zap.String("scene", cfg.Editor.Scene))
			}
		}
	}
	flushJournal := func() {
		if journal == nil {
			return
		}
		if entries := journal.Drain(); len(entries) > 0 {
			select {
			case batches <- entries:
			default:
				log.Warn("journal backlog, dropping entries", zap.Int("entries", len(entries)))
			}
		}
	}

	// 6. Loop
	lines := make(chan string)
	go readLines(os.Stdin, lines)

	ticker := time.NewTicker(cfg.Simulation.TickRate)
	defer ticker.Stop()
	flush := time.NewTicker(time.Second)
	defer flush.Stop()

	log.Info("editor ready", zap.Duration("tick", cfg.Simulation.TickRate), zap.String("play", bindings.Label(input.ActionPlayStop)))
	fmt.Fprintln(os.Stdout, "type help for commands")

	last := time.Now()
	for done := false; !done; {
		select {
		case now := <-ticker.C:
			start := time.Now()
			ed.Tick(now.Sub(last))
			last = now
			if m != nil {
				m.ObserveTick(time.Since(start))
			}
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			err := con.exec(ctx, line)
			switch {
			case errors.Is(err, errQuit):
				done = true
			case err != nil:
				fmt.Fprintf(os.Stdout, "error: %v\n", err)
			}
		case <-flush.C:
			flushJournal()
		case <-ctx.Done():
			log.Info("shutdown signal received")
			done = true
		}
	}

	// Leave Play so the edit-time state is what remains in memory.
	if ed.CurrentMode() != mode.Edit {
		if err := ed.Stop(); err != nil {
			log.Warn("stop on exit", zap.Error(err))
		}
	}
	// One last tick delivers the final events to the journal.
	ed.Tick(0)
	flushJournal()
	if batches != nil {
		close(batches)
		writerWG.Wait()
	}

	if write, _ := cmd.Flags().GetBool("write-config"); write {
		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		log.Info("config written", zap.String("path", cfgPath))
	}
	log.Info("editor stopped")
	return nil
}

// readLines forwards stdin lines to the editor loop, which owns all state.
func readLines(r io.Reader, out chan<- string) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- sc.Text()
	}
	close(out)
}
