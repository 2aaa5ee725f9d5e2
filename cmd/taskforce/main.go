package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/example/taskforce/internal/agent"
	"github.com/example/taskforce/internal/backend"
	"github.com/example/taskforce/internal/config"
	"github.com/example/taskforce/internal/coordinator"
	"github.com/example/taskforce/internal/disband"
	"github.com/example/taskforce/internal/events"
	"github.com/example/taskforce/internal/persistence"
	"github.com/example/taskforce/internal/tui"
)

func main() {
	// Signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ProcessManager for subprocess tracking
	pm := backend.NewProcessManager()

	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
		os.Exit(1)
	}
	globalPath := filepath.Join(homeDir, ".taskforce", "config.json")
	projectPath := filepath.Join(".taskforce", "config.json")

	storePath := cfg.StorePath
	if storePath == "" {
		storePath = filepath.Join(".taskforce", "sessions.db")
	}
	store, err := persistence.NewSQLiteStore(ctx, storePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening session store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	bus := events.NewBus()
	defer bus.Close()

	roster := agent.NewRoster()
	sched := disband.NewScheduler(
		time.Duration(cfg.Disband.DelayMS)*time.Millisecond,
		time.Duration(cfg.Disband.GraceMS)*time.Millisecond,
	)

	coord := coordinator.New(coordinator.Options{
		Roster:  roster,
		Bus:     bus,
		Disband: sched,
		Store:   store,
		WorkDir: cfg.WorkDir,
	})

	sup := backend.NewSupervisor(backend.Config{
		Command:        cfg.CLI.Command,
		Args:           cfg.CLI.Args,
		Model:          cfg.CLI.Model,
		PermissionMode: cfg.CLI.PermissionMode,
	}, pm, coord.Callbacks())
	coord.SetStarter(coordinator.NewRetryStarter(sup, cfg.CLI.Command))

	// Sessions persisted by an earlier run come back as resumable tasks.
	if n, err := coord.RecoverSessions(ctx); err != nil {
		log.Printf("WARNING: recovering saved sessions: %v", err)
	} else if n > 0 {
		log.Printf("Recovered %d resumable task(s) from previous run", n)
	}

	model := tui.New(bus, roster, coord, cfg, globalPath, projectPath)
	p := tea.NewProgram(model, tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	// A prompt on the command line spawns a team and submits it right away.
	if len(os.Args) > 1 {
		prompt := os.Args[1]
		go func() {
			if _, _, err := coord.SubmitTaskWithNewTeam(ctx, prompt, cfg.Team.Roles); err != nil {
				log.Printf("ERROR: submitting initial task: %v", err)
			}
		}()
	}

	select {
	case err := <-errChan:
		// Normal TUI exit
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		// Signal received; restore default handling so a second Ctrl+C
		// force-exits.
		stop()

		log.Println("Shutdown signal received, cleaning up...")

		if err := pm.KillAll(); err != nil {
			log.Printf("Error killing subprocesses: %v", err)
		}

		p.Quit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		select {
		case err := <-errChan:
			if err != nil {
				log.Printf("TUI exit error: %v", err)
			}
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded, forcing exit")
		}
	}

	log.Println("Shutdown complete")
}
