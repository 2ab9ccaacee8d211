// Package main implements the leetcoach CLI: an adaptive practice scheduler
// for algorithmic problem solving backed by a local SQLite database.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"leetcoach/internal/assembler"
	"leetcoach/internal/attempt"
	"leetcoach/internal/bridge"
	"leetcoach/internal/clock"
	"leetcoach/internal/config"
	"leetcoach/internal/focus"
	"leetcoach/internal/logging"
	"leetcoach/internal/mastery"
	"leetcoach/internal/review"
	"leetcoach/internal/session"
	"leetcoach/internal/store"
)

var (
	// Global flags
	verbose   bool
	workspace string
	timeout   time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "leetcoach",
	Short: "leetcoach - adaptive practice scheduler for coding problems",
	Long: `leetcoach schedules your algorithmic practice.

It tracks every attempt, moves problems through a 7-box spaced-repetition
ladder, derives per-tag mastery, and assembles each session from a mix of
review-due and new problems under your current focus.

Run "leetcoach session start" to get today's problems.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(attemptCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(masteryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the wired components behind every subcommand.
type app struct {
	cfg    *config.Config
	store  *store.LocalStore
	bridge *bridge.Bridge

	attempts  *attempt.Engine
	sessions  *session.Manager
	mastery   *mastery.Engine
	scheduler *review.Scheduler
}

// openApp loads config, initializes logging, opens the store, and wires the
// engines. Callers must Close.
func openApp() (*app, error) {
	ws := workspace
	if ws == "" {
		ws, _ = os.Getwd()
	}

	cfg, err := config.Load(ws)
	if err != nil {
		return nil, err
	}
	if err := logging.Initialize(ws); err != nil {
		logger.Warn("File logging unavailable", zap.Error(err))
	}

	dbPath := cfg.Storage.DatabasePath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(ws, dbPath)
	}
	st, err := store.NewLocalStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", dbPath, err)
	}

	clk := clock.NewSystem()
	settings := func() config.Settings { return cfg.Practice }

	attempts := attempt.NewEngine(st, st, clk)
	masteryEngine := mastery.NewEngine(st, st, st, clk)
	scheduler := review.NewScheduler(st, clk)
	asm := assembler.New(st, st, scheduler, clk)

	sessions := session.NewManager(session.Deps{
		Sessions:  st,
		Problems:  st,
		Attempts:  st,
		State:     st,
		Actions:   st,
		Assembler: asm,
		Mastery:   masteryEngine,
		Focus:     focus.New(),
		Clock:     clk,
		Settings:  settings,
	})

	br := bridge.New(bridge.Deps{
		Attempts:  attempts,
		Sessions:  sessions,
		Mastery:   masteryEngine,
		Scheduler: scheduler,
		Problems:  st,
		State:     st,
		Actions:   st,
	})

	return &app{
		cfg:       cfg,
		store:     st,
		bridge:    br,
		attempts:  attempts,
		sessions:  sessions,
		mastery:   masteryEngine,
		scheduler: scheduler,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.Warn("Store close failed", zap.Error(err))
	}
}

// initCmd sets up the .leetcoach directory with a default config.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize leetcoach in the current workspace",
	Long: `Creates the .leetcoach/ directory with a default config.yaml and an
empty database. Run this once per workspace, then import a problem
catalogue with "leetcoach import".`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	ws := workspace
	if ws == "" {
		ws, _ = os.Getwd()
	}

	cfgPath := filepath.Join(ws, ".leetcoach", "config.yaml")
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Already initialized: %s\n", cfgPath)
		return nil
	}

	cfg := config.DefaultConfig()
	if err := config.Save(ws, cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Initialized leetcoach workspace at %s\n", filepath.Join(ws, ".leetcoach"))
	fmt.Println("Next: leetcoach import <catalogue.json>")
	return nil
}
