package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/ludics"
	"github.com/aretw0/ludics/internal/cli"
	"github.com/aretw0/ludics/internal/config"
	"github.com/aretw0/ludics/internal/fixtures"
	"github.com/aretw0/ludics/internal/presentation/tui"
)

// app carries what the persistent flags resolved to.
type app struct {
	configPath string
	driver     string
	logLevel   string
	fixture    string
	jsonOut    bool

	cfg    *config.Config
	logger *slog.Logger
	loaded *fixtures.Fixture
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "ludics",
		Short: "Ludics is an engine for designs, disputes and strategies",
		Long: `Ludics builds argumentation designs as chronicles of located acts,
plays them against each other, and checks the correspondence between
designs and innocent strategies.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "ludics.yaml", "Config file (yaml, toml or json)")
	pf.StringVar(&a.driver, "store", "", "Store driver override: memory, file, sqlite or redis")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level override")
	pf.StringVarP(&a.fixture, "fixture", "f", "", "Load designs from a YAML fixture into a memory store")
	pf.BoolVar(&a.jsonOut, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		newStepCmd(a),
		newDispCmd(a),
		newPlaysCmd(a),
		newCheckCmd(a),
		newRoundTripCmd(a),
		newBehaviourCmd(a),
		newIncarnationCmd(a),
		newMovesCmd(a),
		newGraphCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.driver != "" {
		cfg.Store.Driver = a.driver
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if a.logger, err = cli.NewLogger(cfg.Log, cmd.ErrOrStderr()); err != nil {
		return err
	}
	if a.fixture != "" {
		if a.loaded, err = fixtures.Load(a.fixture); err != nil {
			return err
		}
	}
	return nil
}

// engine opens the configured store, or a memory store seeded with the fixture.
func (a *app) engine(ctx context.Context, extra ...ludics.Option) (*ludics.Engine, error) {
	if a.loaded == nil {
		return cli.NewEngine(a.cfg, a.logger, extra...)
	}

	cfg := *a.cfg
	cfg.Store.Driver = "memory"
	eng, err := cli.NewEngine(&cfg, a.logger, extra...)
	if err != nil {
		return nil, err
	}
	for _, d := range a.loaded.Designs {
		d.Semantics = cfg.Engine.Semantics
		if _, err := eng.CreateDesign(ctx, d); err != nil {
			return nil, fmt.Errorf("seed %s: %w", d.ID, err)
		}
	}
	return eng, nil
}

// print writes v as JSON with --json, else the markdown report.
func (a *app) print(cmd *cobra.Command, v any, report func() string) error {
	out := cmd.OutOrStdout()
	if a.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return tui.Write(out, report())
}

var errChecksFailed = errors.New("correspondence checks failed")
