package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/pthm-cable/veld/config"
	"github.com/pthm-cable/veld/sim"
	"github.com/pthm-cable/veld/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV stats and config snapshot (overrides config)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use config, which falls back to time-based)")
	maxTicks := flag.Int64("max-ticks", 0, "Stop after N ticks (0 = run until extinction)")
	logJSON := flag.Bool("log-json", false, "Emit JSON logs instead of text")

	flag.Parse()

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if *logJSON {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	slog.SetDefault(slog.New(handler))

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *seed != 0 {
		cfg.World.Seed = *seed
	}
	if *outputDir != "" {
		cfg.Telemetry.Dir = *outputDir
	}

	if err := run(cfg, *maxTicks); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, maxTicks int64) error {
	out, err := telemetry.NewOutputManager(cfg.Telemetry.Dir)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := out.WriteConfig(cfg); err != nil {
		return err
	}

	s, err := sim.New(cfg)
	if err != nil {
		return err
	}

	slog.Info("starting simulation",
		"world", cfg.World.Width*cfg.World.Height,
		"max_ticks", maxTicks,
		"output_dir", out.Dir(),
	)

	s.Start()
	for s.State() == sim.StateRunning {
		if err := s.Step(); err != nil {
			return err
		}
		if err := out.WriteStats(s.Stats()); err != nil {
			return err
		}
		if maxTicks > 0 && s.Tick() >= maxTicks {
			s.Stop()
		}
	}

	prey, pred := s.Counts()
	slog.Info("simulation finished",
		"tick", s.Tick(),
		"cause", s.Cause().String(),
		"prey", prey,
		"predators", pred,
	)
	return nil
}
