package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/mchmarny/cipherbench/pkg/bench"
	"github.com/mchmarny/cipherbench/pkg/config"
	"github.com/mchmarny/cipherbench/pkg/data"
	"github.com/mchmarny/cipherbench/pkg/report"
	urfave "github.com/urfave/cli/v3"
)

const (
	multiplierFlagName  = "multiplier"
	seedFlagName        = "seed"
	concurrencyFlagName = "concurrency"
	sampleFlagName      = "sample"
	noSaveFlagName      = "no-save"
)

func newSeedFlag() *urfave.Uint64Flag {
	return &urfave.Uint64Flag{
		Name:  seedFlagName,
		Usage: "Random seed for reproducible output (default: from config, 0 draws one)",
	}
}

func newRunCmd() *urfave.Command {
	return &urfave.Command{
		Name:            "run",
		Usage:           "Encode, decode and score every sample, then print the report",
		HideHelpCommand: true,
		Flags: []urfave.Flag{
			&urfave.FloatFlag{
				Name:    multiplierFlagName,
				Aliases: []string{"m"},
				Usage:   "Max output to input length ratio before disqualification (default: from config)",
			},
			newSeedFlag(),
			&urfave.IntFlag{
				Name:    concurrencyFlagName,
				Aliases: []string{"c"},
				Usage:   "Number of samples evaluated in parallel (default: from config)",
			},
			&urfave.StringSliceFlag{
				Name:    sampleFlagName,
				Aliases: []string{"s"},
				Usage:   "Sample string to evaluate, repeatable (default: samples from config)",
			},
			&urfave.BoolFlag{
				Name:  noSaveFlagName,
				Usage: "Do not persist the run to the history database",
			},
		},
		Action: cmdRun,
	}
}

func cmdRun(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	conf := *cfg.Config
	if cmd.IsSet(multiplierFlagName) {
		conf.MaxLengthMultiplier = cmd.Float(multiplierFlagName)
	}
	if cmd.IsSet(seedFlagName) {
		conf.Seed = cmd.Uint64(seedFlagName)
	}
	if cmd.IsSet(concurrencyFlagName) {
		conf.Concurrency = cmd.Int(concurrencyFlagName)
	}
	if samples := cmd.StringSlice(sampleFlagName); len(samples) > 0 {
		conf.Samples = samples
	}

	run, err := runBenchmark(ctx, cfg, &conf)
	if err != nil {
		return err
	}

	if err := writeRun(cmd.Root().Writer, cfg.Format, run); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if cmd.Bool(noSaveFlagName) {
		return nil
	}
	if err := data.SaveRun(cfg.DB, run); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	slog.Info("run saved", "id", run.ID, "samples", run.Samples, "average", run.AverageScore)
	return nil
}

// runBenchmark evaluates the configured samples. The seed is resolved
// before the run so the stored run can be reproduced.
func runBenchmark(ctx context.Context, cfg *appConfig, conf *config.Config) (*data.Run, error) {
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	seed := conf.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	results, err := bench.Run(ctx, conf.Samples, bench.Options{
		Weights:             conf.Weights,
		MaxLengthMultiplier: conf.MaxLengthMultiplier,
		Concurrency:         conf.Concurrency,
		Seed:                seed,
		FillerMax:           conf.FillerRune(),
		Logger:              slog.Default(),
		Recorder:            cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("running benchmark: %w", err)
	}

	return data.NewRun(results, seed, conf.MaxLengthMultiplier), nil
}

func writeRun(w io.Writer, format string, run *data.Run) error {
	if format == report.FormatTable {
		return report.Render(w, report.FromResults(run.Results), bench.Scores(run.Results))
	}
	return encode(w, format, run)
}
