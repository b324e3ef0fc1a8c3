package cli

import (
	"context"
	"fmt"

	"github.com/mchmarny/cipherbench/pkg/bench"
	"github.com/mchmarny/cipherbench/pkg/data"
	"github.com/mchmarny/cipherbench/pkg/net"
	"github.com/mchmarny/cipherbench/pkg/report"
	urfave "github.com/urfave/cli/v3"
)

const serverFlagName = "server"

func newRemoteCmd() *urfave.Command {
	return &urfave.Command{
		Name:            "remote",
		Usage:           "Score and query runs on a running cipherbench server",
		HideHelpCommand: true,
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:    serverFlagName,
				Usage:   "Base URL of the server",
				Value:   fmt.Sprintf("http://127.0.0.1:%d", serverPortDefault),
				Sources: urfave.EnvVars("CIPHERBENCH_SERVER"),
			},
		},
		Commands: []*urfave.Command{
			{
				Name:      "score",
				Usage:     "Score a single string on the server",
				ArgsUsage: "<text>",
				Flags:     []urfave.Flag{newSeedFlag()},
				Action:    cmdRemoteScore,
			},
			{
				Name:  "run",
				Usage: "Run and store a benchmark on the server",
				Flags: []urfave.Flag{
					newSeedFlag(),
					&urfave.StringSliceFlag{
						Name:    sampleFlagName,
						Aliases: []string{"s"},
						Usage:   "Sample string to evaluate, repeatable (default: samples from server config)",
					},
				},
				Action: cmdRemoteRun,
			},
			{
				Name:  "history",
				Usage: "List runs stored on the server",
				Flags: []urfave.Flag{
					&urfave.IntFlag{
						Name:  limitFlagName,
						Usage: "Maximum number of runs to list",
						Value: data.RunListLimitDefault,
					},
				},
				Action: cmdRemoteHistory,
			},
			{
				Name:      "show",
				Usage:     "Print the report of a run stored on the server",
				ArgsUsage: "<run-id or unique prefix>",
				Action:    cmdRemoteShow,
			},
		},
	}
}

func remoteClient(cmd *urfave.Command) (*net.Client, error) {
	c, err := net.NewClient(cmd.String(serverFlagName), nil)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	return c, nil
}

func cmdRemoteScore(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	if cmd.NArg() != 1 {
		return errTextRequired
	}

	c, err := remoteClient(cmd)
	if err != nil {
		return err
	}

	res, err := c.Score(ctx, &net.RunRequest{Text: cmd.Args().First(), Seed: cmd.Uint64(seedFlagName)})
	if err != nil {
		return fmt.Errorf("scoring on server: %w", err)
	}

	w := cmd.Root().Writer
	if cfg.Format == report.FormatTable {
		results := []*bench.Result{res}
		return report.Render(w, report.FromResults(results), bench.Scores(results))
	}
	return encode(w, cfg.Format, res)
}

func cmdRemoteRun(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	c, err := remoteClient(cmd)
	if err != nil {
		return err
	}

	run, err := c.CreateRun(ctx, &net.RunRequest{
		Samples: cmd.StringSlice(sampleFlagName),
		Seed:    cmd.Uint64(seedFlagName),
	})
	if err != nil {
		return fmt.Errorf("running on server: %w", err)
	}
	return writeRun(cmd.Root().Writer, cfg.Format, run)
}

func cmdRemoteHistory(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	c, err := remoteClient(cmd)
	if err != nil {
		return err
	}

	runs, err := c.ListRuns(ctx, cmd.Int(limitFlagName))
	if err != nil {
		return fmt.Errorf("listing runs on server: %w", err)
	}

	w := cmd.Root().Writer
	if cfg.Format != report.FormatTable {
		return encode(w, cfg.Format, runs)
	}
	return renderRuns(w, runs)
}

func cmdRemoteShow(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	if cmd.NArg() != 1 {
		return errRunIDRequired
	}

	c, err := remoteClient(cmd)
	if err != nil {
		return err
	}

	run, err := c.GetRun(ctx, cmd.Args().First())
	if err != nil {
		return fmt.Errorf("getting run from server: %w", err)
	}
	return writeRun(cmd.Root().Writer, cfg.Format, run)
}
