package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mchmarny/cipherbench/pkg/data"
	"github.com/mchmarny/cipherbench/pkg/report"
	urfave "github.com/urfave/cli/v3"
)

const (
	limitFlagName = "limit"
	shortIDLength = 8
)

var errRunIDRequired = errors.New("run id argument required")

func newHistoryCmd() *urfave.Command {
	return &urfave.Command{
		Name:            "history",
		Aliases:         []string{"ls"},
		Usage:           "List previous runs, most recent first",
		HideHelpCommand: true,
		Flags: []urfave.Flag{
			&urfave.IntFlag{
				Name:    limitFlagName,
				Aliases: []string{"l"},
				Usage:   "Maximum number of runs to list",
				Value:   data.RunListLimitDefault,
			},
		},
		Action: cmdHistory,
	}
}

func newShowCmd() *urfave.Command {
	return &urfave.Command{
		Name:            "show",
		Usage:           "Print the report of a previous run",
		ArgsUsage:       "<run-id or unique prefix>",
		HideHelpCommand: true,
		Action:          cmdShow,
	}
}

func newDeleteCmd() *urfave.Command {
	return &urfave.Command{
		Name:            "delete",
		Usage:           "Delete a previous run",
		ArgsUsage:       "<run-id or unique prefix>",
		HideHelpCommand: true,
		Action:          cmdDelete,
	}
}

func newStateCmd() *urfave.Command {
	return &urfave.Command{
		Name:            "state",
		Usage:           "Print record counts of the history database",
		HideHelpCommand: true,
		Action:          cmdState,
	}
}

func cmdHistory(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	runs, err := data.ListRuns(cfg.DB, cmd.Int(limitFlagName))
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	w := cmd.Root().Writer
	if cfg.Format != report.FormatTable {
		return encode(w, cfg.Format, runs)
	}
	return renderRuns(w, runs)
}

func cmdShow(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	if cmd.NArg() != 1 {
		return errRunIDRequired
	}

	run, err := data.GetRun(cfg.DB, cmd.Args().First())
	if err != nil {
		return fmt.Errorf("getting run: %w", err)
	}

	w := cmd.Root().Writer
	if cfg.Format == report.FormatTable {
		fmt.Fprintf(w, "Run %s (%s, seed %d, multiplier %s)\n\n",
			run.ID, run.CreatedAt.Local().Format(time.DateTime), run.Seed, formatFloat(run.MaxLengthMultiplier))
	}
	return writeRun(w, cfg.Format, run)
}

func cmdDelete(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	if cmd.NArg() != 1 {
		return errRunIDRequired
	}

	// resolve the prefix first so delete never guesses between runs
	run, err := data.GetRun(cfg.DB, cmd.Args().First())
	if err != nil {
		return fmt.Errorf("getting run: %w", err)
	}
	if err := data.DeleteRun(cfg.DB, run.ID); err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}

	fmt.Fprintf(cmd.Root().Writer, "Deleted run %s\n", run.ID)
	return nil
}

func cmdState(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	state, err := data.GetDataState(cfg.DB)
	if err != nil {
		return fmt.Errorf("getting database state: %w", err)
	}

	format := cfg.Format
	if format == report.FormatTable {
		format = report.FormatJSON
	}
	return encode(cmd.Root().Writer, format, state)
}

func renderRuns(w io.Writer, runs []*data.Run) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Created", "Samples", "Seed", "Multiplier", "Average Score").
		StyleFunc(func(row, _ int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			return s
		})

	for _, r := range runs {
		t.Row(
			r.ID[:min(shortIDLength, len(r.ID))],
			r.CreatedAt.Local().Format(time.DateTime),
			strconv.Itoa(r.Samples),
			strconv.FormatUint(r.Seed, 10),
			formatFloat(r.MaxLengthMultiplier),
			formatFloat(r.AverageScore),
		)
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
