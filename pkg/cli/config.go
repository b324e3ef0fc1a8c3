package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mchmarny/cipherbench/pkg/config"
	"github.com/mchmarny/cipherbench/pkg/report"
	urfave "github.com/urfave/cli/v3"
)

const forceFlagName = "force"

func newConfigCmd() *urfave.Command {
	return &urfave.Command{
		Name:            "config",
		Usage:           "Inspect or initialize the run configuration",
		HideHelpCommand: true,
		Commands: []*urfave.Command{
			{
				Name:   "show",
				Usage:  "Print the effective configuration",
				Action: cmdConfigShow,
			},
			{
				Name:  "init",
				Usage: "Write the default configuration file",
				Flags: []urfave.Flag{
					&urfave.BoolFlag{
						Name:  forceFlagName,
						Usage: "Overwrite an existing config file",
					},
				},
				Action: cmdConfigInit,
			},
			{
				Name:   "path",
				Usage:  "Print the config file path",
				Action: cmdConfigPath,
			},
		},
	}
}

func cmdConfigShow(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	format := cfg.Format
	if format == report.FormatTable {
		format = report.FormatYAML
	}
	return encode(cmd.Root().Writer, format, cfg.Config)
}

func cmdConfigInit(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	if _, err := os.Stat(cfg.ConfigPath); err == nil && !cmd.Bool(forceFlagName) {
		return fmt.Errorf("config file already exists: %s (use --%s to overwrite)", cfg.ConfigPath, forceFlagName)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config file: %w", err)
	}

	if err := config.SaveFile(cfg.ConfigPath, config.Default()); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(cmd.Root().Writer, "Config written to %s\n", cfg.ConfigPath)
	return nil
}

func cmdConfigPath(_ context.Context, cmd *urfave.Command) error {
	_, err := fmt.Fprintln(cmd.Root().Writer, getConfig(cmd).ConfigPath)
	return err
}
