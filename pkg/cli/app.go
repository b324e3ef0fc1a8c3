package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/cipherbench/pkg/config"
	"github.com/mchmarny/cipherbench/pkg/data"
	"github.com/mchmarny/cipherbench/pkg/logging"
	"github.com/mchmarny/cipherbench/pkg/metrics"
	"github.com/mchmarny/cipherbench/pkg/report"
	"github.com/prometheus/client_golang/prometheus"
	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "cipherbench"
	appConfigKey = "app-config"

	debugFlagName  = "debug"
	dbFlagName     = "db"
	configFlagName = "config"
	formatFlagName = "format"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	DBPath     string
	ConfigPath string
	Format     string
	Debug      bool
	DB         *sql.DB
	Config     *config.Config
	Registry   *prometheus.Registry
	Metrics    *metrics.Collectors
}

func getConfig(cmd *urfave.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

func newApp() *urfave.Command {
	return &urfave.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Benchmark a reversible toy cipher against a weighted set of metrics",
		Metadata:              map[string]any{},
		Flags: []urfave.Flag{
			&urfave.BoolFlag{
				Name:  debugFlagName,
				Usage: "Prints verbose logs (optional, default: false)",
			},
			&urfave.StringFlag{
				Name:  dbFlagName,
				Usage: fmt.Sprintf("Path to the Sqlite database file (default: $HOME/.%s/%s)", appName, data.DataFileName),
			},
			&urfave.StringFlag{
				Name:  configFlagName,
				Usage: fmt.Sprintf("Path to the YAML config file (default: $HOME/.%s/%s)", appName, config.FileName),
			},
			&urfave.StringFlag{
				Name:  formatFlagName,
				Usage: fmt.Sprintf("Output format [%s]", strings.Join(report.Formats(), ", ")),
				Value: report.FormatTable,
				Validator: func(v string) error {
					if !isFormat(v) {
						return fmt.Errorf("unsupported format: %s", v)
					}
					return nil
				},
			},
		},
		Commands: []*urfave.Command{
			newRunCmd(),
			newEncodeCmd(),
			newDecodeCmd(),
			newHistoryCmd(),
			newShowCmd(),
			newDeleteCmd(),
			newStateCmd(),
			newConfigCmd(),
			newServerCmd(),
			newRemoteCmd(),
			newResetCmd(),
		},
		Before: func(ctx context.Context, cmd *urfave.Command) (context.Context, error) {
			cfg, err := newAppConfig(cmd)
			if err != nil {
				return ctx, err
			}
			cmd.Metadata[appConfigKey] = cfg
			return ctx, nil
		},
		After: func(_ context.Context, cmd *urfave.Command) error {
			if cfg, ok := cmd.Metadata[appConfigKey].(*appConfig); ok && cfg.DB != nil {
				cfg.DB.Close()
			}
			return nil
		},
	}
}

func newAppConfig(cmd *urfave.Command) (*appConfig, error) {
	cfg := &appConfig{
		DBPath:     cmd.String(dbFlagName),
		ConfigPath: cmd.String(configFlagName),
		Format:     strings.ToLower(cmd.String(formatFlagName)),
		Debug:      cmd.Bool(debugFlagName),
	}

	if cfg.Debug {
		logging.SetDefaultCLILogger("debug")
	}

	if cfg.DBPath == "" || cfg.ConfigPath == "" {
		home, _, err := config.GetOrCreateHomeDir(appName)
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		if cfg.DBPath == "" {
			cfg.DBPath = filepath.Join(home, data.DataFileName)
		}
		if cfg.ConfigPath == "" {
			cfg.ConfigPath = filepath.Join(home, config.FileName)
			if _, err := config.ReadOrCreate(home); err != nil {
				return nil, fmt.Errorf("creating config: %w", err)
			}
		}
	}

	conf, err := loadConfig(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Config = conf

	if err := data.Init(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	db, err := data.GetDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	cfg.DB = db

	cfg.Registry = prometheus.NewRegistry()
	if cfg.Metrics, err = metrics.New(cfg.Registry); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	slog.Debug("app configured", "db", cfg.DBPath, "config", cfg.ConfigPath, "format", cfg.Format)
	return cfg, nil
}

// loadConfig reads the config file, falling back to defaults when the
// file does not exist yet.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("config file not found, using defaults", "path", path)
		return config.Default(), nil
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return c, nil
}

func isFormat(v string) bool {
	for _, f := range report.Formats() {
		if strings.EqualFold(f, v) {
			return true
		}
	}
	return false
}

// encode writes v as YAML when requested, JSON otherwise.
func encode(w io.Writer, format string, v any) error {
	if format == report.FormatYAML {
		e := yaml.NewEncoder(w)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
