package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cartsync/internal/config"
)

// ConfigView is the printable form of a config.Config.
type ConfigView struct {
	CountryCode  string `json:"country_code"`
	RegionID     string `json:"region_id"`
	Database     string `json:"database"`
	Session      string `json:"session"`
	CacheTTL     string `json:"cache_ttl"`
	InventoryTTL string `json:"inventory_ttl"`
	LogLevel     string `json:"log_level"`
}

func viewOf(cfg config.Config) ConfigView {
	return ConfigView{
		CountryCode:  cfg.CountryCode,
		RegionID:     cfg.RegionID,
		Database:     cfg.Database,
		Session:      cfg.Session,
		CacheTTL:     cfg.CacheTTL.String(),
		InventoryTTL: cfg.InventoryTTL.String(),
		LogLevel:     cfg.LogLevel.String(),
	}
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and show configuration",
	}
	cmd.AddCommand(newConfigValidateCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	return cmd
}

func newConfigValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a config file against the schema",
		Long: `Validate a CUE or JSON config file against the embedded schema.

The file defaults to --config. Exit code 1 means the file is invalid.

Examples:
  cartsync config validate cartsync.cue
  cartsync config validate --format json cartsync.json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.Config
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return NewExitError(ExitCommandError, "no config file given")
			}
			return runConfigValidate(opts, path, cmd)
		},
	}
}

func runConfigValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("config file not found: %s", path))
	}
	if err != nil {
		var cfgErr *config.Error
		details := any(nil)
		if errors.As(err, &cfgErr) {
			details = map[string]any{"field": cfgErr.Field, "message": cfgErr.Message}
		}
		if err := out.Error(ErrCodeInvalidConfig, err.Error(), details); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "config is invalid")
	}

	if out.IsJSON() {
		return out.Success(map[string]any{"file": path, "valid": true, "config": viewOf(cfg)})
	}
	fmt.Fprintf(out.Writer, "✓ %s is valid\n", path)
	return nil
}

func newConfigShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Print the effective configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			out := opts.formatter(cmd)
			view := viewOf(cfg)
			if out.IsJSON() {
				return out.Success(view)
			}
			w := out.Writer
			fmt.Fprintf(w, "country_code:  %s\n", view.CountryCode)
			fmt.Fprintf(w, "region_id:     %s\n", view.RegionID)
			fmt.Fprintf(w, "database:      %s\n", view.Database)
			fmt.Fprintf(w, "session:       %s\n", view.Session)
			fmt.Fprintf(w, "cache_ttl:     %s\n", view.CacheTTL)
			fmt.Fprintf(w, "inventory_ttl: %s\n", view.InventoryTTL)
			fmt.Fprintf(w, "log_level:     %s\n", view.LogLevel)
			return nil
		},
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
