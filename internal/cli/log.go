package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cartsync/internal/store"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	DB      string // database path; defaults to the configured database
	Session string // restrict to one session
	Cart    string // restrict to dispatches that left this cart in state
}

// LogResult is the JSON payload of the log command.
type LogResult struct {
	Dispatches []store.Dispatch `json:"dispatches"`
	Count      int              `json:"count"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the recorded dispatch log",
		Long: `Read state-store dispatches back from the SQLite dispatch log.

Without filters every session is listed in session then seq order.

Examples:
  cartsync log --db cartsync.db
  cartsync log --session default
  cartsync log --cart cart_0001 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "only this session")
	cmd.Flags().StringVar(&opts.Cart, "cart", "", "only dispatches for this cart id")
	cmd.MarkFlagsMutuallyExclusive("session", "cart")

	return cmd
}

func runLog(ctx context.Context, opts *LogOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	path := opts.DB
	if path == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Database
	}
	if !fileExists(path) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}

	db, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer db.Close()

	var dispatches []store.Dispatch
	if opts.Cart != "" {
		dispatches, err = db.ReadCartDispatches(ctx, opts.Cart)
	} else {
		dispatches, err = db.ReadDispatches(ctx, opts.Session)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read dispatch log", err)
	}
	if dispatches == nil {
		dispatches = []store.Dispatch{}
	}

	if out.IsJSON() {
		return out.Success(LogResult{Dispatches: dispatches, Count: len(dispatches)})
	}

	if len(dispatches) == 0 {
		fmt.Fprintln(out.Writer, "No dispatches recorded.")
		return nil
	}
	for _, d := range dispatches {
		cartID := d.CartID
		if cartID == "" {
			cartID = "-"
		}
		fmt.Fprintf(out.Writer, "%s\t%d\t%s\t%s\t%d\n", d.Session, d.Seq, d.Action, cartID, d.LastUpdated)
		if opts.Verbose && len(d.Payload) > 0 {
			fmt.Fprintf(out.Writer, "\t%s\n", d.Payload)
		}
	}
	fmt.Fprintf(out.Writer, "\n%d dispatches\n", len(dispatches))
	return nil
}
