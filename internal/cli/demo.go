package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/cartsync/internal/commerce"
	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/harness"
	"github.com/roach88/cartsync/internal/store"
)

// DemoOptions holds flags for the demo command.
type DemoOptions struct {
	*RootOptions
	Scenario string // builtin scenario name
	Record   bool   // record dispatches into the configured database
	DB       string // database path; implies Record
	Metrics  bool   // print operation counters
}

// DemoResult is the JSON payload of the demo command.
type DemoResult struct {
	Scenario string               `json:"scenario"`
	Pass     bool                 `json:"pass"`
	Errors   []string             `json:"errors,omitempty"`
	Trace    []harness.TraceEvent `json:"trace"`
	Final    map[string]any       `json:"final"`
	Session  string               `json:"session,omitempty"`
	Metrics  map[string]float64   `json:"metrics,omitempty"`
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk through a checkout against the in-memory backend",
		Long: `Run a builtin scenario and print its trace and final state.

With --record (or --db) every dispatch is appended to the SQLite dispatch
log under the configured session, where 'cartsync log' can read it back.
A recorded session resumes its logical clock from the log.

Examples:
  cartsync demo
  cartsync demo --scenario checkout --metrics
  cartsync demo --db cartsync.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "checkout",
		fmt.Sprintf("builtin scenario (%s)", strings.Join(harness.BuiltinScenarios(), ", ")))
	cmd.Flags().BoolVar(&opts.Record, "record", false, "record dispatches into the configured database")
	cmd.Flags().StringVar(&opts.DB, "db", "", "database path (implies --record)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print operation counters")

	return cmd
}

func runDemo(ctx context.Context, opts *DemoOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.logger(cfg.LogLevel)

	scenario, err := harness.BuiltinScenario(opts.Scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown scenario", err)
	}
	if scenario.CountryCode == "" {
		scenario.CountryCode = cfg.CountryCode
	}
	if scenario.Catalog.Region.ID == "" {
		scenario.Catalog.Region = commerce.Region{
			ID:           cfg.RegionID,
			CurrencyCode: commerce.DefaultRegion.CurrencyCode,
		}
	}

	reg := prometheus.NewRegistry()
	runOpts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithCacheTTL(cfg.CacheTTL),
		harness.WithEngineOptions(
			engine.WithInventoryTTL(cfg.InventoryTTL),
			engine.WithMetrics(engine.NewMetrics(reg)),
		),
	}

	var sessionName string
	if opts.Record || opts.DB != "" {
		path := opts.DB
		if path == "" {
			path = cfg.Database
		}
		db, err := store.Open(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer db.Close()

		session, err := db.OpenSession(ctx, cfg.Session)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open session", err)
		}
		last, err := session.LastUpdated(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read session clock", err)
		}
		sessionName = session.Name()
		// The logical clock continues where the session's log left off.
		runOpts = append(runOpts,
			harness.WithDispatchSink(session),
			harness.WithEngineOptions(engine.WithClock(engine.NewClockAt(last))),
		)
		out.VerboseLog("recording into %s (session %s)", path, sessionName)
	}

	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "demo failed", err)
	}

	demo := DemoResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Errors:   result.Errors,
		Trace:    result.Trace,
		Final:    result.Final,
		Session:  sessionName,
	}
	if opts.Metrics {
		demo.Metrics, err = counterValues(reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to gather metrics", err)
		}
	}

	if out.IsJSON() {
		if !demo.Pass {
			if err := out.Failure(ErrCodeScenarioFailed, "demo expectations failed", demo); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "demo expectations failed")
		}
		return out.Success(demo)
	}

	if err := printDemo(out, demo); err != nil {
		return err
	}
	if !demo.Pass {
		return NewExitError(ExitFailure, "demo expectations failed")
	}
	return nil
}

func printDemo(out *OutputFormatter, demo DemoResult) error {
	w := out.Writer
	fmt.Fprintf(w, "Scenario: %s\n\n", demo.Scenario)
	for _, ev := range demo.Trace {
		line := fmt.Sprintf("[%d] %-8s %s", ev.Seq, ev.Type, ev.Action)
		if ev.Outcome != "" {
			line += " -> " + ev.Outcome
		}
		if ev.Type == harness.EventDispatch && ev.CartID != "" {
			line += fmt.Sprintf(" (cart %s, updated %d)", ev.CartID, ev.LastUpdated)
		}
		fmt.Fprintln(w, line)
	}

	final, err := json.MarshalIndent(demo.Final, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal final state: %w", err)
	}
	fmt.Fprintf(w, "\nFinal state:\n%s\n", final)

	if len(demo.Metrics) > 0 {
		fmt.Fprintln(w, "\nMetrics:")
		keys := make([]string, 0, len(demo.Metrics))
		for k := range demo.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s %g\n", k, demo.Metrics[k])
		}
	}

	if !demo.Pass {
		fmt.Fprintln(w, "\nExpectation failures:")
		for _, e := range demo.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	return nil
}

// counterValues flattens every counter in reg to "name{k=v,...}" keys.
func counterValues(reg *prometheus.Registry) (map[string]float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			key := mf.GetName()
			if len(labels) > 0 {
				key += "{" + strings.Join(labels, ",") + "}"
			}
			out[key] = m.GetCounter().GetValue()
		}
	}
	return out, nil
}
