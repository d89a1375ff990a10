package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/tj/go-naturaldate"

	"github.com/christopherklint97/balancr/internal/config"
	"github.com/christopherklint97/balancr/internal/history"
	"github.com/christopherklint97/balancr/internal/logger"
	"github.com/christopherklint97/balancr/internal/metrics"
	"github.com/christopherklint97/balancr/internal/pipeline"
	"github.com/christopherklint97/balancr/internal/report"
	"github.com/christopherklint97/balancr/internal/scheduler"
	"github.com/christopherklint97/balancr/internal/store"
	"github.com/christopherklint97/balancr/internal/toggl"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:          "balancr",
	Short:        "Work/life balance metrics from Toggl Track",
	Long:         "balancr pulls your Toggl Track entries and keeps daily, weekly, monthly and rolling working-day balance metrics as JSON documents for a dashboard.",
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch recent entries and update the metrics",
	RunE:  runSync,
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Rebuild the history from a start date",
	RunE:  runBackfill,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest days and rolling windows",
	RunE:  runStatus,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the periodic sync scheduler",
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running scheduler",
	RunE:  runStop,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

var schemaCmd = &cobra.Command{
	Use:   "schema [document]",
	Short: "Print the JSON Schema of the published documents",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSchema,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/.config/balancr/config.toml)")

	syncCmd.Flags().String("since", "", `start date, YYYY-MM-DD or an expression like "2 weeks ago"`)
	syncCmd.Flags().String("until", "", "last date to include (default today)")
	syncCmd.Flags().Bool("dry-run", false, "compute metrics without writing anything")

	backfillCmd.Flags().String("since", "", "start date (default [sync] backfill_since)")
	backfillCmd.Flags().Bool("reports", false, "read through the Reports API instead of /me/time_entries")
	backfillCmd.Flags().Bool("dry-run", false, "compute metrics without writing anything")

	statusCmd.Flags().Int("days", 10, "number of recent days to show")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, component string) *zerolog.Logger {
	l := logger.New(logger.Options{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Component: component,
	})
	return &l
}

func rulesFrom(cfg *config.Config) metrics.Rules {
	return metrics.Rules{
		HomeOfficeTag: cfg.Metrics.HomeOfficeTag,
		CommutingTag:  cfg.Metrics.CommutingTag,
		LateWorkHour:  cfg.Metrics.LateWorkHour,
	}
}

// openHistory returns the day store for the configured backend and the file
// store that publishes the documents.
func openHistory(cfg *config.Config, log *zerolog.Logger) (history.Store, *history.FileStore, func(), error) {
	files := history.NewFileStore(cfg.Storage.DataDir, cfg.Storage.SourceLabel, logger.Named(log, "history"))
	if cfg.Storage.Backend != "sqlite" {
		return files, files, func() {}, nil
	}
	db, err := store.OpenDir(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return db, files, func() { db.Close() }, nil
}

func newPipeline(cfg *config.Config, reports, dryRun bool, log *zerolog.Logger) (*pipeline.Pipeline, func(), error) {
	if err := cfg.RequireToggl(); err != nil {
		return nil, nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	hist, files, closeFn, err := openHistory(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	client := toggl.NewClient(cfg.Toggl.APIToken, cfg.Toggl.BaseURL, cfg.Toggl.ReportsURL, time.Hour, logger.Named(log, "toggl"))
	source := toggl.NewSource(client, cfg.Toggl.Workspace, cfg.Sync.WindowDays, reports)

	p := pipeline.New(source, hist, files, pipeline.Options{
		Location: loc,
		Rules:    rulesFrom(cfg),
		Windows:  cfg.Metrics.RollingWindows,
		DryRun:   dryRun,
	}, logger.Named(log, "pipeline"))
	return p, closeFn, nil
}

// acquireLock serializes writers. Dry runs skip it.
func acquireLock(dryRun bool) (func(), error) {
	if dryRun {
		return func() {}, nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	lock, err := scheduler.AcquireLock(dir)
	if err != nil {
		if errors.Is(err, scheduler.ErrLocked) {
			return nil, fmt.Errorf("%w: wait for it to finish or run 'balancr stop'", err)
		}
		return nil, err
	}
	return func() { lock.Release() }, nil
}

// parseDay resolves a YYYY-MM-DD date or a natural-language expression to the
// local midnight of that day.
func parseDay(expr string, now time.Time, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(metrics.DateLayout, expr, loc); err == nil {
		return t, nil
	}
	t, err := naturaldate.Parse(expr, now.In(loc), naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", expr, err)
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	since, _ := cmd.Flags().GetString("since")
	until, _ := cmd.Flags().GetString("until")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	now := time.Now()
	start, end := scheduler.SyncWindow(now, cfg.Sync.LookbackDays, loc)
	if since != "" {
		if start, err = parseDay(since, now, loc); err != nil {
			return err
		}
	}
	if until != "" {
		last, err := parseDay(until, now, loc)
		if err != nil {
			return err
		}
		end = last.AddDate(0, 0, 1)
	}
	if !end.After(start) {
		return fmt.Errorf("empty range: %s is not before %s", start.Format(metrics.DateLayout), end.Format(metrics.DateLayout))
	}

	return execute(cfg, start, end, false, dryRun, "sync")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	since, _ := cmd.Flags().GetString("since")
	reports, _ := cmd.Flags().GetBool("reports")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if since == "" {
		since = cfg.Sync.BackfillSince
	}
	if since == "" {
		return fmt.Errorf("no start date: pass --since or set [sync] backfill_since")
	}

	now := time.Now()
	start, err := parseDay(since, now, loc)
	if err != nil {
		return err
	}
	_, end := scheduler.SyncWindow(now, 0, loc)

	return execute(cfg, start, end, reports, dryRun, "backfill")
}

func execute(cfg *config.Config, start, end time.Time, reports, dryRun bool, component string) error {
	log := newLogger(cfg, component)

	release, err := acquireLock(dryRun)
	if err != nil {
		return err
	}
	defer release()

	p, closeFn, err := newPipeline(cfg, reports, dryRun, log)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := p.Run(ctx, start, end)
	if err != nil {
		return fmt.Errorf("%s failed: %w", component, err)
	}
	fmt.Print(report.RenderResult(res))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	n, _ := cmd.Flags().GetInt("days")
	if n <= 0 {
		n = 10
	}

	log := newLogger(cfg, "status")
	hist, files, closeFn, err := openHistory(cfg, log)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	var status report.Status

	if db, ok := hist.(*store.DB); ok {
		if status.Days, err = db.Recent(ctx, n); err != nil {
			return fmt.Errorf("reading recent days: %w", err)
		}
		status.LastSyncAt, _ = db.GetState(ctx, store.StateLastSyncAt)
		status.LastRunID, _ = db.GetState(ctx, store.StateLastRunID)
	} else {
		days, err := files.Days(ctx)
		if err != nil {
			return err
		}
		sorted := metrics.SortedDays(days)
		if len(sorted) > n {
			sorted = sorted[len(sorted)-n:]
		}
		status.Days = sorted
		if prov, found, err := files.LastRun(ctx); err == nil && found {
			status.LastSyncAt = prov.GeneratedAt.Format(time.RFC3339)
			status.LastRunID = prov.RunID
		}
	}

	if status.Rolling, err = files.ReadPeriods(ctx, history.WorkingDays); err != nil {
		return err
	}

	fmt.Print(report.RenderStatus(status))
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	log := newLogger(cfg, "scheduler")

	release, err := acquireLock(false)
	if err != nil {
		return err
	}
	defer release()

	p, closeFn, err := newPipeline(cfg, false, false, log)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := signalContext()
	defer cancel()

	interval := time.Duration(cfg.Sync.IntervalHours) * time.Hour
	sched := scheduler.New(p, interval, cfg.Sync.LookbackDays, loc, log)
	return sched.Run(ctx)
}

func runStop(cmd *cobra.Command, args []string) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	pid, err := scheduler.ReadPID(dir)
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending stop signal: %w", err)
	}

	fmt.Printf("Sent stop signal to balancr (PID %d)\n", pid)
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := configFile
	if configPath == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		data, err := config.DefaultFile()
		if err != nil {
			return err
		}
		if err := os.WriteFile(configPath, data, 0600); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	if path, err := exec.LookPath(editor); err == nil {
		editor = path
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor)

	proc := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	process, err := os.StartProcess(editor, []string{editor, configPath}, &proc)
	if err != nil {
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	_, err = process.Wait()
	return err
}

func runSchema(cmd *cobra.Command, args []string) error {
	schemas := history.Schemas()

	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(args) == 1 {
		s, ok := schemas[args[0]]
		if !ok {
			return fmt.Errorf("unknown document %q (one of %v)", args[0], names)
		}
		return printJSON(s)
	}

	out := make(map[string]any, len(schemas))
	for name, s := range schemas {
		out[name] = s
	}
	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
