package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"veracity/internal/analyzer"
	"veracity/internal/config"
	"veracity/internal/connectivity"
	"veracity/internal/queue"
	"veracity/internal/scoring"
)

var (
	// Global flags
	cfgPath string
	verbose bool
	jsonOut bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "veracity",
	Short: "veracity - offline content-credibility engine",
	Long: `veracity analyzes content credibility entirely on-device.

It extracts deterministic text features, scores them against documented
heuristic rules, caches verdicts by feature-vector similarity, and queues
remote operations durably until connectivity returns.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text]",
	Short: "Analyze text credibility on-device",
	Long: `Runs the offline analysis pipeline on the given text:
feature extraction, similarity-cache lookup, and heuristic scoring.
Results are cached so similar content is not recomputed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [kind] [payload]",
	Short: "Queue a remote operation for later delivery",
	Long: `Durably records a remote operation for replay once connectivity
returns. Kind is one of: analysis, quiz_submission, report.`,
	Args: cobra.ExactArgs(2),
	RunE: runEnqueue,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one replay pass over the pending queue",
	RunE:  runSync,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine status",
	RunE:  runStatus,
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the pending operation queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending items oldest-first",
	RunE:  runQueueList,
}

var queueDeadCmd = &cobra.Command{
	Use:   "dead",
	Short: "List dead-lettered items",
	RunE:  runQueueDead,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the verdict cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cached verdicts",
	RunE:  runCacheClear,
}

// newEngine builds an engine from the configured paths. CLI invocations are
// one-shot, so connectivity is pinned offline rather than probed; sync runs
// an explicit pass instead of waiting for a transition event.
func newEngine() (*analyzer.Engine, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return analyzer.New(cfg, logger,
		analyzer.WithObserver(connectivity.NewManual(connectivity.Offline)))
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	verdict := engine.Analyze(strings.Join(args, " "))
	return printVerdict(cmd, verdict)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	kind := queue.Kind(args[0])
	if !queue.ValidKind(kind) {
		return fmt.Errorf("unknown kind %q (want analysis, quiz_submission, or report)", args[0])
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	id, err := engine.EnqueueForLater(kind, []byte(args[1]))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", id)
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	clean := engine.SyncNow(ctx)
	depth, derr := engine.QueueDepth()
	if derr != nil {
		return derr
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sync %s, %d item(s) still pending\n", passResult(clean), depth)
	if !clean {
		os.Exit(1)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	depth, err := engine.QueueDepth()
	if err != nil {
		return err
	}
	dead, err := engine.DeadLetteredItems()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "sync state:    %s\n", engine.SyncState())
	fmt.Fprintf(out, "queue depth:   %d\n", depth)
	fmt.Fprintf(out, "dead-lettered: %d\n", len(dead))
	fmt.Fprintf(out, "cached:        %d\n", engine.CacheSize())
	return nil
}

func runQueueList(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	items, err := engine.PendingItems()
	if err != nil {
		return err
	}
	printItems(cmd, items)
	return nil
}

func runQueueDead(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	items, err := engine.DeadLetteredItems()
	if err != nil {
		return err
	}
	printItems(cmd, items)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.ClearCache(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
	return nil
}

func printVerdict(cmd *cobra.Command, v scoring.Verdict) error {
	out := cmd.OutOrStdout()
	if jsonOut {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprint(out, formatVerdict(v))
	return nil
}

// formatVerdict renders a verdict for terminal output.
func formatVerdict(v scoring.Verdict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "score:  %d/100 (%s)\n", v.Score, v.Status)
	fmt.Fprintf(&b, "%s\n", v.Summary)
	for _, f := range v.Findings {
		fmt.Fprintf(&b, "  [%s] %s: %s\n", f.Severity, f.Section, f.Explanation)
		for _, c := range f.Citations {
			fmt.Fprintf(&b, "        see: %s (%s)\n", c.URL, c.Label)
		}
	}
	return b.String()
}

func printItems(cmd *cobra.Command, items []queue.Item) {
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "queue is empty")
		return
	}
	for _, it := range items {
		fmt.Fprintf(out, "%s  %-16s attempts=%d  %s\n",
			it.EnqueuedAt.Format(time.RFC3339), it.Kind, it.Attempts, it.ID)
	}
}

func passResult(clean bool) string {
	if clean {
		return "clean"
	}
	return "incomplete"
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "veracity.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit JSON output")

	queueCmd.AddCommand(queueListCmd, queueDeadCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(analyzeCmd, enqueueCmd, syncCmd, statusCmd, queueCmd, cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
