package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stampede/internal/engine"
	"stampede/internal/history"
	"stampede/internal/metrics"
	"stampede/internal/output"
	"stampede/internal/report"
	"stampede/internal/workload"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test against a target service",
	Long: `Run a named scenario against a target. The target host comes from
--host or the STAMPEDE_HOST environment variable; an optional bearer
credential comes from STAMPEDE_AUTH_TOKEN.

Examples:
  stampede run --scenario baseline --host http://localhost:8080
  stampede run --scenario stress --users 300 --spawn-rate 30
  stampede run --profile workload.yaml --host http://localhost:8080 --headless`,
	Run: func(cmd *cobra.Command, args []string) {
		runLoadTest(cmd)
	},
}

func init() {
	runCmd.Flags().String("scenario", "baseline", "named scenario to run")
	runCmd.Flags().String("profile", "", "workload profile YAML file (replaces the built-in catalog)")
	runCmd.Flags().String("host", "", "target base URL (defaults to STAMPEDE_HOST)")
	runCmd.Flags().Int("users", 0, "override target population")
	runCmd.Flags().Int("spawn-rate", 0, "override spawn rate (users per tick)")
	runCmd.Flags().String("duration", "", "override run duration (e.g. 5m; 0 runs until interrupted)")
	runCmd.Flags().String("timeout", "10s", "per-request response bound")
	runCmd.Flags().String("thresholds", "", "threshold-table override YAML file")
	runCmd.Flags().Bool("headless", false, "plain line output, no live progress")
	runCmd.Flags().Bool("html", false, "also write a rendered HTML summary")
	runCmd.Flags().String("output", report.DefaultDir, "directory for report artifacts")
	runCmd.Flags().Bool("verbose", false, "verbose logging")
	runCmd.Flags().Bool("no-history", false, "do not record this run in the history store")
}

func runLoadTest(cmd *cobra.Command) {
	scenarioName, _ := cmd.Flags().GetString("scenario")
	profilePath, _ := cmd.Flags().GetString("profile")
	host, _ := cmd.Flags().GetString("host")
	users, _ := cmd.Flags().GetInt("users")
	spawnRate, _ := cmd.Flags().GetInt("spawn-rate")
	durationStr, _ := cmd.Flags().GetString("duration")
	timeoutStr, _ := cmd.Flags().GetString("timeout")
	thresholdsPath, _ := cmd.Flags().GetString("thresholds")
	headless, _ := cmd.Flags().GetBool("headless")
	htmlOut, _ := cmd.Flags().GetBool("html")
	outputDir, _ := cmd.Flags().GetString("output")
	verbose, _ := cmd.Flags().GetBool("verbose")
	noHistory, _ := cmd.Flags().GetBool("no-history")

	if host == "" {
		host = os.Getenv("STAMPEDE_HOST")
	}
	if host == "" {
		fatalf("error: target host required (--host or STAMPEDE_HOST)")
	}

	duration, err := workload.ParseDurationString(durationStr)
	if err != nil {
		fatalf("error: %v", err)
	}
	timeout, err := workload.ParseDurationString(timeoutStr)
	if err != nil {
		fatalf("error: %v", err)
	}

	profile, err := buildProfile(scenarioName, profilePath, users, spawnRate, duration)
	if err != nil {
		fatalf("error: %v", err)
	}

	thresholds := metrics.DefaultThresholds()
	if thresholdsPath != "" {
		if thresholds, err = metrics.LoadThresholds(thresholdsPath); err != nil {
			fatalf("error: %v", err)
		}
	}

	logger := buildLogger(verbose)
	defer logger.Sync()

	eng, err := engine.New(engine.Options{
		Scenario:       scenarioName,
		Profile:        profile,
		Target:         host,
		AuthToken:      os.Getenv("STAMPEDE_AUTH_TOKEN"),
		RequestTimeout: timeout,
		Thresholds:     thresholds,
		Logger:         logger,
	})
	if err != nil {
		fatalf("error: %v", err)
	}

	// Interrupt triggers a graceful stop; the run still yields a report.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ninterrupt received, stopping gracefully")
		eng.Stop()
	}()

	console := output.NewConsole(headless)
	console.Watch(eng.Status)

	rep, err := eng.Run(ctx)
	console.Stop()
	if err != nil {
		fatalf("%v", err)
	}

	console.Summary(rep)

	formats := []report.Format{report.FormatJSON, report.FormatCSV}
	if htmlOut {
		formats = append(formats, report.FormatHTML)
	}
	paths, err := report.Export(rep, formats, outputDir)
	if err != nil {
		fatalf("error writing artifacts: %v", err)
	}
	for _, p := range paths {
		fmt.Printf("wrote %s\n", p)
	}

	if !noHistory {
		saveHistory(rep, logger)
	}

	if len(rep.Snapshot.Breaches) > 0 {
		os.Exit(2)
	}
}

func buildProfile(scenarioName, profilePath string, users, spawnRate int, duration time.Duration) (*workload.Profile, error) {
	if profilePath != "" {
		p, err := workload.LoadProfile(profilePath)
		if err != nil {
			return nil, err
		}
		if users > 0 {
			p.Users = users
		}
		if spawnRate > 0 {
			p.SpawnRate = spawnRate
		}
		if duration > 0 {
			p.Duration = duration
		}
		return p, p.Validate()
	}

	s, err := workload.LookupScenario(scenarioName)
	if err != nil {
		return nil, err
	}
	p := s.Profile(users, spawnRate, duration)
	return p, p.Validate()
}

func buildLogger(verbose bool) *zap.Logger {
	if verbose {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	logger, _ := cfg.Build()
	return logger
}

func saveHistory(rep *report.Report, logger *zap.Logger) {
	store, err := history.Open("")
	if err != nil {
		logger.Warn("history store unavailable", zap.Error(err))
		return
	}
	defer store.Close()

	err = store.Save(history.Entry{
		RunID:      rep.RunID,
		Scenario:   rep.Scenario,
		Target:     rep.Target,
		StartTime:  rep.StartTime,
		EndTime:    rep.EndTime,
		Requests:   rep.Snapshot.TotalRequests,
		ErrorRate:  rep.Snapshot.ErrorRate,
		Throughput: rep.Snapshot.Throughput,
		P95:        rep.Snapshot.Latency.P95,
		Breaches:   len(rep.Snapshot.Breaches),
	})
	if err != nil {
		logger.Warn("failed to record run history", zap.Error(err))
	}
}
