package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/mssqlspectre/internal/analyzer"
	"github.com/ppiankov/mssqlspectre/internal/baseline"
	"github.com/ppiankov/mssqlspectre/internal/benchmark"
	"github.com/ppiankov/mssqlspectre/internal/collector"
	"github.com/ppiankov/mssqlspectre/internal/models"
	"github.com/ppiankov/mssqlspectre/internal/reporter"
	"github.com/ppiankov/mssqlspectre/pkg/config"
)

// dsnEnvVar supplies the DSN when neither --dsn nor a config file sets one.
const dsnEnvVar = "MSSQLSPECTRE_DSN"

var batchSeparatorPattern = regexp.MustCompile(`(?im)^\s*GO\s*;?\s*$`)

// NewAnalyzeCmd creates the analyze command
func NewAnalyzeCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	var (
		queryText       string
		queryFile       string
		configPath      string
		envFile         string
		queryTimeoutStr string
		maxExecutionStr string
		baselinePath    string
		updateBaseline  bool
		failOnFindings  bool
		dryRun          bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze SQL Server queries and generate an advisory report",
		Long: `Analyze one or more SQL Server queries: detect anti-patterns in the
query text, read missing-index advisories from the execution plan, find
redundant indexes on referenced tables, and optionally benchmark the
query and an automatic rewrite.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("failed to load env file %s: %w", envFile, err)
				}
			} else {
				_ = godotenv.Load()
			}

			// Explicit flags win over config-file values.
			flagValues := *cfg
			if configPath != "" {
				fileCfg, err := config.LoadFile(configPath)
				if err != nil {
					return fmt.Errorf("failed to load config file: %w", err)
				}
				if err := fileCfg.Apply(cfg); err != nil {
					return fmt.Errorf("invalid config file %s: %w", configPath, err)
				}
			} else if fileCfg, path, err := config.AutoLoadFile(); err != nil {
				return fmt.Errorf("failed to load config file %s: %w", path, err)
			} else if fileCfg != nil {
				if err := fileCfg.Apply(cfg); err != nil {
					return fmt.Errorf("invalid config file %s: %w", path, err)
				}
			}
			if cmd.Flags().Changed("format") {
				cfg.Format = flagValues.Format
			}
			if cmd.Flags().Changed("iterations") {
				cfg.Iterations = flagValues.Iterations
			}
			if cmd.Flags().Changed("warmup") {
				cfg.Warmup = flagValues.Warmup
			}
			if cmd.Flags().Changed("max-recommendations") {
				cfg.MaxRecommendations = flagValues.MaxRecommendations
			}

			if cfg.DSN == "" {
				cfg.DSN = os.Getenv(dsnEnvVar)
			}
			if cfg.DSN == "" {
				return fmt.Errorf("a SQL Server DSN is required: set --dsn, %s, or a config file", dsnEnvVar)
			}

			var err error
			if queryTimeoutStr != "" {
				cfg.QueryTimeout, err = config.ParseDuration(queryTimeoutStr)
				if err != nil {
					return fmt.Errorf("invalid --query-timeout duration: %w", err)
				}
			}
			if maxExecutionStr != "" {
				cfg.MaxExecutionTime, err = config.ParseDuration(maxExecutionStr)
				if err != nil {
					return fmt.Errorf("invalid --max-execution-time duration: %w", err)
				}
			}

			switch cfg.Format {
			case "", "text", "json", "sarif":
			default:
				return fmt.Errorf("invalid --format value: %q (want text, json or sarif)", cfg.Format)
			}

			if queryText == "" && queryFile == "" {
				return fmt.Errorf("either --query or --file is required")
			}
			if cfg.Iterations < 1 {
				return fmt.Errorf("--iterations must be at least 1")
			}
			if cfg.Warmup < 0 {
				return fmt.Errorf("--warmup must not be negative")
			}

			if updateBaseline && baselinePath == "" {
				baselinePath = baseline.DefaultPath
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := gatherQueries(queryText, queryFile)
			if err != nil {
				return err
			}
			return runAnalyze(cfg, queries, analyzeOptions{
				baselinePath:   baselinePath,
				updateBaseline: updateBaseline,
				failOnFindings: failOnFindings,
				dryRun:         dryRun,
			})
		},
	}

	// Connection flags
	cmd.Flags().StringVar(&cfg.DSN, "dsn", "", "SQL Server DSN (or "+dsnEnvVar+" env var)")
	cmd.Flags().StringVar(&queryTimeoutStr, "query-timeout", "", "Per-round-trip timeout (e.g., 30s, 2m)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to a .env file with connection settings")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a config file (default: auto-detect "+config.DefaultConfigFileYAML+")")

	// Input flags
	cmd.Flags().StringVarP(&queryText, "query", "q", "", "Query text to analyze")
	cmd.Flags().StringVarP(&queryFile, "file", "f", "", "File with queries to analyze (GO-separated batches)")

	// Stage flags
	cmd.Flags().BoolVar(&cfg.AnalyzeSyntax, "syntax", true, "Detect anti-patterns in query text")
	cmd.Flags().BoolVar(&cfg.AnalyzePlan, "plan", true, "Read missing-index advisories from the execution plan")
	cmd.Flags().BoolVar(&cfg.AnalyzeIndexes, "indexes", true, "Detect redundant indexes on referenced tables")
	cmd.Flags().BoolVar(&cfg.CollectMetrics, "collect-metrics", false, "Execute the query and collect performance metrics")
	cmd.Flags().BoolVar(&cfg.AttemptRewrite, "rewrite", false, "Attempt an automatic query rewrite")

	// Benchmark flags
	cmd.Flags().IntVar(&cfg.Iterations, "iterations", cfg.Iterations, "Measured benchmark runs per query")
	cmd.Flags().IntVar(&cfg.Warmup, "warmup", cfg.Warmup, "Warmup runs before measurement")
	cmd.Flags().StringVar(&maxExecutionStr, "max-execution-time", "", "Benchmark budget per query (e.g., 5m)")
	cmd.Flags().Float64Var(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Benchmark executions per second (0 = unlimited)")

	// Analysis flags
	cmd.Flags().IntVar(&cfg.MaxRecommendations, "max-recommendations", cfg.MaxRecommendations, "Cap on index recommendations per query (0 = unlimited)")
	cmd.Flags().StringSliceVar(&cfg.ExcludeChecks, "exclude-checks", nil, "Anti-pattern checks to skip (globs allowed, e.g. nolock_hint, non_*)")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Worker pool size for multi-query files")

	// Baseline flags
	cmd.Flags().StringVar(&baselinePath, "baseline", "", "Baseline file; findings recorded there are suppressed")
	cmd.Flags().BoolVar(&updateBaseline, "update-baseline", false, "Record current findings into the baseline file")

	// Output flags
	cmd.Flags().StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Output directory")
	cmd.Flags().StringVar(&cfg.Format, "format", cfg.Format, "Output format (text, json, sarif)")
	cmd.Flags().BoolVar(&failOnFindings, "fail-on-findings", false, "Exit non-zero when unsuppressed findings remain")

	// Operational flags
	cmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "Verbose logging")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Dry run mode (don't write output)")

	return cmd
}

type analyzeOptions struct {
	baselinePath   string
	updateBaseline bool
	failOnFindings bool
	dryRun         bool
}

// runAnalyze executes the analysis workflow
func runAnalyze(cfg *config.Config, queries []string, opts analyzeOptions) error {
	startTime := time.Now()
	ctx := context.Background()
	cfg.Normalize()

	if len(queries) == 0 {
		return fmt.Errorf("no queries to analyze")
	}

	fmt.Println("🔌 Connecting to SQL Server...")
	col, err := collector.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create collector: %w", err)
	}
	defer col.Close()

	var benchOpts []benchmark.Option
	if cfg.RateLimit > 0 {
		benchOpts = append(benchOpts, benchmark.WithRateLimit(cfg.RateLimit))
	}
	runner := benchmark.New(col, benchOpts...)

	an := analyzer.New(cfg, col, runner)

	fmt.Printf("🔍 Analyzing %d %s...\n", len(queries), pluralize("query", "queries", len(queries)))
	pool := collector.NewWorkerPool(cfg.Concurrency, an.Analyze)
	outcomes := pool.Run(ctx, queries)
	if err := collector.FirstError(outcomes); err != nil {
		return err
	}

	results := make([]models.AnalysisResult, 0, len(outcomes))
	for _, outcome := range outcomes {
		results = append(results, *outcome.Result)
	}

	suppressed, findings, err := applyBaseline(results, opts)
	if err != nil {
		return err
	}
	if suppressed > 0 {
		fmt.Printf("✓ Suppressed %d baseline %s\n", suppressed, pluralize("finding", "findings", suppressed))
	}

	report := buildReport(cfg, results, startTime)
	fmt.Printf("✓ Findings: %d issues, %d index recommendations, %d redundant indexes\n",
		report.Summary.TotalIssues, report.Summary.TotalIndexes, report.Summary.TotalRedundant)

	if !opts.dryRun {
		fmt.Println("📝 Writing report...")
		rep := reporter.New(cfg)
		if err := rep.Generate(report); err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
		fmt.Printf("✓ Report written to: %s\n", cfg.OutputDir)
	} else {
		fmt.Println("🏃 Dry run mode - skipping output")
	}

	duration := time.Since(startTime)
	fmt.Printf("\n✅ Analysis complete in %s!\n", duration.Round(time.Millisecond))
	if isFirstRun {
		fmt.Printf("\n💡 Tip: defaults can live in %s next to your project\n", config.DefaultConfigFileYAML)
	}

	if opts.failOnFindings && findings > 0 {
		return &FindingsError{Count: findings}
	}

	return nil
}

// applyBaseline suppresses previously recorded findings and optionally
// records the current ones. Returns suppressed and remaining counts.
func applyBaseline(results []models.AnalysisResult, opts analyzeOptions) (int, int, error) {
	if opts.baselinePath == "" {
		total := 0
		for i := range results {
			total += baseline.CountFindings(&results[i])
		}
		return 0, total, nil
	}

	known, err := baseline.Load(opts.baselinePath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load baseline: %w", err)
	}

	if opts.updateBaseline {
		for i := range results {
			baseline.AddAll(known, baseline.CollectFingerprints(&results[i]))
		}
		if err := baseline.Save(opts.baselinePath, known); err != nil {
			return 0, 0, fmt.Errorf("failed to save baseline: %w", err)
		}
		logrus.WithField("path", opts.baselinePath).Debug("baseline updated")
	}

	totalSuppressed := 0
	totalRemaining := 0
	for i := range results {
		suppressed, remaining := baseline.SuppressKnown(&results[i], known)
		totalSuppressed += suppressed
		totalRemaining += remaining
	}

	return totalSuppressed, totalRemaining, nil
}

// buildReport constructs the final report
func buildReport(cfg *config.Config, results []models.AnalysisResult, startTime time.Time) *models.Report {
	generatedAt := time.Now().UTC()

	serverVersion := ""
	for _, result := range results {
		if result.ServerVersion != "" && result.ServerVersion != "Unknown" {
			serverVersion = result.ServerVersion
			break
		}
	}

	return &models.Report{
		Tool:      "mssqlspectre",
		Version:   version,
		Timestamp: generatedAt.Format(time.RFC3339),
		Metadata: models.Metadata{
			GeneratedAt:      generatedAt,
			ServerHost:       extractHost(cfg.DSN),
			ServerVersion:    serverVersion,
			QueriesAnalyzed:  len(results),
			AnalysisDuration: time.Since(startTime).Round(time.Millisecond).String(),
			Version:          version,
		},
		Results: results,
		Summary: models.BuildSummary(results),
	}
}

// gatherQueries assembles the query list from --query and --file.
func gatherQueries(queryText, queryFile string) ([]string, error) {
	var queries []string

	if strings.TrimSpace(queryText) != "" {
		queries = append(queries, queryText)
	}

	if queryFile != "" {
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read query file: %w", err)
		}
		queries = append(queries, splitBatches(string(data))...)
	}

	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries found in input")
	}

	return queries, nil
}

// splitBatches splits a script on GO batch separators. A script with no
// separators is a single query.
func splitBatches(script string) []string {
	var queries []string
	for _, batch := range batchSeparatorPattern.Split(script, -1) {
		if trimmed := strings.TrimSpace(batch); trimmed != "" {
			queries = append(queries, trimmed)
		}
	}
	return queries
}

// extractHost pulls the host out of a DSN without exposing credentials.
func extractHost(dsn string) string {
	if parsed, err := url.Parse(dsn); err == nil && parsed.Host != "" {
		return parsed.Hostname()
	}

	for _, part := range strings.Split(dsn, ";") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), "server") {
			return strings.TrimSpace(value)
		}
	}

	return "unknown"
}

func pluralize(singular, plural string, count int) string {
	if count == 1 {
		return singular
	}
	return plural
}
