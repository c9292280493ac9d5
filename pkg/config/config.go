package config

import "time"

// Config holds all runtime configuration
type Config struct {
	// SQL Server settings
	DSN          string
	QueryTimeout time.Duration

	// Stage toggles
	AnalyzeSyntax  bool
	AnalyzePlan    bool
	AnalyzeIndexes bool
	CollectMetrics bool
	AttemptRewrite bool

	// Benchmark settings
	Iterations       int
	Warmup           int
	MaxExecutionTime time.Duration
	RateLimit        float64

	// Analysis settings
	MaxRecommendations int
	ExcludeChecks      []string

	// Concurrency settings
	Concurrency int

	// Output settings
	OutputDir string
	Format    string

	// Operational flags
	Verbose bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		QueryTimeout:       30 * time.Second,
		AnalyzeSyntax:      true,
		AnalyzePlan:        true,
		AnalyzeIndexes:     true,
		CollectMetrics:     false,
		AttemptRewrite:     false,
		Iterations:         3,
		Warmup:             1,
		MaxExecutionTime:   5 * time.Minute,
		RateLimit:          0,
		MaxRecommendations: 10,
		ExcludeChecks:      []string{},
		Concurrency:        5,
		OutputDir:          "./report",
		Format:             "text",
		Verbose:            false,
	}
}
