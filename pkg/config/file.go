package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFileYAML is the canonical config filename.
	DefaultConfigFileYAML = ".mssqlspectre.yaml"
	// DefaultConfigFileYML is a compatible alternate config filename.
	DefaultConfigFileYML = ".mssqlspectre.yml"
)

// FileConfig represents values loaded from a .mssqlspectre.yaml file.
type FileConfig struct {
	SQLServerDSN       string   `yaml:"sqlserver_dsn"`
	DSN                string   `yaml:"dsn"`
	ExcludeChecks      []string `yaml:"exclude_checks"`
	Format             string   `yaml:"format"`
	Timeout            string   `yaml:"timeout"`
	QueryTimeout       string   `yaml:"query_timeout"`
	Iterations         *int     `yaml:"iterations"`
	Warmup             *int     `yaml:"warmup"`
	MaxRecommendations *int     `yaml:"max_recommendations"`
}

// Endpoint returns the first configured SQL Server connection string.
func (fc *FileConfig) Endpoint() string {
	if fc == nil {
		return ""
	}
	if dsn := strings.TrimSpace(fc.DSN); dsn != "" {
		return dsn
	}
	return strings.TrimSpace(fc.SQLServerDSN)
}

// QueryTimeoutValue returns timeout from timeout/query_timeout fields.
func (fc *FileConfig) QueryTimeoutValue() string {
	if fc == nil {
		return ""
	}
	if timeout := strings.TrimSpace(fc.Timeout); timeout != "" {
		return timeout
	}
	return strings.TrimSpace(fc.QueryTimeout)
}

// Normalize trims and removes empty items from list fields.
func (fc *FileConfig) Normalize() {
	if fc == nil {
		return
	}
	fc.ExcludeChecks = normalizeList(fc.ExcludeChecks)
	fc.SQLServerDSN = strings.TrimSpace(fc.SQLServerDSN)
	fc.DSN = strings.TrimSpace(fc.DSN)
	fc.Format = strings.TrimSpace(fc.Format)
	fc.Timeout = strings.TrimSpace(fc.Timeout)
	fc.QueryTimeout = strings.TrimSpace(fc.QueryTimeout)
}

// AutoLoadFile discovers and loads the first available config file.
func AutoLoadFile() (*FileConfig, string, error) {
	candidates := []string{
		DefaultConfigFileYAML,
		DefaultConfigFileYML,
	}

	if homeDir, err := os.UserHomeDir(); err == nil && strings.TrimSpace(homeDir) != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, DefaultConfigFileYAML),
			filepath.Join(homeDir, DefaultConfigFileYML),
		)
	}

	return LoadFirstExistingFile(candidates)
}

// LoadFirstExistingFile loads the first config file that exists in paths.
func LoadFirstExistingFile(paths []string) (*FileConfig, string, error) {
	for _, path := range paths {
		candidate := strings.TrimSpace(path)
		if candidate == "" {
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to access config file %q: %w", candidate, err)
		}
		if info.IsDir() {
			return nil, "", fmt.Errorf("config path %q is a directory, expected a file", candidate)
		}

		cfg, err := LoadFile(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}

	return nil, "", nil
}

// LoadFile loads config values from a specific YAML file path.
func LoadFile(path string) (*FileConfig, error) {
	filename := strings.TrimSpace(path)
	if filename == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", filename, err)
	}

	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", filename, err)
	}

	cfg.Normalize()
	return cfg, nil
}

// Apply copies file-config values onto cfg, leaving unset fields alone.
func (fc *FileConfig) Apply(cfg *Config) error {
	if fc == nil || cfg == nil {
		return nil
	}

	if endpoint := fc.Endpoint(); endpoint != "" && cfg.DSN == "" {
		cfg.DSN = endpoint
	}
	if len(fc.ExcludeChecks) > 0 && len(cfg.ExcludeChecks) == 0 {
		cfg.ExcludeChecks = append(cfg.ExcludeChecks, fc.ExcludeChecks...)
	}
	if fc.Format != "" {
		cfg.Format = fc.Format
	}
	if fc.Iterations != nil {
		cfg.Iterations = *fc.Iterations
	}
	if fc.Warmup != nil {
		cfg.Warmup = *fc.Warmup
	}
	if fc.MaxRecommendations != nil {
		cfg.MaxRecommendations = *fc.MaxRecommendations
	}
	if timeout := fc.QueryTimeoutValue(); timeout != "" {
		parsed, err := ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid query timeout %q: %w", timeout, err)
		}
		cfg.QueryTimeout = parsed
	}
	return nil
}

func normalizeList(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
