package config

import (
	"path"
	"strings"
)

// Normalize trims exclusion patterns and removes empty values.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.ExcludeChecks = normalizePatterns(c.ExcludeChecks)
}

// IsCheckExcluded reports whether the named check matches an exclusion
// pattern. Patterns are matched case-insensitively and may use globs,
// e.g. "scalar_*".
func (c *Config) IsCheckExcluded(check string) bool {
	if c == nil || len(c.ExcludeChecks) == 0 {
		return false
	}

	value := normalizePattern(check)
	if value == "" {
		return false
	}

	for _, pattern := range c.ExcludeChecks {
		if patternMatches(pattern, value) {
			return true
		}
	}

	return false
}

func normalizePatterns(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, pattern := range values {
		p := normalizePattern(pattern)
		if p == "" {
			continue
		}
		normalized = append(normalized, p)
	}
	return normalized
}

func normalizePattern(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func patternMatches(pattern, value string) bool {
	normalizedPattern := normalizePattern(pattern)
	normalizedValue := normalizePattern(value)
	if normalizedPattern == "" || normalizedValue == "" {
		return false
	}

	// Invalid glob patterns are treated as exact matches.
	matched, err := path.Match(normalizedPattern, normalizedValue)
	if err == nil {
		return matched
	}
	return normalizedPattern == normalizedValue
}
