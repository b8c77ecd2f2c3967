package config

import (
	"os"
	"strconv"
	"strings"
)

// CPMConfig is the characters-per-minute table used to size generated scripts
// (§4.3.1 step 1). Kept as configuration, not code, per the Open Question in
// §9 of the specification.
type CPMConfig struct {
	// Default is used for any language not present in Values.
	Default int
	Values  map[string]int
}

// DefaultCPMConfig returns the built-in CPM table.
func DefaultCPMConfig() CPMConfig {
	return CPMConfig{
		Default: 750,
		Values: map[string]int{
			"vietnamese": 1500,
			"english":    800,
			"chinese":    400,
			"japanese":   450,
			"korean":     500,
		},
	}
}

// LoadCPMConfigFromEnv overlays CPM_<LANGUAGE> overrides onto the defaults.
func LoadCPMConfigFromEnv() CPMConfig {
	cfg := DefaultCPMConfig()
	for language := range cfg.Values {
		key := "CPM_" + strings.ToUpper(language)
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
			cfg.Values[language] = v
		}
	}
	if v, err := strconv.Atoi(os.Getenv("CPM_DEFAULT")); err == nil && v > 0 {
		cfg.Default = v
	}
	return cfg
}

// Get returns the characters-per-minute rate for a language, case-insensitive,
// falling back to Default when unmapped.
func (c CPMConfig) Get(language string) int {
	if v, ok := c.Values[strings.ToLower(language)]; ok {
		return v
	}
	return c.Default
}
