// Package config loads runtime configuration and extraction pattern sets.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mhartmann/sortier/internal/common"
)

// Config holds all runtime settings for the pipeline.
type Config struct {
	InputDir             string
	OutputDir            string
	UnknownDirName       string
	CacheDir             string
	AuditCSVPath         string
	HistoryDBPath        string
	PatternsPath         string
	DocumentExt          string
	OutputFilenameFormat string
	DryRun               bool
	Stamp                bool
	SkipDuplicates       bool
	Validation           ValidationConfig
	Fallback             FallbackConfig
}

// ValidationConfig is the validator's rule policy.
type ValidationConfig struct {
	// MaxAgeDays is the recency window for invoice dates. A value <= 0
	// disables the date rule entirely (archive mode).
	MaxAgeDays       int
	AmountTolerance  float64
	TaxRates         []float64
	TaxRateTolerance float64
}

// FallbackConfig configures the external free-text extraction service.
type FallbackConfig struct {
	Enabled             bool
	Provider            string
	Host                string
	Model               string
	APIKey              string
	Trigger             string
	ConfidenceThreshold float64
	Timeout             time.Duration
	ProbeTimeout        time.Duration
	MaxTextBytes        int
}

// SetDefaults registers all configuration defaults on viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input_dir", "input")
	v.SetDefault("output_dir", "output")
	v.SetDefault("unknown_dir_name", "unknown")
	v.SetDefault("cache_dir", "cache")
	v.SetDefault("audit_csv_path", "audit/processed.csv")
	v.SetDefault("history_db_path", "audit/history.db")
	v.SetDefault("patterns_path", "patterns/patterns.yaml")
	v.SetDefault("document_ext", ".pdf")
	v.SetDefault("output_filename_format", "{date}_{supplier}_Re-{date}")
	v.SetDefault("dry_run", false)
	v.SetDefault("stamp", true)
	v.SetDefault("skip_duplicates", true)

	v.SetDefault("validation.max_age_days", 370)
	v.SetDefault("validation.amount_tolerance", 0.02)
	v.SetDefault("validation.tax_rates", []float64{0.19, 0.07})
	v.SetDefault("validation.tax_rate_tolerance", 0.03)

	v.SetDefault("fallback.enabled", false)
	v.SetDefault("fallback.provider", "ollama")
	v.SetDefault("fallback.host", "http://localhost:11434")
	v.SetDefault("fallback.model", "llama3")
	v.SetDefault("fallback.trigger", "on_low_conf")
	v.SetDefault("fallback.confidence_threshold", 0.65)
	v.SetDefault("fallback.timeout", 30*time.Second)
	v.SetDefault("fallback.probe_timeout", 2*time.Second)
	v.SetDefault("fallback.max_text_bytes", 20000)
}

// Load builds a typed Config from viper state.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		InputDir:             v.GetString("input_dir"),
		OutputDir:            v.GetString("output_dir"),
		UnknownDirName:       v.GetString("unknown_dir_name"),
		CacheDir:             v.GetString("cache_dir"),
		AuditCSVPath:         v.GetString("audit_csv_path"),
		HistoryDBPath:        v.GetString("history_db_path"),
		PatternsPath:         v.GetString("patterns_path"),
		DocumentExt:          v.GetString("document_ext"),
		OutputFilenameFormat: v.GetString("output_filename_format"),
		DryRun:               v.GetBool("dry_run"),
		Stamp:                v.GetBool("stamp"),
		SkipDuplicates:       v.GetBool("skip_duplicates"),
		Validation: ValidationConfig{
			MaxAgeDays:       v.GetInt("validation.max_age_days"),
			AmountTolerance:  v.GetFloat64("validation.amount_tolerance"),
			TaxRates:         floats(v, "validation.tax_rates"),
			TaxRateTolerance: v.GetFloat64("validation.tax_rate_tolerance"),
		},
		Fallback: FallbackConfig{
			Enabled:             v.GetBool("fallback.enabled"),
			Provider:            v.GetString("fallback.provider"),
			Host:                v.GetString("fallback.host"),
			Model:               v.GetString("fallback.model"),
			APIKey:              v.GetString("fallback.api_key"),
			Trigger:             v.GetString("fallback.trigger"),
			ConfidenceThreshold: v.GetFloat64("fallback.confidence_threshold"),
			Timeout:             v.GetDuration("fallback.timeout"),
			ProbeTimeout:        v.GetDuration("fallback.probe_timeout"),
			MaxTextBytes:        v.GetInt("fallback.max_text_bytes"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for impossible values.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir", common.ErrMissingConfig)
	}
	if c.UnknownDirName == "" {
		return fmt.Errorf("%w: unknown_dir_name must not be empty", common.ErrInvalidConfig)
	}
	if c.Validation.AmountTolerance < 0 {
		return fmt.Errorf("%w: validation.amount_tolerance must be >= 0", common.ErrInvalidConfig)
	}
	switch c.Fallback.Trigger {
	case "always", "on_fail", "on_low_conf":
	default:
		return fmt.Errorf("%w: unknown fallback trigger %q", common.ErrInvalidConfig, c.Fallback.Trigger)
	}
	return nil
}

func floats(v *viper.Viper, key string) []float64 {
	raw := v.Get(key)
	switch vals := raw.(type) {
	case []float64:
		return vals
	case []any:
		out := make([]float64, 0, len(vals))
		for _, x := range vals {
			switch n := x.(type) {
			case float64:
				out = append(out, n)
			case int:
				out = append(out, float64(n))
			}
		}
		return out
	}
	return nil
}
