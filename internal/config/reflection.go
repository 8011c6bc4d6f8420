package config

import "time"

// ReflectionConfig configures the reflection engine core.
type ReflectionConfig struct {
	// LedgerCapacity is the max retained call records (default: 50)
	LedgerCapacity int `yaml:"ledger_capacity" json:"ledger_capacity"`

	// ExcerptLimit caps stored prompt/response excerpts in bytes (default: 5000)
	ExcerptLimit int `yaml:"excerpt_limit" json:"excerpt_limit"`

	// ErrorLimit caps stored error messages in bytes (default: 1000)
	ErrorLimit int `yaml:"error_limit" json:"error_limit"`

	// SynthesisEvery triggers a memory synthesis after this many critiqued calls (default: 5)
	SynthesisEvery int `yaml:"synthesis_every" json:"synthesis_every"`

	// DebounceWindowMs is the dispatch coalescing window in milliseconds (default: 25)
	DebounceWindowMs int `yaml:"debounce_window_ms" json:"debounce_window_ms"`

	// ReportSynthesisDelayMs delays the post-report synthesis task (default: 2000)
	ReportSynthesisDelayMs int `yaml:"report_synthesis_delay_ms" json:"report_synthesis_delay_ms"`

	// CritiqueSampleLimit caps recent critiques embedded in synthesis prompts (default: 10)
	CritiqueSampleLimit int `yaml:"critique_sample_limit" json:"critique_sample_limit"`
}

// DefaultReflectionConfig returns sensible defaults for the reflection engine.
func DefaultReflectionConfig() ReflectionConfig {
	return ReflectionConfig{
		LedgerCapacity:         50,
		ExcerptLimit:           5000,
		ErrorLimit:             1000,
		SynthesisEvery:         5,
		DebounceWindowMs:       25,
		ReportSynthesisDelayMs: 2000,
		CritiqueSampleLimit:    10,
	}
}

func (c *ReflectionConfig) applyDefaults() {
	def := DefaultReflectionConfig()
	if c.LedgerCapacity <= 0 {
		c.LedgerCapacity = def.LedgerCapacity
	}
	if c.ExcerptLimit <= 0 {
		c.ExcerptLimit = def.ExcerptLimit
	}
	if c.ErrorLimit <= 0 {
		c.ErrorLimit = def.ErrorLimit
	}
	if c.SynthesisEvery <= 0 {
		c.SynthesisEvery = def.SynthesisEvery
	}
	if c.DebounceWindowMs <= 0 {
		c.DebounceWindowMs = def.DebounceWindowMs
	}
	if c.ReportSynthesisDelayMs <= 0 {
		c.ReportSynthesisDelayMs = def.ReportSynthesisDelayMs
	}
	if c.CritiqueSampleLimit <= 0 {
		c.CritiqueSampleLimit = def.CritiqueSampleLimit
	}
}

// DebounceWindow returns the dispatch coalescing window as a duration.
func (c ReflectionConfig) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceWindowMs) * time.Millisecond
}

// ReportSynthesisDelay returns the post-report synthesis delay as a duration.
func (c ReflectionConfig) ReportSynthesisDelay() time.Duration {
	return time.Duration(c.ReportSynthesisDelayMs) * time.Millisecond
}
