package vad

import (
	"errors"
	"fmt"
	"time"
)

// Default detector settings.
const (
	DefaultSilenceThreshold  = 0.01
	DefaultSilenceDuration   = 1000 * time.Millisecond
	DefaultMinSpeechDuration = 300 * time.Millisecond
)

// Config controls the energy-threshold detector.
type Config struct {
	// Enabled turns on detection. When false the caller treats the whole
	// capture window as one speech interval.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// SilenceThreshold is the normalized level (0..1) above which a sample
	// window counts as speech.
	SilenceThreshold float64 `json:"silence_threshold" yaml:"silence_threshold"`

	// SilenceDuration is how long the level must stay at or below the
	// threshold before an interval ends.
	SilenceDuration time.Duration `json:"silence_duration" yaml:"silence_duration"`

	// MinSpeechDuration is how long speech must last before it is reported.
	MinSpeechDuration time.Duration `json:"min_speech_duration" yaml:"min_speech_duration"`
}

// DefaultConfig returns the default detector settings.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		SilenceThreshold:  DefaultSilenceThreshold,
		SilenceDuration:   DefaultSilenceDuration,
		MinSpeechDuration: DefaultMinSpeechDuration,
	}
}

// Validate checks the settings for out of range values.
func (c Config) Validate() error {
	if c.SilenceThreshold < 0 || c.SilenceThreshold > 1 {
		return fmt.Errorf("vad: silence threshold %v out of range [0, 1]", c.SilenceThreshold)
	}
	if c.SilenceDuration < 0 {
		return errors.New("vad: silence duration must not be negative")
	}
	if c.MinSpeechDuration < 0 {
		return errors.New("vad: min speech duration must not be negative")
	}
	return nil
}

// Patch is a partial update of Config. Nil fields are left unchanged.
type Patch struct {
	Enabled           *bool          `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	SilenceThreshold  *float64       `json:"silence_threshold,omitempty" yaml:"silence_threshold,omitempty"`
	SilenceDuration   *time.Duration `json:"silence_duration,omitempty" yaml:"silence_duration,omitempty"`
	MinSpeechDuration *time.Duration `json:"min_speech_duration,omitempty" yaml:"min_speech_duration,omitempty"`
}

// Apply returns c with the non-nil fields of p merged in.
func (p Patch) Apply(c Config) Config {
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.SilenceThreshold != nil {
		c.SilenceThreshold = *p.SilenceThreshold
	}
	if p.SilenceDuration != nil {
		c.SilenceDuration = *p.SilenceDuration
	}
	if p.MinSpeechDuration != nil {
		c.MinSpeechDuration = *p.MinSpeechDuration
	}
	return c
}
