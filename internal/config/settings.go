package config

import (
	"fmt"
	"os"
	"time"
)

// Settings are the runtime knobs of the application, separate from the
// project file. Precedence: defaults, then FLOK_* environment, then flags.
type Settings struct {
	ConfigPath     string
	LogLevel       string
	LogFile        string
	GraceTimeout   time.Duration
	RedrawInterval time.Duration
}

// Default settings values.
const (
	DefaultGraceTimeout   = 5 * time.Second
	DefaultRedrawInterval = 50 * time.Millisecond
)

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		LogLevel:       "INFO",
		GraceTimeout:   DefaultGraceTimeout,
		RedrawInterval: DefaultRedrawInterval,
	}
}

// envMapping maps environment variables to setters.
var envMapping = map[string]func(*Settings, string) error{
	"FLOK_CONFIG":    func(s *Settings, v string) error { s.ConfigPath = v; return nil },
	"FLOK_LOG_LEVEL": func(s *Settings, v string) error { s.LogLevel = v; return nil },
	"FLOK_LOG_FILE":  func(s *Settings, v string) error { s.LogFile = v; return nil },
	"FLOK_GRACE_TIMEOUT": func(s *Settings, v string) error {
		return setDuration(&s.GraceTimeout, v)
	},
	"FLOK_REDRAW_INTERVAL": func(s *Settings, v string) error {
		return setDuration(&s.RedrawInterval, v)
	},
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", v)
	}
	*dst = d
	return nil
}

// ApplyEnv overrides settings from FLOK_* variables found by lookup.
// Empty values are ignored.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for name, set := range envMapping {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		if err := set(s, v); err != nil {
			return &ValidationError{Field: name, Message: err.Error()}
		}
	}
	return nil
}

// Validate checks that durations are usable.
func (s *Settings) Validate() error {
	var errs ValidationErrors
	if s.GraceTimeout <= 0 {
		errs = append(errs, &ValidationError{Field: "grace", Message: "must be positive"})
	}
	if s.RedrawInterval <= 0 {
		errs = append(errs, &ValidationError{Field: "redraw", Message: "must be positive"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
