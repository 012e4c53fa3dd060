package config

import (
	"fmt"
	"regexp"
	"strings"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks the configuration and fills defaults in place.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		cfg.InstanceID = "binning-filter"
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}

	if err := validateSource(&cfg.Source); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	if _, err := cfg.Binning.Filter(); err != nil {
		return fmt.Errorf("binning: %w", err)
	}

	switch cfg.Sink {
	case "":
		cfg.Sink = "auto"
	case "auto", "fake", "app":
	default:
		return fmt.Errorf("sink must be auto, fake or app, got %q", cfg.Sink)
	}

	if cfg.Snapshots.Dir != "" && cfg.Snapshots.IntervalS <= 0 {
		cfg.Snapshots.IntervalS = 10
	}

	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topics.Control == "" {
			cfg.MQTT.Topics.Control = fmt.Sprintf("binning/control/%s", cfg.InstanceID)
		}
		if cfg.MQTT.Topics.Status == "" {
			cfg.MQTT.Topics.Status = fmt.Sprintf("binning/status/%s", cfg.InstanceID)
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0-2, got %d", cfg.MQTT.QoS)
		}
	}

	if cfg.Reconnect.MaxRetries <= 0 {
		cfg.Reconnect.MaxRetries = 5
	}
	if cfg.Reconnect.InitialDelayMS <= 0 {
		cfg.Reconnect.InitialDelayMS = 1000
	}
	if cfg.Reconnect.MaxDelayMS <= 0 {
		cfg.Reconnect.MaxDelayMS = 30000
	}
	if cfg.Reconnect.MaxDelayMS < cfg.Reconnect.InitialDelayMS {
		return fmt.Errorf("reconnect.max_delay_ms (%d) must be >= initial_delay_ms (%d)",
			cfg.Reconnect.MaxDelayMS, cfg.Reconnect.InitialDelayMS)
	}

	return nil
}

func validateSource(s *SourceConfig) error {
	if s.Format == "" {
		s.Format = "BGR"
	}
	s.Format = strings.ToUpper(s.Format)
	if s.Format != "BGR" && s.Format != "RGB" {
		return fmt.Errorf("format must be BGR or RGB, got %q", s.Format)
	}

	if s.URI == "" && s.Pattern == "" {
		s.Pattern = "smpte"
	}

	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("width/height must be >= 0 (0 keeps the source size)")
	}
	if (s.Width == 0) != (s.Height == 0) {
		return fmt.Errorf("width and height must be set together")
	}
	if s.FPS < 0 || s.FPS > 120 {
		return fmt.Errorf("fps must be 0-120, got %d", s.FPS)
	}

	return nil
}
