// Package config loads the YAML configuration of the binning-filter daemon.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	binningfilter "github.com/e7canasta/orion-care-sensor/modules/binning-filter"
)

// Config is the complete daemon configuration.
type Config struct {
	InstanceID       string          `yaml:"instance_id"`
	ShutdownTimeoutS int             `yaml:"shutdown_timeout_s"`
	Source           SourceConfig    `yaml:"source"`
	Binning          BinningConfig   `yaml:"binning"`
	Sink             string          `yaml:"sink"` // auto, fake, app
	Dump             DumpConfig      `yaml:"dump"`
	Snapshots        SnapshotConfig  `yaml:"snapshots"`
	MQTT             MQTTConfig      `yaml:"mqtt"`
	Reconnect        ReconnectConfig `yaml:"reconnect"`
}

// SourceConfig selects the video input.
type SourceConfig struct {
	URI     string `yaml:"uri"`     // empty = test pattern, rtsp://..., file:///...
	Pattern string `yaml:"pattern"` // videotestsrc pattern name
	Format  string `yaml:"format"`  // BGR or RGB
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	FPS     int    `yaml:"fps"`
}

// BinningConfig mirrors binningfilter.Config with YAML-friendly field names.
type BinningConfig struct {
	Algorithm string `yaml:"algorithm"`
	BinSize   int    `yaml:"binsize"`
	Resize    bool   `yaml:"resize"`
	Black     RGB    `yaml:"black"`
	Contrast  *RGB   `yaml:"contrast"`
}

// RGB is a per-channel integer triple.
type RGB struct {
	R int `yaml:"r"`
	G int `yaml:"g"`
	B int `yaml:"b"`
}

// DumpConfig enables recording of processed frames.
type DumpConfig struct {
	Path string `yaml:"path"`
}

// SnapshotConfig enables periodic PNG snapshots.
type SnapshotConfig struct {
	Dir       string `yaml:"dir"`
	IntervalS int    `yaml:"interval_s"`
}

// MQTTConfig contains the control plane broker settings. An empty broker
// disables the control plane.
type MQTTConfig struct {
	Broker string     `yaml:"broker"`
	QoS    byte       `yaml:"qos"`
	Topics MQTTTopics `yaml:"topics"`
}

// MQTTTopics are the control and status topics.
type MQTTTopics struct {
	Control string `yaml:"control"`
	Status  string `yaml:"status"`
}

// ReconnectConfig tunes pipeline restarts after errors.
type ReconnectConfig struct {
	MaxRetries     int `yaml:"max_retries"`
	InitialDelayMS int `yaml:"initial_delay_ms"`
	MaxDelayMS     int `yaml:"max_delay_ms"`
}

// Load reads, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Filter converts the binning section into an engine configuration.
func (b BinningConfig) Filter() (binningfilter.Config, error) {
	cfg := binningfilter.DefaultConfig()

	if b.Algorithm != "" {
		alg, err := binningfilter.ParseAlgorithm(b.Algorithm)
		if err != nil {
			return cfg, err
		}
		cfg.Algorithm = alg
	}
	if b.BinSize != 0 {
		cfg.BinSize = b.BinSize
	}
	cfg.Resize = b.Resize
	cfg.Black = binningfilter.RGB{R: b.Black.R, G: b.Black.G, B: b.Black.B}
	if b.Contrast != nil {
		cfg.Contrast = binningfilter.RGB{R: b.Contrast.R, G: b.Contrast.G, B: b.Contrast.B}
	}

	return cfg, cfg.Validate()
}
