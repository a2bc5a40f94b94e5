// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DAQ DAQConfig `yaml:"daq"`
}

type DAQConfig struct {
	Device  DeviceConfig  `yaml:"device"`
	Record  RecordConfig  `yaml:"record"`
	Upload  UploadConfig  `yaml:"upload"`
	Display DisplayConfig `yaml:"display"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	SerialPort string `yaml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate"`
	SampleRate int    `yaml:"sample_rate"`
	SlaveID    uint8  `yaml:"slave_id"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

// ---- RECORD (local CSV sink) ----

type RecordConfig struct {
	OutputDir string `yaml:"output_dir"`
	Label     string `yaml:"label"`
	Seconds   int    `yaml:"seconds"`

	// Derived by Normalize: rotation threshold in raw values
	// (seconds x sample rate x channels).
	Target int `yaml:"-"`
}

// ---- UPLOAD (remote SQL sink) ----

type UploadConfig struct {
	Enabled         bool   `yaml:"enabled"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`

	// Derived by Normalize.
	Target    int `yaml:"-"`
	BufferCap int `yaml:"-"`
}

// ---- DISPLAY (lossy live-view queue) ----

type DisplayConfig struct {
	QueueDepth int `yaml:"queue_depth"`
}

// Load reads and unmarshals the YAML configuration file.
// It does not validate or normalize.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return &cfg, nil
}
