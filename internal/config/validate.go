// internal/config/validate.go
package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	d := cfg.DAQ

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	if d.Device.SerialPort == "" {
		return fmt.Errorf("daq.device.serial_port is required")
	}
	if d.Device.BaudRate <= 0 {
		return fmt.Errorf("daq.device.baud_rate must be > 0, got %d", d.Device.BaudRate)
	}
	if d.Device.SampleRate <= 0 {
		return fmt.Errorf("daq.device.sample_rate must be > 0, got %d", d.Device.SampleRate)
	}
	if d.Device.TimeoutMs < 0 {
		return fmt.Errorf("daq.device.timeout_ms must be >= 0, got %d", d.Device.TimeoutMs)
	}

	// ------------------------------------------------------------
	// RECORD
	// ------------------------------------------------------------

	if d.Record.OutputDir == "" {
		return fmt.Errorf("daq.record.output_dir is required")
	}
	if d.Record.Seconds <= 0 {
		return fmt.Errorf("daq.record.seconds must be > 0, got %d", d.Record.Seconds)
	}

	// ------------------------------------------------------------
	// UPLOAD (checked only when enabled)
	// ------------------------------------------------------------

	if d.Upload.Enabled {
		if d.Upload.Host == "" {
			return fmt.Errorf("daq.upload.host is required when upload is enabled")
		}
		if d.Upload.Port <= 0 || d.Upload.Port > 65535 {
			return fmt.Errorf("daq.upload.port must be 1-65535, got %d", d.Upload.Port)
		}
		if d.Upload.User == "" {
			return fmt.Errorf("daq.upload.user is required when upload is enabled")
		}
		if d.Upload.IntervalSeconds < 0 {
			return fmt.Errorf("daq.upload.interval_seconds must be >= 0, got %d", d.Upload.IntervalSeconds)
		}
	}

	// ------------------------------------------------------------
	// DISPLAY
	// ------------------------------------------------------------

	if d.Display.QueueDepth < 0 {
		return fmt.Errorf("daq.display.queue_depth must be >= 0, got %d", d.Display.QueueDepth)
	}

	return nil
}
