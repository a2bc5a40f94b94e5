// internal/config/validate_test.go
package config

import (
	"strings"
	"testing"
)

// helper to build a minimal valid config quickly
func valid() *Config {
	cfg := &Config{}
	cfg.DAQ.Device = DeviceConfig{
		SerialPort: "/dev/ttyUSB0",
		BaudRate:   3000000,
		SampleRate: 7812,
		SlaveID:    1,
		TimeoutMs:  1000,
	}
	cfg.DAQ.Record = RecordConfig{
		OutputDir: "output",
		Label:     "bench",
		Seconds:   600,
	}
	return cfg
}

// ---- tests ----

func TestValidate_Minimal(t *testing.T) {
	if err := Validate(valid()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingSerialPort(t *testing.T) {
	cfg := valid()
	cfg.DAQ.Device.SerialPort = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "serial_port") {
		t.Fatalf("error should name the offending key, got: %v", err)
	}
}

func TestValidate_BadSampleRate(t *testing.T) {
	cfg := valid()
	cfg.DAQ.Device.SampleRate = 0

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestValidate_BadRecordSeconds(t *testing.T) {
	cfg := valid()
	cfg.DAQ.Record.Seconds = -1

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestValidate_UploadDisabledSkipsSQLChecks(t *testing.T) {
	cfg := valid()
	cfg.DAQ.Upload.Enabled = false
	// No host/user set: must still pass.

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_UploadEnabledRequiresHostAndUser(t *testing.T) {
	cfg := valid()
	cfg.DAQ.Upload.Enabled = true
	cfg.DAQ.Upload.Port = 3306
	cfg.DAQ.Upload.User = "daq"

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected missing host error, got nil")
	}

	cfg.DAQ.Upload.Host = "localhost"
	cfg.DAQ.Upload.User = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected missing user error, got nil")
	}
}

func TestValidate_UploadBadPort(t *testing.T) {
	cfg := valid()
	cfg.DAQ.Upload.Enabled = true
	cfg.DAQ.Upload.Host = "localhost"
	cfg.DAQ.Upload.User = "daq"
	cfg.DAQ.Upload.Port = 70000

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected port error, got nil")
	}
}

func TestNormalize_DerivedThresholds(t *testing.T) {
	cfg := valid()
	cfg.DAQ.Record.Seconds = 1
	cfg.DAQ.Upload.Enabled = true
	cfg.DAQ.Upload.Host = "localhost"
	cfg.DAQ.Upload.User = "daq"
	cfg.DAQ.Upload.Port = 3306

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Normalize(cfg)

	if got, want := cfg.DAQ.Record.Target, 1*7812*3; got != want {
		t.Fatalf("record target = %d, want %d", got, want)
	}
	// Upload interval defaults to the record interval.
	if got, want := cfg.DAQ.Upload.Target, 1*7812*3; got != want {
		t.Fatalf("upload target = %d, want %d", got, want)
	}
	if got, want := cfg.DAQ.Upload.BufferCap, 2*1*7812*3; got != want {
		t.Fatalf("buffer cap = %d, want %d", got, want)
	}
}

func TestNormalize_BufferCapLimit(t *testing.T) {
	cfg := valid()
	cfg.DAQ.Record.Seconds = 600
	cfg.DAQ.Upload.IntervalSeconds = 600

	Normalize(cfg)

	// 600 s x 7812 Hz x 3 channels doubled would exceed the hard limit.
	if got := cfg.DAQ.Upload.BufferCap; got != bufferCapLimit {
		t.Fatalf("buffer cap = %d, want %d", got, bufferCapLimit)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := valid()
	cfg.DAQ.Device.SlaveID = 0
	cfg.DAQ.Device.TimeoutMs = 0

	Normalize(cfg)

	if cfg.DAQ.Device.SlaveID != 1 {
		t.Fatalf("slave id default = %d, want 1", cfg.DAQ.Device.SlaveID)
	}
	if cfg.DAQ.Device.TimeoutMs != 1000 {
		t.Fatalf("timeout default = %d, want 1000", cfg.DAQ.Device.TimeoutMs)
	}
	if cfg.DAQ.Upload.Database != "prowavedaq" {
		t.Fatalf("database default = %q, want prowavedaq", cfg.DAQ.Upload.Database)
	}
	if cfg.DAQ.Display.QueueDepth != 64 {
		t.Fatalf("display depth default = %d, want 64", cfg.DAQ.Display.QueueDepth)
	}
}
