// internal/daq/builder.go
package daq

import (
	"time"

	cfg "github.com/prowave/prowavedaq/internal/config"
	dmodbus "github.com/prowave/prowavedaq/internal/daq/modbus"
)

// Build constructs a Driver wired to a Modbus RTU client factory.
// The connection is reused while healthy; on transport death the driver
// discards the client and the factory re-dials on a later iteration.
func Build(dev cfg.DeviceConfig) (*Driver, error) {
	// client factory: ONE attempt per call
	factory := func() (Client, error) {
		return dmodbus.New(dmodbus.Config{
			SerialPort: dev.SerialPort,
			BaudRate:   dev.BaudRate,
			SlaveID:    dev.SlaveID,
			Timeout:    time.Duration(dev.TimeoutMs) * time.Millisecond,
		})
	}

	// No initial client: Initialize dials via ensureConnected, so a
	// missing device surfaces there rather than at build time.
	return New(
		Config{SampleRate: dev.SampleRate},
		nil,
		factory,
	)
}
