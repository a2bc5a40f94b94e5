// internal/daq/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// Client adapts a Modbus RTU serial connection to the driver's register
// interface. The adapter is geometry-only: it issues requests and
// unpacks raw big-endian payloads.
type Client struct {
	handler *modbus.RTUClientHandler
	cli     modbus.Client
}

// Config is minimal transport config.
type Config struct {
	SerialPort string
	BaudRate   int
	SlaveID    uint8
	Timeout    time.Duration
}

// New opens the serial port and returns a connected RTU client.
func New(cfg Config) (*Client, error) {
	if cfg.SerialPort == "" {
		return nil, errors.New("modbus client: serial port required")
	}

	h := modbus.NewRTUClientHandler(cfg.SerialPort)
	h.BaudRate = cfg.BaudRate
	h.DataBits = 8
	h.Parity = "N"
	h.StopBits = 1
	h.SlaveId = byte(cfg.SlaveID)
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbus client: open %s: %w", cfg.SerialPort, err)
	}

	return &Client{
		handler: h,
		cli:     modbus.NewClient(h),
	}, nil
}

// Close closes the serial port.
func (c *Client) Close() error {
	if c == nil || c.handler == nil {
		return nil
	}
	return c.handler.Close()
}

// ---- daq.Client interface ----

// ReadInputRegisters performs an FC 04 read and unpacks the payload.
func (c *Client) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	raw, err := c.cli.ReadInputRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	if len(raw) != int(qty)*2 {
		return nil, fmt.Errorf("modbus: short read: got %d bytes, want %d", len(raw), int(qty)*2)
	}
	return unpackRegisters(raw), nil
}

// WriteSingleRegister performs an FC 06 write.
func (c *Client) WriteSingleRegister(addr, value uint16) error {
	_, err := c.cli.WriteSingleRegister(addr, value)
	return err
}

// ---- helpers (pure geometry) ----

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
