// internal/daq/driver.go
package daq

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

// Client abstracts the register operations the driver needs.
// The driver depends on geometry only.
type Client interface {
	ReadInputRegisters(addr, qty uint16) ([]uint16, error)
	WriteSingleRegister(addr, value uint16) error
	Close() error
}

// Sink accepts one decoded, channel-aligned batch. The driver hands each
// sink its own copy; a batch is immutable once pushed.
type Sink interface {
	Push(batch []float64)
}

// Config is the minimal runtime config the driver needs.
type Config struct {
	SampleRate int

	// IdleWait is the sleep between status reads while the device
	// buffer is empty.
	IdleWait time.Duration

	// Yield is the sleep after a successful poll.
	Yield time.Duration

	// MaxFailures is the consecutive transport-failure count that
	// escalates to stopping the driver.
	MaxFailures int
}

// Driver owns the polling state machine. It alternates between a
// 1-register status read while idle and Normal/Bulk data reads while the
// device buffer holds samples, fanning decoded batches out to its sinks.
type Driver struct {
	cfg     Config
	client  Client
	factory func() (Client, error)
	sinks   []Sink

	// pending is the device-reported remaining sample count.
	// Owned by the Run goroutine.
	pending  uint16
	failures int

	counter atomic.Uint64
}

// ErrTooManyFailures is returned from Run after the consecutive
// transport-failure limit is exhausted.
var ErrTooManyFailures = errors.New("daq: too many consecutive transport failures")

// New creates a driver with immutable config. The factory is used to
// re-dial the transport after it dies; the initial client may be nil, in
// which case the first iteration dials.
func New(cfg Config, client Client, factory func() (Client, error)) (*Driver, error) {
	if cfg.SampleRate <= 0 {
		return nil, errors.New("daq: sample rate must be > 0")
	}
	if factory == nil {
		return nil, errors.New("daq: client factory required")
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = 10 * time.Millisecond
	}
	if cfg.Yield <= 0 {
		cfg.Yield = 100 * time.Microsecond
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	return &Driver{cfg: cfg, client: client, factory: factory}, nil
}

// AddSink registers a consumer queue. Must be called before Run.
func (d *Driver) AddSink(s Sink) {
	d.sinks = append(d.sinks, s)
}

// Counter reports the number of successfully processed batches.
func (d *Driver) Counter() uint64 { return d.counter.Load() }

// ResetCounter zeroes the processed-batch counter.
func (d *Driver) ResetCounter() { d.counter.Store(0) }

// Initialize establishes the transport, logs the chip identity and
// pushes the configured sample rate to the device.
func (d *Driver) Initialize() error {
	if err := d.ensureConnected(); err != nil {
		return fmt.Errorf("daq: connect: %w", err)
	}

	// Chip ID is informational; a failed read is not fatal.
	if regs, err := d.client.ReadInputRegisters(RegChipID, 3); err != nil {
		log.Printf("daq: chip id read failed: %v", err)
	} else if len(regs) >= 3 {
		log.Printf("daq: chip id: %#04x %#04x %#04x", regs[0], regs[1], regs[2])
	}

	if err := d.client.WriteSingleRegister(RegSampleRate, uint16(d.cfg.SampleRate)); err != nil {
		return fmt.Errorf("daq: set sample rate: %w", err)
	}
	log.Printf("daq: sample rate set to %d Hz", d.cfg.SampleRate)
	return nil
}

// Run executes the polling loop until ctx is cancelled or the
// consecutive-failure limit stops it. The returned error is nil on a
// clean cancel and wraps ErrTooManyFailures on escalation.
func (d *Driver) Run(ctx context.Context) error {
	d.pending = 0
	d.failures = 0

	for {
		select {
		case <-ctx.Done():
			d.disconnect()
			return nil
		default:
		}

		if err := d.ensureConnected(); err != nil {
			d.failures++
			log.Printf("daq: reconnect failed (%d/%d): %v", d.failures, d.cfg.MaxFailures, err)
			if d.failures >= d.cfg.MaxFailures {
				return fmt.Errorf("%w: last: %v", ErrTooManyFailures, err)
			}
			sleepCtx(ctx, 500*time.Millisecond)
			continue
		}

		wait, err := d.pollOnce()
		if err != nil {
			d.failures++
			log.Printf("daq: poll failed (%d/%d): %v", d.failures, d.cfg.MaxFailures, err)
			if d.failures >= d.cfg.MaxFailures {
				d.disconnect()
				return fmt.Errorf("%w: last: %v", ErrTooManyFailures, err)
			}
			d.disconnect()
			sleepCtx(ctx, 100*time.Millisecond)
			continue
		}

		sleepCtx(ctx, wait)
	}
}

// planRead selects the read mode for a non-zero buffer depth and returns
// the base address and the sample count to request (header excluded).
func planRead(pending uint16) (addr, count uint16) {
	if pending <= BulkTrigger {
		count = pending
		if count > BulkTrigger {
			count = BulkTrigger
		}
		return RegFIFOLen, count
	}
	count = pending
	if count > MaxBulkSize {
		count = MaxBulkSize
	}
	return BulkAddress, count
}

// pollOnce performs exactly one iteration of the state machine and
// returns how long to wait before the next one.
func (d *Driver) pollOnce() (time.Duration, error) {
	// IDLE: re-query the buffer depth.
	if d.pending == 0 {
		regs, err := d.client.ReadInputRegisters(RegFIFOLen, 1)
		if err != nil {
			return 0, fmt.Errorf("status read: %w", err)
		}
		if len(regs) != 1 {
			return 0, fmt.Errorf("status read: got %d registers, want 1", len(regs))
		}
		d.pending = regs[0]
		if d.pending == 0 {
			return d.cfg.IdleWait, nil
		}
	}

	// POLLING: header-prefixed data read.
	addr, count := planRead(d.pending)
	qty := count + 1

	regs, err := d.client.ReadInputRegisters(addr, qty)
	if err != nil {
		d.pending = 0
		return 0, fmt.Errorf("data read addr=%#04x qty=%d: %w", addr, qty, err)
	}
	if len(regs) != int(qty) {
		d.pending = 0
		return 0, fmt.Errorf("data read addr=%#04x: got %d registers, want %d", addr, len(regs), qty)
	}

	header := regs[0]
	payload := regs[1:]

	if len(payload)%ChannelCount != 0 {
		// Channel alignment cannot be guaranteed; drop the payload and
		// re-query the depth next iteration.
		log.Printf("daq: payload length %d not a multiple of %d, discarding", len(payload), ChannelCount)
		d.pending = 0
		return 0, nil
	}

	batch := DecodeWords(payload)
	if len(batch) > 0 {
		d.publish(batch)
		d.counter.Add(1)
	}

	d.pending = header
	d.failures = 0
	return d.cfg.Yield, nil
}

// publish fans one batch out to every sink, copying per sink so that no
// consumer can observe another's mutations.
func (d *Driver) publish(batch []float64) {
	for _, s := range d.sinks {
		cp := make([]float64, len(batch))
		copy(cp, batch)
		s.Push(cp)
	}
}

func (d *Driver) ensureConnected() error {
	if d.client != nil {
		return nil
	}
	c, err := d.factory()
	if err != nil {
		return err
	}
	d.client = c
	return nil
}

func (d *Driver) disconnect() {
	if d.client != nil {
		_ = d.client.Close()
		d.client = nil
	}
}

func sleepCtx(ctx context.Context, dur time.Duration) {
	if dur <= 0 {
		return
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
