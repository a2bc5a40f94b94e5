// internal/uploader/engine.go
package uploader

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/prowave/prowavedaq/internal/daq"
)

// EngineConfig is the immutable upload-engine configuration.
type EngineConfig struct {
	Label      string
	SampleRate int

	// Target is the flush threshold in raw values; BufferCap is the
	// hard cap that forces a flush attempt regardless of Target.
	Target    int
	BufferCap int

	// FlushAttempts bounds the per-flush retry count.
	FlushAttempts int
	// RetryBackoff is the base backoff; attempt n waits n * RetryBackoff.
	RetryBackoff time.Duration
}

// Engine stages sample batches and flushes them to the remote store in
// threshold-sized windows. The staging buffer only shrinks after a
// confirmed successful flush; a failed flush leaves it untouched, so
// delivery is at-least-once. Not safe for concurrent use; one consumer
// goroutine owns it.
type Engine struct {
	cfg   EngineConfig
	store Store

	// identity reports the record writer's current chunk identity so
	// the remote target stays correlated with the local file.
	identity func() string

	buffer []float64

	// sampleIndex/origin drive row timestamps with the same math as the
	// record writer, independent of local file rotation.
	sampleIndex int64
	origin      time.Time

	table     string // bound remote target; "" = not yet bound
	boundName string // identity the binding was derived from
}

// NewEngine creates an idle engine. The identity callback may return ""
// when no chunk unit is open yet.
func NewEngine(cfg EngineConfig, store Store, identity func() string) (*Engine, error) {
	if store == nil {
		return nil, errors.New("uploader: store required")
	}
	if cfg.SampleRate <= 0 {
		return nil, errors.New("uploader: sample rate must be > 0")
	}
	if cfg.Target <= 0 {
		return nil, errors.New("uploader: flush target must be > 0")
	}
	if cfg.FlushAttempts <= 0 {
		cfg.FlushAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if identity == nil {
		identity = func() string { return "" }
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		identity: identity,
		origin:   time.Now(),
	}, nil
}

// BufferLen reports the staged raw-value count.
func (e *Engine) BufferLen() int { return len(e.buffer) }

// Add stages one batch and flushes any windows that became due.
func (e *Engine) Add(batch []float64) {
	e.buffer = append(e.buffer, batch...)
	e.Housekeep()
}

// Housekeep runs the cap and threshold flush passes. Called on every
// Add and periodically by the consumer loop, so a stalled device cannot
// park a full buffer forever.
func (e *Engine) Housekeep() {
	// Memory safety valve: above the hard cap, force flush attempts
	// even below threshold. A failed attempt leaves the buffer over the
	// cap; durability wins over the cap.
	for e.cfg.BufferCap > 0 && len(e.buffer) > e.cfg.BufferCap {
		if !e.flushWindow() {
			log.Printf("uploader: flush failed with buffer over cap (%d values retained)", len(e.buffer))
			return
		}
	}

	for len(e.buffer) >= e.cfg.Target {
		if !e.flushWindow() {
			return
		}
	}
}

// FinalFlush drains the entire buffer unconditionally, creating a
// target binding first if none exists. Called once on shutdown.
func (e *Engine) FinalFlush() error {
	if len(e.buffer) == 0 {
		return nil
	}
	if !e.flush(len(e.buffer)) {
		return fmt.Errorf("uploader: final flush failed, %d values unsent", len(e.buffer))
	}
	return nil
}

// flushWindow flushes one threshold-sized window (or the whole buffer
// if smaller). Reports whether the flush succeeded.
func (e *Engine) flushWindow() bool {
	n := e.cfg.Target
	if n > len(e.buffer) {
		n = len(e.buffer)
	}
	return e.flush(n)
}

// flush attempts to persist buffer[:n] with bounded retries. On success
// the flushed prefix is removed and the sample index advances; on
// failure the buffer is untouched.
func (e *Engine) flush(n int) bool {
	n = daq.AlignDown(n)
	if n == 0 {
		return true
	}

	if !e.ensureBound() {
		return false
	}

	rows := e.toRows(e.buffer[:n])

	for attempt := 1; attempt <= e.cfg.FlushAttempts; attempt++ {
		err := e.store.Insert(e.table, rows)
		if err == nil {
			e.buffer = e.buffer[n:]
			e.sampleIndex += int64(n / daq.ChannelCount)
			return true
		}
		log.Printf("uploader: insert failed (attempt %d/%d): %v", attempt, e.cfg.FlushAttempts, err)
		if attempt < e.cfg.FlushAttempts {
			time.Sleep(time.Duration(attempt) * e.cfg.RetryBackoff)
			if perr := e.store.Ping(); perr != nil {
				log.Printf("uploader: reconnect ping failed: %v", perr)
			}
		}
	}
	return false
}

// ensureBound synchronizes the remote target to the record writer's
// current identity. Best-effort correlation: the binding is refreshed at
// flush time, not at rotation time.
func (e *Engine) ensureBound() bool {
	name := e.identity()
	if e.table != "" && name == e.boundName {
		return true
	}
	if name == "" && e.table != "" {
		// No local identity to follow; keep the existing binding.
		return true
	}

	table, err := e.store.EnsureTable(name)
	if err != nil {
		log.Printf("uploader: bind target for %q failed: %v", name, err)
		return false
	}
	e.table = table
	e.boundName = name
	log.Printf("uploader: remote target bound: %s", table)
	return true
}

func (e *Engine) toRows(data []float64) []Row {
	rows := make([]Row, 0, len(data)/daq.ChannelCount)
	for i := 0; i+daq.ChannelCount <= len(data); i += daq.ChannelCount {
		idx := e.sampleIndex + int64(i/daq.ChannelCount)
		rows = append(rows, Row{
			Timestamp: e.timestampAt(idx),
			Label:     e.cfg.Label,
			X:         data[i],
			Y:         data[i+1],
			Z:         data[i+2],
		})
	}
	return rows
}

func (e *Engine) timestampAt(idx int64) time.Time {
	rate := int64(e.cfg.SampleRate)
	sec := idx / rate
	ns := (idx % rate) * int64(time.Second) / rate
	return e.origin.Add(time.Duration(sec)*time.Second + time.Duration(ns))
}
