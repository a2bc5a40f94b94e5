// internal/pipeline/service.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/prowave/prowavedaq/internal/config"
	"github.com/prowave/prowavedaq/internal/daq"
	"github.com/prowave/prowavedaq/internal/recorder"
	"github.com/prowave/prowavedaq/internal/uploader"
)

// popTimeout is the consumer queue wait; it bounds how stale periodic
// housekeeping (threshold flushes with no new data) can get.
const popTimeout = 100 * time.Millisecond

// drainAttempts bounds the post-stop queue drain.
const drainAttempts = 10

// persistQueueDepth is the bounded depth of the two persistence queues.
// Deep enough that a slow sink back-pressures before the poll cadence
// suffers, small enough to bound memory.
const persistQueueDepth = 256

// Service wires the acquisition driver to its consumers and exposes the
// operation set used by the surrounding application. A Service covers
// one acquisition session: configuration is snapshotted at construction
// and changing it requires a stop/reconfigure/restart cycle.
type Service struct {
	cfg    *config.Config
	driver *daq.Driver

	displayQ *Queue
	recordQ  *Queue
	uploadQ  *Queue

	writer *recorder.Writer
	engine *uploader.Engine
	store  uploader.Store

	cancel context.CancelFunc

	// driverDone closes after the driver goroutine exits; consumers
	// drain only then, so no in-flight hand-off can be missed.
	driverDone chan struct{}

	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool

	driverErr error
	writerErr error
	uploadErr error
}

// NewService builds the driver for the configured device. Nothing is
// dialed yet.
func NewService(cfg *config.Config) (*Service, error) {
	drv, err := daq.Build(cfg.DAQ.Device)
	if err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, driver: drv}, nil
}

// Initialize establishes the device transport and pushes the configured
// sample rate.
func (s *Service) Initialize() error {
	return s.driver.Initialize()
}

// Start begins acquisition and both persistence consumers. It may be
// called once per Service.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("pipeline: already started")
	}

	d := s.cfg.DAQ
	label := d.Record.Label

	// Per-session output directory, one level under the configured root.
	sessionDir := filepath.Join(
		d.Record.OutputDir,
		fmt.Sprintf("%s_%s", time.Now().Format("20060102150405"), label),
	)

	w, err := recorder.New(recorder.Config{
		OutputDir:  sessionDir,
		Label:      label,
		SampleRate: d.Device.SampleRate,
		Target:     d.Record.Target,
	})
	if err != nil {
		return err
	}
	s.writer = w

	if d.Upload.Enabled {
		store, err := uploader.NewMySQLStore(uploader.MySQLConfig{
			Host:     d.Upload.Host,
			Port:     d.Upload.Port,
			User:     d.Upload.User,
			Password: d.Upload.Password,
			Database: d.Upload.Database,
		})
		if err != nil {
			_ = w.Close()
			return err
		}
		eng, err := uploader.NewEngine(uploader.EngineConfig{
			Label:      label,
			SampleRate: d.Device.SampleRate,
			Target:     d.Upload.Target,
			BufferCap:  d.Upload.BufferCap,
		}, store, w.CurrentName)
		if err != nil {
			_ = store.Close()
			_ = w.Close()
			return err
		}
		s.store = store
		s.engine = eng
	}

	s.displayQ = NewQueue(d.Display.QueueDepth, DropOldest)
	s.recordQ = NewQueue(persistQueueDepth, Block)
	s.driver.AddSink(s.displayQ)
	s.driver.AddSink(s.recordQ)
	if s.engine != nil {
		s.uploadQ = NewQueue(persistQueueDepth, Block)
		s.driver.AddSink(s.uploadQ)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.driverDone = make(chan struct{})
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.driverDone)
		if err := s.driver.Run(ctx); err != nil {
			s.mu.Lock()
			s.driverErr = err
			s.mu.Unlock()
			log.Printf("pipeline: acquisition stopped: %v", err)
		}
	}()

	s.wg.Add(1)
	go s.recordLoop()

	if s.engine != nil {
		s.wg.Add(1)
		go s.uploadLoop()
	}

	log.Printf("pipeline: started (rate=%d Hz, record unit=%d s, upload=%v)",
		d.Device.SampleRate, d.Record.Seconds, d.Upload.Enabled)
	return nil
}

// Stop signals the driver to stop, waits for both consumers to drain
// their queues and meet their final-flush obligations, and reports the
// session outcome.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return errors.New("pipeline: not running")
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("pipeline: store close: %v", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.driverErr, s.writerErr, s.uploadErr)
}

// LatestBatch is a non-blocking pop from the display queue. Returns nil
// when no batch is pending.
func (s *Service) LatestBatch() []float64 {
	if s.displayQ == nil {
		return nil
	}
	b, _ := s.displayQ.TryPop()
	return b
}

// CurrentRecordName returns the open chunk unit's identity, or "" when
// no session is active.
func (s *Service) CurrentRecordName() string {
	if s.writer == nil {
		return ""
	}
	return s.writer.CurrentName()
}

// Counter reports the number of batches the driver has processed.
func (s *Service) Counter() uint64 { return s.driver.Counter() }

// ResetCounter zeroes the processed-batch counter.
func (s *Service) ResetCounter() { s.driver.ResetCounter() }

// ---- consumer loops ----

func (s *Service) recordLoop() {
	defer s.wg.Done()

	// After a fatal write error the loop keeps draining (and dropping)
	// so a producer blocked on the queue can never deadlock Stop.
	failed := false

	write := func(batch []float64) {
		if failed {
			return
		}
		if err := s.writer.AddBlock(batch); err != nil {
			// Local write failure is fatal: no silent loss on this sink.
			log.Printf("pipeline: record write failed: %v", err)
			s.mu.Lock()
			s.writerErr = err
			s.mu.Unlock()
			failed = true
			s.cancel()
		}
	}

	for {
		select {
		case <-s.driverDone:
			// Acquisition has exited; drain everything it handed off.
			for {
				batch, ok := s.recordQ.TryPop()
				if !ok {
					break
				}
				write(batch)
			}
			if err := s.writer.Close(); err != nil {
				log.Printf("pipeline: record close: %v", err)
			}
			return
		default:
		}

		batch, ok := s.recordQ.Pop(popTimeout)
		if ok {
			write(batch)
		}
	}
}

func (s *Service) uploadLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.driverDone:
			// Bounded drain of batches still reachable, then one
			// unconditional final flush.
			for i := 0; i < drainAttempts; i++ {
				batch, ok := s.uploadQ.TryPop()
				if !ok {
					break
				}
				s.engine.Add(batch)
			}
			if err := s.engine.FinalFlush(); err != nil {
				log.Printf("pipeline: %v", err)
				s.mu.Lock()
				s.uploadErr = err
				s.mu.Unlock()
			}
			return
		default:
		}

		batch, ok := s.uploadQ.Pop(popTimeout)
		if ok {
			s.engine.Add(batch)
		} else {
			// Flush a due window even when the device has stalled.
			s.engine.Housekeep()
		}
	}
}
