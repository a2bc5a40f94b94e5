// internal/recorder/writer.go
package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/prowave/prowavedaq/internal/daq"
)

// timestampLayout is sortable text with microsecond precision.
const timestampLayout = "2006-01-02T15:04:05.000000"

var header = []string{"Timestamp", "Channel_1(X)", "Channel_2(Y)", "Channel_3(Z)"}

// Config is the immutable recorder configuration.
type Config struct {
	OutputDir  string
	Label      string
	SampleRate int

	// Target is the rotation threshold in raw values.
	Target int
}

// Writer appends sample batches to rotating CSV chunk units. Timestamps
// derive from a global sample index that survives rotation, so the time
// axis never resets at a file boundary. Not safe for concurrent use; one
// consumer goroutine owns it.
type Writer struct {
	cfg Config

	seq  int
	file *os.File
	cw   *csv.Writer

	// current is read from other goroutines via CurrentName.
	nameMu  sync.Mutex
	current string

	// written counts raw values in the current unit; sampleIndex is the
	// global sample counter driving timestamps.
	written     int
	sampleIndex int64
	origin      time.Time
}

// New creates the output directory and opens the first chunk unit.
func New(cfg Config) (*Writer, error) {
	if cfg.SampleRate <= 0 {
		return nil, errors.New("recorder: sample rate must be > 0")
	}
	if cfg.Target <= 0 {
		return nil, errors.New("recorder: rotation target must be > 0")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("recorder: create output dir: %w", err)
	}

	w := &Writer{cfg: cfg, origin: time.Now()}
	if err := w.openUnit(); err != nil {
		return nil, err
	}
	return w, nil
}

// CurrentName returns the open unit's identity: the file name without
// directory or extension. Used to correlate the remote target. Safe to
// call from any goroutine.
func (w *Writer) CurrentName() string {
	w.nameMu.Lock()
	defer w.nameMu.Unlock()
	return w.current
}

// AddBlock appends one batch, rotating as many times as the threshold
// requires. Every written row is a complete X/Y/Z triple.
func (w *Writer) AddBlock(batch []float64) error {
	for w.written+len(batch) >= w.cfg.Target {
		space := w.cfg.Target - w.written
		prefix, rest := SplitAtSampleBoundary(batch, space)
		if len(prefix) == 0 {
			// Threshold falls inside a sample: cut at the first
			// whole-sample boundary past it instead.
			prefix, rest = SplitAtSampleBoundary(batch, daq.ChannelCount)
		}
		if len(prefix) == 0 {
			break
		}
		if err := w.writeRows(prefix); err != nil {
			return err
		}
		if err := w.rotate(); err != nil {
			return err
		}
		batch = rest
	}

	if len(batch) > 0 {
		if err := w.writeRows(batch); err != nil {
			return err
		}
		w.written += len(batch)
	}

	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		return fmt.Errorf("recorder: flush %s: %w", w.current, err)
	}
	return nil
}

// Close seals the current unit.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	w.cw.Flush()
	err := w.cw.Error()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file = nil
	w.cw = nil
	return err
}

func (w *Writer) writeRows(data []float64) error {
	row := make([]string, 1+daq.ChannelCount)
	for i := 0; i+daq.ChannelCount <= len(data); i += daq.ChannelCount {
		row[0] = w.timestampAt(w.sampleIndex).Format(timestampLayout)
		for j := 0; j < daq.ChannelCount; j++ {
			row[1+j] = strconv.FormatFloat(data[i+j], 'g', -1, 64)
		}
		if err := w.cw.Write(row); err != nil {
			return fmt.Errorf("recorder: write %s: %w", w.current, err)
		}
		w.sampleIndex++
	}
	return nil
}

// timestampAt computes origin + idx/rate without floating-point drift.
func (w *Writer) timestampAt(idx int64) time.Time {
	rate := int64(w.cfg.SampleRate)
	sec := idx / rate
	ns := (idx % rate) * int64(time.Second) / rate
	return w.origin.Add(time.Duration(sec)*time.Second + time.Duration(ns))
}

func (w *Writer) rotate() error {
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		return fmt.Errorf("recorder: flush %s: %w", w.current, err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("recorder: seal %s: %w", w.current, err)
	}
	w.written = 0
	return w.openUnit()
}

func (w *Writer) openUnit() error {
	w.seq++
	stamp := time.Now().Format("20060102150405")
	name := fmt.Sprintf("%s_%s_%03d", stamp, w.cfg.Label, w.seq)

	f, err := os.Create(filepath.Join(w.cfg.OutputDir, name+".csv"))
	if err != nil {
		return fmt.Errorf("recorder: create %s.csv: %w", name, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("recorder: write header %s: %w", name, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("recorder: write header %s: %w", name, err)
	}

	w.file = f
	w.cw = cw
	w.nameMu.Lock()
	w.current = name
	w.nameMu.Unlock()
	log.Printf("recorder: new chunk unit %s.csv", name)
	return nil
}
