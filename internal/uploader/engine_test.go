// internal/uploader/engine_test.go
package uploader

import (
	"errors"
	"testing"
	"time"
)

// ---- fake store ----

type insertCall struct {
	table string
	rows  []Row
}

type fakeStore struct {
	failInserts int // fail this many Inserts before succeeding
	inserts     []insertCall
	ensures     []string
	pings       int
}

func (f *fakeStore) EnsureTable(name string) (string, error) {
	f.ensures = append(f.ensures, name)
	return sanitizeTableName(name), nil
}

func (f *fakeStore) Insert(table string, rows []Row) error {
	if f.failInserts > 0 {
		f.failInserts--
		return errors.New("insert failed")
	}
	cp := make([]Row, len(rows))
	copy(cp, rows)
	f.inserts = append(f.inserts, insertCall{table: table, rows: cp})
	return nil
}

func (f *fakeStore) Ping() error  { f.pings++; return nil }
func (f *fakeStore) Close() error { return nil }

func newTestEngine(t *testing.T, store Store, target, bufCap int, identity func() string) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{
		Label:        "bench",
		SampleRate:   7812,
		Target:       target,
		BufferCap:    bufCap,
		RetryBackoff: time.Millisecond,
	}, store, identity)
	if err != nil {
		t.Fatalf("NewEngine() err=%v", err)
	}
	return e
}

func ident(name string) func() string {
	return func() string { return name }
}

// ---- tests ----

func TestEngine_FlushAtThresholdRetainsExcess(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(t, store, 12, 0, ident("20250101000000_bench_001"))

	e.Add(make([]float64, 9))
	if len(store.inserts) != 0 {
		t.Fatalf("flushed below threshold")
	}

	e.Add(make([]float64, 9)) // 18 staged: one window of 12, excess 6
	if len(store.inserts) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(store.inserts))
	}
	if got := len(store.inserts[0].rows); got != 4 {
		t.Fatalf("flushed %d rows, want 4", got)
	}
	if e.BufferLen() != 6 {
		t.Fatalf("excess = %d values, want 6 retained", e.BufferLen())
	}
}

func TestEngine_FailedFlushKeepsBuffer(t *testing.T) {
	store := &fakeStore{failInserts: 1000}
	e := newTestEngine(t, store, 12, 0, ident("t1"))

	e.Add(make([]float64, 12))
	if e.BufferLen() != 12 {
		t.Fatalf("buffer = %d after failed flush, want 12 (untouched)", e.BufferLen())
	}

	e.Add(make([]float64, 6))
	if e.BufferLen() != 18 {
		t.Fatalf("buffer = %d, want 18 (non-decreasing until a flush succeeds)", e.BufferLen())
	}
	if len(store.inserts) != 0 {
		t.Fatalf("no insert should have succeeded")
	}
}

func TestEngine_FailTwiceThenSucceed(t *testing.T) {
	// Two failed attempts then success within one flush: the staging
	// buffer empties and exactly one write transaction lands.
	store := &fakeStore{failInserts: 2}
	e := newTestEngine(t, store, 12, 0, ident("t1"))

	e.Add(make([]float64, 12))

	if len(store.inserts) != 1 {
		t.Fatalf("expected exactly 1 successful insert, got %d", len(store.inserts))
	}
	if e.BufferLen() != 0 {
		t.Fatalf("buffer = %d, want 0", e.BufferLen())
	}
}

func TestEngine_HardCapForcesFlush(t *testing.T) {
	store := &fakeStore{}
	// Threshold far away; cap at 9 values.
	e := newTestEngine(t, store, 1_000_000, 9, ident("t1"))

	e.Add(make([]float64, 12))
	if len(store.inserts) != 1 {
		t.Fatalf("cap overflow must force a flush attempt, got %d inserts", len(store.inserts))
	}
	if e.BufferLen() != 0 {
		t.Fatalf("buffer = %d, want 0 after forced flush", e.BufferLen())
	}
}

func TestEngine_HardCapFailureKeepsData(t *testing.T) {
	store := &fakeStore{failInserts: 1000}
	e := newTestEngine(t, store, 1_000_000, 9, ident("t1"))

	e.Add(make([]float64, 12))
	// Durability over the cap: the buffer is allowed to exceed it.
	if e.BufferLen() != 12 {
		t.Fatalf("buffer = %d, want 12 retained over cap", e.BufferLen())
	}
}

func TestEngine_FinalFlushBelowThreshold(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(t, store, 1_000_000, 0, ident("20250101000000_bench_001"))

	e.Add(make([]float64, 9))
	if err := e.FinalFlush(); err != nil {
		t.Fatalf("FinalFlush err=%v", err)
	}

	if len(store.inserts) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(store.inserts))
	}
	if got := len(store.inserts[0].rows); got != 3 {
		t.Fatalf("final flush wrote %d rows, want 3", got)
	}
	if e.BufferLen() != 0 {
		t.Fatalf("buffer = %d after final flush, want 0", e.BufferLen())
	}
	// A binding is created before the final flush when none exists.
	if len(store.ensures) == 0 {
		t.Fatalf("expected a target binding before the final flush")
	}
}

func TestEngine_FinalFlushFailureReported(t *testing.T) {
	store := &fakeStore{failInserts: 1000}
	e := newTestEngine(t, store, 1_000_000, 0, ident("t1"))

	e.Add(make([]float64, 9))
	if err := e.FinalFlush(); err == nil {
		t.Fatalf("expected final flush error")
	}
	if e.BufferLen() != 9 {
		t.Fatalf("buffer = %d, want 9 retained", e.BufferLen())
	}
}

func TestEngine_BindingFollowsRecordIdentity(t *testing.T) {
	store := &fakeStore{}
	current := "20250101000000_bench_001"
	e := newTestEngine(t, store, 6, 0, func() string { return current })

	e.Add(make([]float64, 6))
	current = "20250101000001_bench_002" // local rotation happened
	e.Add(make([]float64, 6))

	if len(store.inserts) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(store.inserts))
	}
	if store.inserts[0].table == store.inserts[1].table {
		t.Fatalf("binding did not follow the record identity: both flushes hit %s",
			store.inserts[0].table)
	}
}

func TestEngine_TimestampsAdvanceAcrossFlushes(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(t, store, 6, 0, ident("t1"))

	e.Add(make([]float64, 6))
	e.Add(make([]float64, 6))

	if len(store.inserts) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(store.inserts))
	}
	lastFirst := store.inserts[0].rows[len(store.inserts[0].rows)-1].Timestamp
	nextFirst := store.inserts[1].rows[0].Timestamp
	if !nextFirst.After(lastFirst) {
		t.Fatalf("timestamps reset across flushes: %v then %v", lastFirst, nextFirst)
	}
}

func TestSanitizeTableName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"20250101000000_bench_001", "t_20250101000000_bench_001"},
		{"bench-01.csv", "bench_01_csv"},
		{"bench", "bench"},
		{"", "vibration_data"},
	}
	for _, c := range cases {
		if got := sanitizeTableName(c.in); got != c.want {
			t.Fatalf("sanitizeTableName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
