// internal/uploader/store.go
package uploader

import (
	"regexp"
	"time"
)

// Row is one timestamped sample bound for the remote store.
type Row struct {
	Timestamp time.Time
	Label     string
	X, Y, Z   float64
}

// Store is the exact contract the engine uses for the remote side.
// IMPORTANT: There must be NO other version of this interface anywhere.
type Store interface {
	// EnsureTable creates the named table if missing and returns the
	// sanitized name actually used.
	EnsureTable(name string) (string, error)

	// Insert writes all rows in one transaction. Partial writes must
	// not be visible.
	Insert(table string, rows []Row) error

	Ping() error
	Close() error
}

var tableNameRe = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// sanitizeTableName maps an arbitrary identity onto a legal SQL table
// name: illegal characters become underscores, a leading digit gains a
// "t_" prefix, and an empty result falls back to a fixed name.
func sanitizeTableName(name string) string {
	s := tableNameRe.ReplaceAllString(name, "_")
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = "t_" + s
	}
	if s == "" {
		s = "vibration_data"
	}
	return s
}
