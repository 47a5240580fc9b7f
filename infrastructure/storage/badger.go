// Package storage persists rooms, messages and notifications in BadgerDB.
// Values are JSON documents; keys are prefixed per entity and per owner so
// that prefix scans return one room's messages or one user's notifications.
package storage

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/oklog/ulid/v2"
)

// Open opens (or creates) the badger database at path.
func Open(path string, log *slog.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	log.Info("Badger opened", "path", path)
	return db, nil
}

// OpenInMemory is used by tests and by `relay serve` without a BADGER_FILEPATH.
func OpenInMemory() (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
}

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// newID returns a ULID. Ids generated by one process sort in creation order,
// which keeps prefix scans chronological.
func newID(at time.Time) string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), ulidEntropy).String()
}
