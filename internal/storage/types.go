package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	// ErrRecordExists is returned by CreateDailyRecord when the (guild, date)
	// slot is already claimed.
	ErrRecordExists = errors.New("storage: daily record already exists")
	ErrClosed       = errors.New("storage: closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": single JSON document (default)
//   - "sqlite": SQLite database file
//   - "mongo": MongoDB (URI + Database)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	URI      string // mongo only
	Database string // mongo only
	Timeout  time.Duration
}
