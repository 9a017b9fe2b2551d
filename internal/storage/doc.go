// Package storage persists users, guild configs, daily problem records and
// the solve audit log.
//
// Drivers:
//   - file: one JSON document rewritten atomically on every mutation
//   - sqlite: embedded SQLite database (modernc.org/sqlite, no cgo)
//   - mongo: MongoDB collections
//
// All drivers enforce one daily record per (guild, date).
package storage
