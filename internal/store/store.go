// Package store holds the Postgres-backed repositories for content, platform
// integrations and the publication ledger.
package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned, possibly wrapped, when a row does not exist or cannot be used.
var ErrNotFound = errors.New("record not found")

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func timeArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
