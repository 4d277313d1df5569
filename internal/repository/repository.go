package repository

import (
	"errors"
	"sync/atomic"

	"gorm.io/gorm"
)

var ErrDBNotReady = errors.New("database not initialized")

const (
	defaultLimit = 20
	maxLimit     = 100
)

// dbRef holds the connection handed over by SetDB. The server starts
// serving before the database is up, so reads and the late store race.
type dbRef struct {
	p atomic.Pointer[gorm.DB]
}

func (r *dbRef) get() *gorm.DB {
	return r.p.Load()
}

func (r *dbRef) SetDB(db *gorm.DB) {
	r.p.Store(db)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
