// Package rotation implements round-robin selection over the operator pool.
package rotation

import (
	"errors"
	"sync"
)

// Assignee pairs a tracker username with the Telegram chat to notify.
type Assignee struct {
	Username string
	ChatID   int64
}

// Rotation hands out assignees in a fixed repeating order starting at the
// first configured entry. Safe for concurrent use.
type Rotation struct {
	mu    sync.Mutex
	pool  []Assignee
	index int
}

// ErrEmpty is returned by New for an empty pool; an empty rotation is a
// configuration error and must be rejected at startup.
var ErrEmpty = errors.New("rotation: empty assignee pool")

// New builds a rotation over pool, failing fast when pool is empty.
func New(pool []Assignee) (*Rotation, error) {
	if len(pool) == 0 {
		return nil, ErrEmpty
	}
	cp := make([]Assignee, len(pool))
	copy(cp, pool)
	return &Rotation{pool: cp}, nil
}

// Next returns the current assignee and advances the index by one, modulo
// the pool length.
func (r *Rotation) Next() Assignee {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.pool[r.index]
	r.index = (r.index + 1) % len(r.pool)
	return a
}

// Len returns the pool size.
func (r *Rotation) Len() int {
	return len(r.pool)
}
