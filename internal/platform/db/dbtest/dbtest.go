// Package dbtest provides test doubles for the db package.
package dbtest

import (
	"context"
	"sync"
)

// SerialTx is a db.Transactor for in-memory repositories. Units of work run
// one at a time, which stands in for row locks taken inside a real
// transaction. Nested calls run inline. Writes made before an error are not
// undone.
type SerialTx struct {
	mu    sync.Mutex
	Calls int
}

type inTxKey struct{}

func (s *SerialTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	return fn(context.WithValue(ctx, inTxKey{}, true))
}

// InTx reports whether ctx was produced by WithinTx.
func InTx(ctx context.Context) bool {
	return ctx.Value(inTxKey{}) != nil
}
