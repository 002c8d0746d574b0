package memory

import (
	"context"
	"sync"
)

type txKey struct{}

type txLog struct {
	mu   sync.Mutex
	undo []func()
}

// Transactor gives the in-memory stores rollback semantics: writes made
// inside WithTx register an undo step that runs when fn fails.
type Transactor struct{}

func NewTransactor() *Transactor { return &Transactor{} }

func (Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txLog); ok {
		return fn(ctx)
	}
	tl := &txLog{}
	if err := fn(context.WithValue(ctx, txKey{}, tl)); err != nil {
		tl.mu.Lock()
		undo := tl.undo
		tl.undo = nil
		tl.mu.Unlock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return err
	}
	return nil
}

func onRollback(ctx context.Context, f func()) {
	tl, ok := ctx.Value(txKey{}).(*txLog)
	if !ok {
		return
	}
	tl.mu.Lock()
	tl.undo = append(tl.undo, f)
	tl.mu.Unlock()
}
