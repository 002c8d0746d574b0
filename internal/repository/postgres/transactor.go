package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	mTxDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "db_tx_duration_seconds",
		Help:    "Wall time of transactions from begin to commit or rollback.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})
	mTxOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "db_tx_total",
		Help: "Finished transactions by outcome.",
	}, []string{"outcome"})
)

// Transactor runs functions in one read-committed transaction carried by the
// context. Repositories pick it up through execQueryer.
type Transactor struct {
	db     *DB
	logger *zap.Logger
	opts   pgx.TxOptions
}

func NewTransactor(db *DB, logger *zap.Logger) *Transactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transactor{
		db:     db,
		logger: logger.With(zap.String("component", "postgres.tx")),
		opts:   pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
	}
}

// WithTx commits when fn returns nil and rolls back otherwise. Nested calls
// join the outer transaction.
func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) (txErr error) {
	if _, err := extractTx(ctx); err == nil {
		return fn(ctx)
	}

	start := time.Now()
	tx, err := t.db.Pool.BeginTx(ctx, t.opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		mTxDur.Observe(time.Since(start).Seconds())
		if txErr != nil {
			mTxOutcome.WithLabelValues("rollback").Inc()
			// the caller's ctx may already be done; rollback must still reach the server
			if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
				t.logger.Error("rollback", zap.Error(err))
			}
			return
		}
		if err := tx.Commit(ctx); err != nil {
			mTxOutcome.WithLabelValues("commit_failed").Inc()
			t.logger.Error("commit", zap.Error(err))
			txErr = fmt.Errorf("commit: %w", err)
			return
		}
		mTxOutcome.WithLabelValues("commit").Inc()
	}()

	return fn(context.WithValue(ctx, txKey{}, tx))
}

type txKey struct{}

var ErrTxNotFound = errors.New("tx not found in context")

func extractTx(ctx context.Context) (pgx.Tx, error) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	if !ok {
		return nil, ErrTxNotFound
	}
	return tx, nil
}

type execQueryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// execQueryer returns the transaction in ctx, or the pool outside one.
func (db *DB) execQueryer(ctx context.Context) execQueryer {
	if tx, err := extractTx(ctx); err == nil && tx != nil {
		return tx
	}
	return db.Pool
}
