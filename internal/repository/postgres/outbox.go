package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/outbox"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var _ outbox.Repository = (*OutboxRepo)(nil)

type OutboxRepo struct{ db *DB }

func NewOutboxRepo(db *DB) *OutboxRepo { return &OutboxRepo{db: db} }

const (
	qEnqueue = `
INSERT INTO outbox (idempotency_key, kind, data, traceparent, tracestate, baggage)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (idempotency_key) DO NOTHING`

	// Stale IN_PROGRESS rows belong to a runner that died mid-batch.
	qClaim = `
UPDATE outbox o
SET status = 'IN_PROGRESS', updated_at = now()
FROM (
    SELECT idempotency_key
    FROM outbox
    WHERE status = 'CREATED'
       OR (status = 'IN_PROGRESS' AND updated_at < now() - make_interval(secs => $2))
    ORDER BY created_at
    LIMIT $1
    FOR UPDATE SKIP LOCKED
) c
WHERE o.idempotency_key = c.idempotency_key
RETURNING o.idempotency_key, o.kind, o.data, o.status, o.created_at, o.updated_at,
          o.traceparent, o.tracestate, o.baggage`

	qMarkSuccess = `
UPDATE outbox
SET status = 'SUCCESS', updated_at = now()
WHERE idempotency_key = ANY($1)`
)

type outboxRow struct {
	IdempotencyKey string    `db:"idempotency_key"`
	Kind           int32     `db:"kind"`
	Data           []byte    `db:"data"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	Traceparent    string    `db:"traceparent"`
	Tracestate     string    `db:"tracestate"`
	Baggage        string    `db:"baggage"`
}

func (r outboxRow) message() outbox.Message {
	return outbox.Message{
		IdempotencyKey: r.IdempotencyKey,
		Kind:           outbox.Kind(r.Kind),
		Data:           r.Data,
		Status:         outbox.Status(r.Status),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		Traceparent:    r.Traceparent,
		Tracestate:     r.Tracestate,
		Baggage:        r.Baggage,
	}
}

// Enqueue joins the caller's transaction when there is one and stores the
// current trace context next to the payload.
func (r *OutboxRepo) Enqueue(ctx context.Context, key string, kind outbox.Kind, data []byte) error {
	tc := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, tc)

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qEnqueue, key, int32(kind), data,
		tc.Get("traceparent"), tc.Get("tracestate"), tc.Get("baggage")); err != nil {
		return fmt.Errorf("outbox enqueue %s: %w", key, err)
	}
	return nil
}

// PickBatch returns claimed messages oldest first.
func (r *OutboxRepo) PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]outbox.Message, error) {
	if batch <= 0 {
		return nil, errors.New("outbox pick: batch must be > 0")
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qClaim, batch, inProgressTTL.Seconds())
	if err != nil {
		return nil, fmt.Errorf("outbox pick: %w", err)
	}
	claimed, err := pgx.CollectRows(rows, pgx.RowToStructByName[outboxRow])
	if err != nil {
		return nil, fmt.Errorf("outbox pick scan: %w", err)
	}

	out := make([]outbox.Message, 0, len(claimed))
	for _, row := range claimed {
		out = append(out, row.message())
	}
	// RETURNING order is unspecified.
	sortByCreated(out)
	return out, nil
}

func (r *OutboxRepo) MarkSuccess(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	if _, err := r.db.execQueryer(ctx).Exec(ctx, qMarkSuccess, keys); err != nil {
		return fmt.Errorf("outbox mark success: %w", err)
	}
	return nil
}

func sortByCreated(ms []outbox.Message) {
	slices.SortStableFunc(ms, func(a, b outbox.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
