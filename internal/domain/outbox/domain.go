// Package outbox holds the transactional outbox contract: events are written in
// the same transaction as the state they describe and published later.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrUnknownKind = errors.New("unknown outbox kind")

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
)

// Kind is persisted as an integer; never renumber.
type Kind int

const (
	KindStatusChanged  Kind = 1
	KindCheckCompleted Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindStatusChanged:
		return "status_changed"
	case KindCheckCompleted:
		return "check_completed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Message is one stored event. The trace fields carry the W3C context of the
// transaction that enqueued it.
type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Traceparent    string
	Tracestate     string
	Baggage        string
}

type Repository interface {
	// Enqueue is a no-op when key already exists.
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error
	// PickBatch claims up to batch messages, including IN_PROGRESS ones whose
	// claim is older than inProgressTTL.
	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)
	MarkSuccess(ctx context.Context, keys []string) error
}

type KindHandler func(ctx context.Context, data []byte) error

// GlobalHandler resolves the handler for a kind; unknown kinds return an
// error wrapping ErrUnknownKind.
type GlobalHandler func(kind Kind) (KindHandler, error)
