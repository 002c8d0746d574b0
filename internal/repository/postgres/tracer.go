package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	mQueryDur = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of postgres statements by leading verb.",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"verb"})
	mQueryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "db_query_errors_total",
		Help: "Failed postgres statements by leading verb.",
	}, []string{"verb"})
)

type queryStartKey struct{}

type queryStart struct {
	at   time.Time
	sql  string
	verb string
}

// queryTracer times every statement on the pool and logs slow ones.
type queryTracer struct {
	log  *zap.Logger
	slow time.Duration
}

var _ pgx.QueryTracer = (*queryTracer)(nil)

func newQueryTracer(log *zap.Logger, slow time.Duration) *queryTracer {
	if log == nil {
		log = zap.NewNop()
	}
	return &queryTracer{log: log.With(zap.String("component", "postgres")), slow: slow}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: time.Now(), sql: data.SQL, verb: verb(data.SQL)})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qs, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	d := time.Since(qs.at)
	mQueryDur.WithLabelValues(qs.verb).Observe(d.Seconds())

	if data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) && !errors.Is(data.Err, context.Canceled) {
		mQueryErrors.WithLabelValues(qs.verb).Inc()
	}
	if t.slow > 0 && d >= t.slow {
		t.log.Warn("slow query", zap.Duration("took", d), zap.String("sql", compact(qs.sql)))
	}
}

// verb is the first keyword of the statement, or "with" for CTEs.
func verb(sql string) string {
	f := strings.Fields(sql)
	if len(f) == 0 {
		return "unknown"
	}
	return strings.ToLower(f[0])
}

func compact(sql string) string {
	s := strings.Join(strings.Fields(sql), " ")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
