package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/logentry"
	"github.com/NordCoder/checkengine/internal/domain/monitor"
)

var _ logentry.Store = (*LogRepo)(nil)

type LogRepo struct {
	db *DB
}

func NewLogRepo(db *DB) *LogRepo { return &LogRepo{db: db} }

const (
	qAppendLog = `
INSERT INTO log_entries (check_id, monitor_id, ts, status, message, response_time_ms, response_body)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (check_id) DO NOTHING
RETURNING id;`

	qWindow = `
SELECT count(*) FILTER (WHERE status = 'success'), count(*)
FROM (
   SELECT status
   FROM log_entries
   WHERE monitor_id = $1
   ORDER BY ts DESC, id DESC
   LIMIT $2
) w;`

	qListLogs = `
SELECT id, check_id, monitor_id, ts, status, message, response_time_ms, response_body
FROM log_entries
WHERE monitor_id = $1
ORDER BY ts DESC, id DESC
LIMIT $2;`

	qPrune = `
WITH ranked AS (
   SELECT id, ts,
          row_number() OVER (PARTITION BY monitor_id ORDER BY ts DESC, id DESC) AS rn
   FROM log_entries
)
DELETE FROM log_entries l
USING ranked r
WHERE l.id = r.id
  AND (($1::int > 0 AND r.rn > $1::int) OR ($2::timestamptz IS NOT NULL AND r.ts < $2::timestamptz));`
)

// Append inserts e. A duplicate check id is not an error; it reports
// inserted=false. Appending for a deleted monitor fails with
// monitor.ErrNotFound.
func (r *LogRepo) Append(ctx context.Context, e *logentry.Entry) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qAppendLog,
		e.CheckID, e.MonitorID, e.Timestamp, string(e.Status), e.Message, e.ResponseTimeMs, e.ResponseBody)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return false, monitor.ErrNotFound
		}
		return false, fmt.Errorf("append log: %w", err)
	}
	defer rows.Close()

	inserted := false
	if rows.Next() {
		if err := rows.Scan(&e.ID); err != nil {
			return false, fmt.Errorf("scan log id: %w", err)
		}
		inserted = true
	}
	if err := rows.Err(); err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return false, monitor.ErrNotFound
		}
		return false, fmt.Errorf("append log: %w", err)
	}
	return inserted, nil
}

func (r *LogRepo) Window(ctx context.Context, monitorID string, limit int) (logentry.Window, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var w logentry.Window
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qWindow, monitorID, limit).Scan(&w.Successes, &w.Total); err != nil {
		return logentry.Window{}, fmt.Errorf("window: %w", err)
	}
	return w, nil
}

func (r *LogRepo) ListByMonitor(ctx context.Context, monitorID string, limit int) ([]*logentry.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qListLogs, monitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var out []*logentry.Entry
	for rows.Next() {
		var (
			e      logentry.Entry
			status string
		)
		if err := rows.Scan(&e.ID, &e.CheckID, &e.MonitorID, &e.Timestamp, &status,
			&e.Message, &e.ResponseTimeMs, &e.ResponseBody); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		e.Status = monitor.Status(status)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Prune deletes entries beyond keepPerMonitor per monitor or older than
// olderThan. Zero values disable the respective bound.
func (r *LogRepo) Prune(ctx context.Context, keepPerMonitor int, olderThan time.Time) (int64, error) {
	var before *time.Time
	if !olderThan.IsZero() {
		before = &olderThan
	}
	// pruning scans the whole table; the per-query timeout does not apply
	tag, err := r.db.execQueryer(ctx).Exec(ctx, qPrune, keepPerMonitor, before)
	if err != nil {
		return 0, fmt.Errorf("prune logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
