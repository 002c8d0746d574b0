package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/monitor"
	"github.com/jackc/pgx/v5"
)

var _ monitor.Registry = (*MonitorRepo)(nil)

type MonitorRepo struct {
	db *DB
}

func NewMonitorRepo(db *DB) *MonitorRepo { return &MonitorRepo{db: db} }

const (
	monitorColumns = `id, type, target, interval_minutes, active, settings,
       last_status, last_checked_at, uptime_percent, created_at, updated_at`

	qListActive = `
SELECT ` + monitorColumns + `
FROM monitors
WHERE active = TRUE
ORDER BY id;`

	qGetMonitor = `
SELECT ` + monitorColumns + `
FROM monitors
WHERE id = $1;`

	qUpdateHealth = `
WITH prev AS (
   SELECT id, last_status
   FROM monitors
   WHERE id = $1 AND active = TRUE
   FOR UPDATE
)
UPDATE monitors m
SET last_status = $2, last_checked_at = $3, uptime_percent = $4, updated_at = now()
FROM prev
WHERE m.id = prev.id
RETURNING prev.last_status;`
)

func scanMonitor(row pgx.Row) (*monitor.Monitor, error) {
	var (
		m        monitor.Monitor
		settings []byte
		typ      string
		status   string
	)
	if err := row.Scan(
		&m.ID,
		&typ,
		&m.Target,
		&m.IntervalMinutes,
		&m.Active,
		&settings,
		&status,
		&m.LastCheckedAt,
		&m.UptimePercent,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, monitor.ErrNotFound
		}
		return nil, fmt.Errorf("scan monitor: %w", err)
	}
	m.Type = monitor.Type(typ)
	m.LastStatus = monitor.Status(status)
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &m.Settings); err != nil {
			return nil, fmt.Errorf("monitor %s settings: %w", m.ID, err)
		}
	}
	return &m, nil
}

func (r *MonitorRepo) ListActive(ctx context.Context) ([]*monitor.Monitor, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qListActive)
	if err != nil {
		return nil, fmt.Errorf("query monitors: %w", err)
	}
	defer rows.Close()

	var out []*monitor.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *MonitorRepo) Get(ctx context.Context, id string) (*monitor.Monitor, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	return scanMonitor(r.db.execQueryer(ctx).QueryRow(ctx, qGetMonitor, id))
}

func (r *MonitorRepo) UpdateHealth(ctx context.Context, id string, status monitor.Status, checkedAt time.Time, uptimePercent float64) (monitor.Status, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var prev string
	err := r.db.execQueryer(ctx).QueryRow(ctx, qUpdateHealth, id, string(status), checkedAt, uptimePercent).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", monitor.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("update health: %w", err)
	}
	return monitor.Status(prev), nil
}
