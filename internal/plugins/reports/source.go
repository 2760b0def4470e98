package reports

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MetricsSource computes a summary for an inclusive range of UTC days.
type MetricsSource interface {
	Summary(ctx context.Context, from, to time.Time) (*Summary, error)
}

// mariaDBSource implements MetricsSource over the daily_metrics table.
type mariaDBSource struct {
	db *sql.DB
}

// NewMariaDBSource creates a metrics source backed by MariaDB.
func NewMariaDBSource(db *sql.DB) MetricsSource {
	return &mariaDBSource{db: db}
}

// Summary reads every day in [from, to] and totals them. Days without a
// row are simply absent from Daily.
func (s *mariaDBSource) Summary(ctx context.Context, from, to time.Time) (*Summary, error) {
	query := `SELECT day, orders, revenue_cents, customers
	          FROM daily_metrics
	          WHERE day BETWEEN ? AND ?
	          ORDER BY day`

	rows, err := s.db.QueryContext(ctx, query, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("querying daily metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summary := &Summary{
		From:  from.Format(dateLayout),
		To:    to.Format(dateLayout),
		Daily: []DailyMetric{},
	}
	for rows.Next() {
		var (
			day time.Time
			d   DailyMetric
		)
		if err := rows.Scan(&day, &d.Orders, &d.RevenueCents, &d.Customers); err != nil {
			return nil, fmt.Errorf("scanning daily metric: %w", err)
		}
		d.Day = day.Format(dateLayout)
		summary.add(d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating daily metrics: %w", err)
	}
	return summary, nil
}
