package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/davicafu/flowlab/internal/execution/domain"
)

// ExecutionAnalyticsRepo implementa domain.ExecutionAnalytics sobre ClickHouse.
type ExecutionAnalyticsRepo struct {
	db *sql.DB
}

func NewExecutionAnalyticsRepo(addr, dbName string) (*ExecutionAnalyticsRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}

	return &ExecutionAnalyticsRepo{db: conn}, nil
}

// LogBatch inserta un lote de ejecuciones cerradas. ClickHouse funciona
// mejor con inserciones en lotes.
func (r *ExecutionAnalyticsRepo) LogBatch(ctx context.Context, executions []*domain.Execution) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO executions_log (id, workflow, name, status, owner, task_queue, attempts, created_at, closed_at, event_time)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	eventTime := time.Now()
	for _, e := range executions {
		var closedAt time.Time
		if e.ClosedAt != nil {
			closedAt = *e.ClosedAt
		}
		if _, err := stmt.ExecContext(
			ctx,
			e.ID,
			e.Workflow,
			e.Name,
			string(e.Status),
			e.Owner,
			e.TaskQueue,
			e.Attempts,
			e.CreatedAt,
			closedAt,
			eventTime,
		); err != nil {
			// Si un registro falla, rollback del lote completo.
			tx.Rollback()
			return fmt.Errorf("failed to exec statement for execution %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// GetDailyTrend agrega arranques y cierres por día en el rango pedido.
func (r *ExecutionAnalyticsRepo) GetDailyTrend(ctx context.Context, start, end time.Time) ([]domain.DailyExecutionTrend, error) {
	query := `
		SELECT
			toStartOfDay(event_time) AS day,
			countIf(status = 'running') AS started,
			countIf(status IN ('completed', 'failed', 'canceled')) AS closed
		FROM executions_log
		WHERE event_time BETWEEN ? AND ?
		GROUP BY day
		ORDER BY day
	`
	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trends []domain.DailyExecutionTrend
	for rows.Next() {
		var trend domain.DailyExecutionTrend
		if err := rows.Scan(&trend.Day, &trend.Started, &trend.Closed); err != nil {
			return nil, err
		}
		trends = append(trends, trend)
	}
	return trends, rows.Err()
}

// InitClickHouse crea la tabla de log si no existe.
func (r *ExecutionAnalyticsRepo) InitClickHouse() error {
	_, err := r.db.Exec(`
	CREATE TABLE IF NOT EXISTS executions_log (
		id UUID,
		workflow String,
		name String,
		status String,
		owner String,
		task_queue String,
		attempts Int32,
		created_at DateTime64(9),
		closed_at DateTime64(9),
		event_time DateTime64(9)
	) ENGINE = MergeTree()
	ORDER BY (event_time, id)`)
	return err
}

var _ domain.ExecutionAnalytics = (*ExecutionAnalyticsRepo)(nil)
