package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/davicafu/flowlab/internal/execution/domain"
	sharedDomain "github.com/davicafu/flowlab/shared/domain"
	sharedQuery "github.com/davicafu/flowlab/shared/query"
	sharedUtils "github.com/davicafu/flowlab/shared/utils"
)

type ExecutionRepoPostgres struct {
	db *sql.DB
}

func NewExecutionRepoPostgres(db *sql.DB) *ExecutionRepoPostgres {
	return &ExecutionRepoPostgres{db: db}
}

// ------------------ Helper DRY para insertar en outbox ------------------

func insertOutboxTx(ctx context.Context, tx *sql.Tx, evt sharedDomain.OutboxEvent) error {
	payloadBytes, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at, processed)
		 VALUES ($1, $2, $3, $4, $5, $6, false)`,
		evt.ID, evt.AggregateType, evt.AggregateID, evt.EventType, payloadBytes, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// ------------------ CRUD + Outbox ------------------

// Create inserta la ejecución y el evento en transacción
func (r *ExecutionRepoPostgres) Create(ctx context.Context, e *domain.Execution, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO executions (id, workflow, name, status, owner, task_queue, attempts, secret_token, created_at, closed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Workflow, e.Name, string(e.Status), e.Owner, e.TaskQueue,
		e.Attempts, e.SecretToken, e.CreatedAt, e.ClosedAt,
	)
	if err != nil {
		// 23505 = unique_violation
		if strings.Contains(err.Error(), "23505") {
			err = domain.ErrExecutionAlreadyExists
		}
		return err
	}

	if err = insertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}

	return tx.Commit()
}

// Update actualiza la ejecución y crea evento en transacción
func (r *ExecutionRepoPostgres) Update(ctx context.Context, e *domain.Execution, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE executions SET status=$1, attempts=$2, closed_at=$3 WHERE id=$4`,
		string(e.Status), e.Attempts, e.ClosedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		err = domain.ErrExecutionNotFound
		return err
	}

	if err = insertOutboxTx(ctx, tx, evt); err != nil {
		return fmt.Errorf("failed to insert outbox: %w", err)
	}

	return tx.Commit()
}

// ------------------ Lectura ------------------

const executionColumns = `id, workflow, name, status, owner, task_queue, attempts, secret_token, created_at, closed_at`

func scanExecution(scan func(dest ...any) error) (*domain.Execution, error) {
	var (
		e      domain.Execution
		idStr  string
		status string
	)
	if err := scan(&idStr, &e.Workflow, &e.Name, &status, &e.Owner, &e.TaskQueue,
		&e.Attempts, &e.SecretToken, &e.CreatedAt, &e.ClosedAt); err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in DB: %w", err)
	}
	e.ID = parsedID
	e.Status = domain.ExecutionStatus(status)
	return &e, nil
}

func (r *ExecutionRepoPostgres) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE id=$1`, id)

	e, err := scanExecution(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

// ------------------ Backend de consulta (estrategia offset) ------------------

// applyPredicate traduce el predicado neutral a SQL de Postgres ($1, $2...)
func applyPredicate(p sharedQuery.Predicate) (string, []any) {
	var clauses []string
	var args []any

	next := func() int { return len(args) + 1 }

	for _, c := range p.Conditions {
		col := c.Field.Column
		switch c.Op {
		case sharedQuery.OpEq:
			clauses = append(clauses, fmt.Sprintf("%s = $%d", col, next()))
			args = append(args, c.Value)
		case sharedQuery.OpNeq:
			clauses = append(clauses, fmt.Sprintf("%s <> $%d", col, next()))
			args = append(args, c.Value)
		case sharedQuery.OpGt:
			clauses = append(clauses, fmt.Sprintf("%s > $%d", col, next()))
			args = append(args, c.Value)
		case sharedQuery.OpGte:
			clauses = append(clauses, fmt.Sprintf("%s >= $%d", col, next()))
			args = append(args, c.Value)
		case sharedQuery.OpLt:
			clauses = append(clauses, fmt.Sprintf("%s < $%d", col, next()))
			args = append(args, c.Value)
		case sharedQuery.OpLte:
			clauses = append(clauses, fmt.Sprintf("%s <= $%d", col, next()))
			args = append(args, c.Value)
		case sharedQuery.OpContains:
			clauses = append(clauses, fmt.Sprintf("%s LIKE $%d", col, next()))
			args = append(args, "%"+fmt.Sprint(c.Value)+"%")
		case sharedQuery.OpIContains:
			clauses = append(clauses, fmt.Sprintf("%s ILIKE $%d", col, next()))
			args = append(args, "%"+fmt.Sprint(c.Value)+"%")
		case sharedQuery.OpIn:
			values := c.Value.([]any)
			placeholders := make([]string, len(values))
			for i, v := range values {
				placeholders[i] = fmt.Sprintf("$%d", next())
				args = append(args, v)
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ",")))
		}
	}

	return strings.Join(clauses, " AND "), args
}

func (r *ExecutionRepoPostgres) Select(ctx context.Context, p sharedQuery.Predicate, o sharedQuery.Order, limit, offset int) ([]*domain.Execution, error) {
	whereSQL, args := applyPredicate(p)

	query := `SELECT ` + executionColumns + ` FROM executions`
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id ASC LIMIT $%d OFFSET $%d",
		o.Field.Column, sharedUtils.Ternary(o.Desc, "DESC", "ASC"), len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []*domain.Execution
	for rows.Next() {
		e, err := scanExecution(rows.Scan)
		if err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

func (r *ExecutionRepoPostgres) Count(ctx context.Context, p sharedQuery.Predicate) (int64, error) {
	whereSQL, args := applyPredicate(p)

	query := `SELECT COUNT(*) FROM executions`
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ------------------ Outbox ------------------

func (r *ExecutionRepoPostgres) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		 FROM outbox
		 WHERE processed = false
		 ORDER BY created_at
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []sharedDomain.OutboxEvent
	for rows.Next() {
		var evt sharedDomain.OutboxEvent
		var payloadBytes []byte

		if err := rows.Scan(&evt.ID, &evt.AggregateType, &evt.AggregateID, &evt.EventType, &payloadBytes, &evt.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payloadBytes, &evt.Payload); err != nil {
			return nil, fmt.Errorf("invalid JSON payload in outbox row %s: %w", evt.ID, err)
		}
		events = append(events, evt)
	}

	return events, rows.Err()
}

func (r *ExecutionRepoPostgres) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE outbox SET processed = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("outbox event not found: %s", id)
	}
	return nil
}

// ------------------ Inicialización ------------------

func InitPostgres(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS executions (
		id UUID PRIMARY KEY,
		workflow TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		owner TEXT NOT NULL,
		task_queue TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 1,
		secret_token TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		closed_at TIMESTAMPTZ
	)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		processed BOOLEAN NOT NULL DEFAULT FALSE
	)`)
	return err
}

// Verificaciones estáticas de capacidades.
var (
	_ domain.ExecutionRepository                   = (*ExecutionRepoPostgres)(nil)
	_ sharedQuery.OffsetBackend[*domain.Execution] = (*ExecutionRepoPostgres)(nil)
)
