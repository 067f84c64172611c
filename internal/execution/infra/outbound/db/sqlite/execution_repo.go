package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"

	"github.com/davicafu/flowlab/internal/execution/domain"
	sharedDomain "github.com/davicafu/flowlab/shared/domain"
	sharedQuery "github.com/davicafu/flowlab/shared/query"
	sharedUtils "github.com/davicafu/flowlab/shared/utils"
)

// Formato de fecha de ancho fijo: el orden lexicográfico coincide con
// el cronológico, así los predicados sobre TEXT funcionan.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

type ExecutionRepoSQLite struct {
	db *sql.DB
}

func NewExecutionRepoSQLite(db *sql.DB) *ExecutionRepoSQLite {
	return &ExecutionRepoSQLite{db: db}
}

// ------------------ Helper DRY para insertar en outbox ------------------

func insertOutboxTx(ctx context.Context, tx *sql.Tx, evt sharedDomain.OutboxEvent) error {
	payloadBytes, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox (id,aggregate_type,aggregate_id,event_type,payload,created_at,processed)
		 VALUES (?,?,?,?,?,?,0)`,
		evt.ID.String(), evt.AggregateType, evt.AggregateID, evt.EventType, string(payloadBytes), fmtTime(evt.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return nil
}

// ------------------ CRUD + Outbox ------------------

// Create inserta la ejecución y el evento en transacción
func (r *ExecutionRepoSQLite) Create(ctx context.Context, e *domain.Execution, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var closedAt any
	if e.ClosedAt != nil {
		closedAt = fmtTime(*e.ClosedAt)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO executions (id,workflow,name,status,owner,task_queue,attempts,secret_token,created_at,closed_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID.String(), e.Workflow, e.Name, string(e.Status), e.Owner, e.TaskQueue,
		e.Attempts, e.SecretToken, fmtTime(e.CreatedAt), closedAt,
	); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			err = domain.ErrExecutionAlreadyExists
		}
		return err
	}

	if err = insertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}

	return tx.Commit()
}

// Update actualiza la ejecución y crea evento Outbox en transacción
func (r *ExecutionRepoSQLite) Update(ctx context.Context, e *domain.Execution, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var closedAt any
	if e.ClosedAt != nil {
		closedAt = fmtTime(*e.ClosedAt)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE executions SET status=?, attempts=?, closed_at=? WHERE id=?`,
		string(e.Status), e.Attempts, closedAt, e.ID.String(),
	)
	if err != nil {
		return err
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		err = domain.ErrExecutionNotFound
		return err
	}

	if err = insertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}

	return tx.Commit()
}

// ------------------ Lectura ------------------

const executionColumns = `id, workflow, name, status, owner, task_queue, attempts, secret_token, created_at, closed_at`

func scanExecution(scan func(dest ...any) error) (*domain.Execution, error) {
	var (
		e         domain.Execution
		idStr     string
		status    string
		createdAt string
		closedAt  sql.NullString
	)
	if err := scan(&idStr, &e.Workflow, &e.Name, &status, &e.Owner, &e.TaskQueue,
		&e.Attempts, &e.SecretToken, &createdAt, &closedAt); err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in DB: %w", err)
	}
	e.ID = parsedID
	e.Status = domain.ExecutionStatus(status)

	if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at in DB: %w", err)
	}
	if closedAt.Valid {
		t, err := time.Parse(timeLayout, closedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid closed_at in DB: %w", err)
		}
		e.ClosedAt = &t
	}
	return &e, nil
}

func (r *ExecutionRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE id = ?`, id.String())

	e, err := scanExecution(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrExecutionNotFound
		}
		return nil, err
	}
	return e, nil
}

// ------------------ Backend de consulta (estrategia offset) ------------------

// applyPredicate traduce el predicado neutral a SQL con placeholders '?'.
func applyPredicate(p sharedQuery.Predicate) (string, []any) {
	var clauses []string
	var args []any

	for _, c := range p.Conditions {
		col := c.Field.Column
		switch c.Op {
		case sharedQuery.OpEq:
			clauses = append(clauses, col+" = ?")
			args = append(args, bindValue(c.Value))
		case sharedQuery.OpNeq:
			clauses = append(clauses, col+" != ?")
			args = append(args, bindValue(c.Value))
		case sharedQuery.OpGt:
			clauses = append(clauses, col+" > ?")
			args = append(args, bindValue(c.Value))
		case sharedQuery.OpGte:
			clauses = append(clauses, col+" >= ?")
			args = append(args, bindValue(c.Value))
		case sharedQuery.OpLt:
			clauses = append(clauses, col+" < ?")
			args = append(args, bindValue(c.Value))
		case sharedQuery.OpLte:
			clauses = append(clauses, col+" <= ?")
			args = append(args, bindValue(c.Value))
		case sharedQuery.OpContains:
			// LIKE en SQLite es case-insensitive para ASCII; instr respeta mayúsculas
			clauses = append(clauses, "instr("+col+", ?) > 0")
			args = append(args, bindValue(c.Value))
		case sharedQuery.OpIContains:
			clauses = append(clauses, col+" LIKE ?")
			args = append(args, "%"+fmt.Sprint(c.Value)+"%")
		case sharedQuery.OpIn:
			values := c.Value.([]any)
			placeholders := make([]string, len(values))
			for i, v := range values {
				placeholders[i] = "?"
				args = append(args, bindValue(v))
			}
			clauses = append(clauses, col+" IN ("+strings.Join(placeholders, ",")+")")
		}
	}

	return strings.Join(clauses, " AND "), args
}

// bindValue adapta los valores tipados al almacenamiento TEXT de SQLite.
func bindValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return fmtTime(t)
	}
	return v
}

func (r *ExecutionRepoSQLite) Select(ctx context.Context, p sharedQuery.Predicate, o sharedQuery.Order, limit, offset int) ([]*domain.Execution, error) {
	whereSQL, args := applyPredicate(p)

	query := `SELECT ` + executionColumns + ` FROM executions`
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id ASC LIMIT ? OFFSET ?",
		o.Field.Column, sharedUtils.Ternary(o.Desc, "DESC", "ASC"))
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

func (r *ExecutionRepoSQLite) Count(ctx context.Context, p sharedQuery.Predicate) (int64, error) {
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

func (r *ExecutionRepoSQLite) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		 FROM outbox
		 WHERE processed = 0
		 ORDER BY created_at
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []sharedDomain.OutboxEvent
	for rows.Next() {
		var evt sharedDomain.OutboxEvent
		var payloadStr, createdAt string

		if err := rows.Scan(&evt.ID, &evt.AggregateType, &evt.AggregateID, &evt.EventType, &payloadStr, &createdAt); err != nil {
			return nil, err
		}
		if evt.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at in outbox row: %w", err)
		}
		if err := json.Unmarshal([]byte(payloadStr), &evt.Payload); err != nil {
			return nil, fmt.Errorf("invalid JSON payload in outbox row %s: %w", evt.ID, err)
		}
		events = append(events, evt)
	}

	return events, rows.Err()
}

func (r *ExecutionRepoSQLite) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE outbox SET processed = 1 WHERE id = ?`, id.String())
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

func InitSQLite(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		workflow TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		owner TEXT NOT NULL,
		task_queue TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 1,
		secret_token TEXT NOT NULL,
		created_at TEXT NOT NULL,
		closed_at TEXT
	)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0
	)`)
	return err
}

// Verificaciones estáticas de capacidades.
var (
	_ domain.ExecutionRepository                   = (*ExecutionRepoSQLite)(nil)
	_ sharedQuery.OffsetBackend[*domain.Execution] = (*ExecutionRepoSQLite)(nil)
)
