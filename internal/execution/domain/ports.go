package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/flowlab/shared/domain"
	"github.com/google/uuid"
)

// ---------- Errores de dominio ----------
var (
	ErrExecutionNotFound      = errors.New("execution not found")
	ErrExecutionAlreadyExists = errors.New("execution already exists")
	ErrExecutionClosed        = errors.New("execution already closed")
	ErrUnknownWorkflow        = errors.New("workflow not registered")
)

// ---------- Interfaces (Ports) ----------

// ExecutionRepository define las operaciones persistentes para Execution.
// La capacidad de listado (offset o cursor) se expone aparte, como
// backend de la capa genérica de consulta.
type ExecutionRepository interface {
	// Debe devolver ErrExecutionAlreadyExists si la entidad ya existe.
	Create(ctx context.Context, e *Execution, evt sharedDomain.OutboxEvent) error

	// Debe devolver ErrExecutionNotFound si no existe.
	GetByID(ctx context.Context, id uuid.UUID) (*Execution, error)

	// Debe devolver ErrExecutionNotFound si la ejecución no existe.
	Update(ctx context.Context, e *Execution, evt sharedDomain.OutboxEvent) error

	// FetchPendingOutbox obtiene los eventos no procesados, hasta un máximo
	FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error)

	// MarkOutboxProcessed marca un evento como procesado
	MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error
}

// ---------- Analítica ----------

// DailyExecutionTrend agrega arranques y cierres por día.
type DailyExecutionTrend struct {
	Day     time.Time `json:"day"`
	Started int64     `json:"started"`
	Closed  int64     `json:"closed"`
}

// ExecutionAnalytics define el destino analítico de ejecuciones cerradas.
type ExecutionAnalytics interface {
	LogBatch(ctx context.Context, executions []*Execution) error
	GetDailyTrend(ctx context.Context, start, end time.Time) ([]DailyExecutionTrend, error)
}

// ---------- Helpers comunes (cache keys, etc.) ----------

// CacheKeyByID forma una key consistente para cache usando ID.
func CacheKeyByID(id uuid.UUID) string {
	return fmt.Sprintf("execution:id:%s", id.String())
}
