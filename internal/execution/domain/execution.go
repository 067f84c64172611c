package domain

import (
	"time"

	sharedBus "github.com/davicafu/flowlab/shared/platform/bus"
	"github.com/google/uuid"
)

// ---------------- Estado ----------------

type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusCanceled  ExecutionStatus = "canceled"
)

// ---------------- Entidad ----------------

// Execution representa una ejecución de un workflow registrado.
// SecretToken es una credencial interna del worker: no se serializa
// y jamás recibe descriptor en el registro de campos, de modo que es
// estructuralmente inalcanzable desde filtros y ordenamientos.
type Execution struct {
	ID          uuid.UUID       `json:"id"`
	Workflow    string          `json:"workflow"`
	Name        string          `json:"name"`
	Status      ExecutionStatus `json:"status"`
	Owner       string          `json:"owner"`
	TaskQueue   string          `json:"task_queue"`
	Attempts    int             `json:"attempts"`
	SecretToken string          `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	ClosedAt    *time.Time      `json:"closed_at,omitempty"`
}

func (e *Execution) PartitionKey() string {
	return e.ID.String()
}

// Closed indica si la ejecución llegó a un estado terminal.
func (e *Execution) Closed() bool {
	switch e.Status {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Duration devuelve cuánto lleva (o duró) la ejecución.
func (e *Execution) Duration() time.Duration {
	if e.ClosedAt != nil {
		return e.ClosedAt.Sub(e.CreatedAt)
	}
	return time.Since(e.CreatedAt)
}

// Verificación estática para asegurar que Execution implementa la interfaz
var _ sharedBus.Keyer = (*Execution)(nil)
