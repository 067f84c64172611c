package query

import (
	"errors"
	"fmt"
)

// ---------------- Errores de la capa de consulta ----------------

var (
	// ErrStaleCursor indica que el page_token ya no es válido contra el
	// estado actual del backend; el cliente debe reiniciar la paginación.
	ErrStaleCursor = errors.New("stale page token, restart pagination from the first page")

	// ErrBackendUnavailable envuelve fallos del backend. Nunca se
	// enmascara como "sin resultados".
	ErrBackendUnavailable = errors.New("query backend unavailable")
)

// ValidationError describe una entrada inválida con detalle suficiente
// para que el cliente corrija la petición.
type ValidationError struct {
	Field  string
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid query: %s", e.Reason)
	}
	if e.Op == "" {
		return fmt.Sprintf("invalid filter on field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid filter %s on field %q: %s", e.Op, e.Field, e.Reason)
}

// IsValidation indica si err es (o envuelve) un ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
