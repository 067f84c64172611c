package query

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ---------------- Paginación ----------------

// Limits son las constantes de paginación impuestas por el servidor,
// independientemente de lo que pida el cliente.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Clamp normaliza el tamaño de página pedido: sin valor usa el defecto,
// por encima del máximo se recorta (nunca se rechaza).
func (l Limits) Clamp(size int) int {
	if size <= 0 {
		return l.DefaultPageSize
	}
	if size > l.MaxPageSize {
		return l.MaxPageSize
	}
	return size
}

// PageRequest agrupa las dos formas de pedir una página:
// page/page_size (estrategia offset) o page_size/page_token (cursor).
type PageRequest struct {
	Page      int
	PageSize  int
	PageToken string
}

// Page es el resultado acotado de una consulta.
type Page[T any] struct {
	Items         []T
	Count         int // len(Items)
	Total         int64
	ApproxTotal   bool // true si Total solo garantiza "al menos"
	NextPageToken string
}

// ---------------- Capacidades del backend ----------------

// OffsetBackend describe un backend que soporta offset/limit y conteo
// exacto (repositorios SQL).
type OffsetBackend[T any] interface {
	Select(ctx context.Context, p Predicate, o Order, limit, offset int) ([]T, error)
	Count(ctx context.Context, p Predicate) (int64, error)
}

// CursorBackend describe un backend que solo expone listado por cursor
// (p. ej. un servicio externo de listado de ejecuciones). Devuelve los
// items, el token de continuación y si existen más páginas.
type CursorBackend[T any] interface {
	SelectAfter(ctx context.Context, p Predicate, o Order, token string, limit int) (items []T, next string, more bool, err error)
}

// Paginator unifica ambas estrategias tras una sola interfaz, con el
// backend enchufado como capacidad.
type Paginator[T any] interface {
	Paginate(ctx context.Context, p Predicate, o Order, req PageRequest) (Page[T], error)
}

// ---------------- Estrategia offset ----------------

// OffsetPaginator pagina con offset/limit y un conteo exacto sobre el
// mismo predicado. Las dos consultas son de solo lectura y se lanzan en
// paralelo; bajo escrituras concurrentes Total es eventual/aproximado
// respecto a Items (no comparten snapshot).
type OffsetPaginator[T any] struct {
	Backend OffsetBackend[T]
	Limits  Limits
}

func (pg OffsetPaginator[T]) Paginate(ctx context.Context, p Predicate, o Order, req PageRequest) (Page[T], error) {
	// page < 1 nunca se corrige en silencio: "primera página" se pide
	// explícitamente con page=1 (el transporte pone ese defecto cuando
	// el parámetro está ausente).
	page := req.Page
	if page < 1 {
		return Page[T]{}, &ValidationError{Field: "page", Reason: fmt.Sprintf("page %d is below 1", page)}
	}
	limit := pg.Limits.Clamp(req.PageSize)
	offset := (page - 1) * limit

	var (
		items []T
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = pg.Backend.Select(gctx, p, o, limit, offset)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = pg.Backend.Count(gctx, p)
		return err
	})
	if err := g.Wait(); err != nil {
		return Page[T]{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	return Page[T]{
		Items: items,
		Count: len(items),
		Total: total,
	}, nil
}

// ---------------- Estrategia cursor ----------------

// CursorPaginator pagina con token de continuación opaco. Si el backend
// señala más resultados, Total = Count+1 con ApproxTotal=true: una señal
// barata de "hay más páginas", no un conteo real.
type CursorPaginator[T any] struct {
	Backend CursorBackend[T]
	Limits  Limits
}

func (pg CursorPaginator[T]) Paginate(ctx context.Context, p Predicate, o Order, req PageRequest) (Page[T], error) {
	limit := pg.Limits.Clamp(req.PageSize)

	items, next, more, err := pg.Backend.SelectAfter(ctx, p, o, req.PageToken, limit)
	if err != nil {
		if IsValidation(err) || errors.Is(err, ErrStaleCursor) {
			return Page[T]{}, err
		}
		return Page[T]{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	result := Page[T]{
		Items: items,
		Count: len(items),
		Total: int64(len(items)),
	}
	if more {
		result.Total = int64(len(items)) + 1
		result.ApproxTotal = true
		result.NextPageToken = next
	}
	return result, nil
}
