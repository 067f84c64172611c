package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	execDomain "github.com/davicafu/flowlab/internal/execution/domain"
	sharedDomain "github.com/davicafu/flowlab/shared/domain"
	sharedQuery "github.com/davicafu/flowlab/shared/query"
	"github.com/google/uuid"
)

// InMemoryExecutionRepo simula ExecutionRepository con outbox incluido.
// También implementa el backend offset de la capa de consulta, evaluando
// los predicados en memoria.
type InMemoryExecutionRepo struct {
	Executions map[uuid.UUID]*execDomain.Execution
	Outbox     []sharedDomain.OutboxEvent
	mu         sync.Mutex
}

var (
	_ execDomain.ExecutionRepository                   = (*InMemoryExecutionRepo)(nil)
	_ sharedQuery.OffsetBackend[*execDomain.Execution] = (*InMemoryExecutionRepo)(nil)
)

func NewInMemoryExecutionRepo() *InMemoryExecutionRepo {
	return &InMemoryExecutionRepo{
		Executions: make(map[uuid.UUID]*execDomain.Execution),
		Outbox:     []sharedDomain.OutboxEvent{},
	}
}

// Create con outbox
func (r *InMemoryExecutionRepo) Create(ctx context.Context, e *execDomain.Execution, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Executions[e.ID]; ok {
		return execDomain.ErrExecutionAlreadyExists
	}
	cp := *e
	r.Executions[e.ID] = &cp
	r.Outbox = append(r.Outbox, evt)
	return nil
}

// GetByID
func (r *InMemoryExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*execDomain.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.Executions[id]
	if !ok {
		return nil, execDomain.ErrExecutionNotFound
	}
	cp := *e
	return &cp, nil
}

// Update con outbox
func (r *InMemoryExecutionRepo) Update(ctx context.Context, e *execDomain.Execution, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Executions[e.ID]; !ok {
		return execDomain.ErrExecutionNotFound
	}
	cp := *e
	r.Executions[e.ID] = &cp
	r.Outbox = append(r.Outbox, evt)
	return nil
}

// FetchPendingOutbox devuelve los eventos aún no marcados.
func (r *InMemoryExecutionRepo) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []sharedDomain.OutboxEvent
	for _, evt := range r.Outbox {
		if evt.Processed {
			continue
		}
		pending = append(pending, evt)
		if len(pending) >= limit {
			break
		}
	}
	return pending, nil
}

func (r *InMemoryExecutionRepo) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Outbox {
		if r.Outbox[i].ID == id {
			r.Outbox[i].Processed = true
			return nil
		}
	}
	return nil
}

// ---------------- Backend de consulta en memoria ----------------

func (r *InMemoryExecutionRepo) Select(
	ctx context.Context,
	p sharedQuery.Predicate,
	o sharedQuery.Order,
	limit, offset int,
) ([]*execDomain.Execution, error) {
	list := r.matching(p)
	sortExecutions(list, o)

	if offset >= len(list) {
		return []*execDomain.Execution{}, nil
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end], nil
}

func (r *InMemoryExecutionRepo) Count(ctx context.Context, p sharedQuery.Predicate) (int64, error) {
	return int64(len(r.matching(p))), nil
}

func (r *InMemoryExecutionRepo) matching(p sharedQuery.Predicate) []*execDomain.Execution {
	r.mu.Lock()
	defer r.mu.Unlock()

	var list []*execDomain.Execution
	for _, e := range r.Executions {
		matchesAll := true
		for _, cond := range p.Conditions {
			if !matchCondition(e, cond) {
				matchesAll = false
				break
			}
		}
		if matchesAll {
			cp := *e
			list = append(list, &cp)
		}
	}
	return list
}

func matchCondition(e *execDomain.Execution, cond sharedQuery.Condition) bool {
	switch cond.Field.Kind {
	case sharedQuery.KindText:
		return matchText(textValue(e, cond.Field.Name), cond)
	case sharedQuery.KindNumber:
		return matchNumber(numberValue(e, cond.Field.Name), cond)
	case sharedQuery.KindTime:
		t, ok := timeValue(e, cond.Field.Name)
		if !ok {
			return false
		}
		return matchTime(t, cond)
	}
	return false
}

func textValue(e *execDomain.Execution, field string) string {
	switch field {
	case "id":
		return e.ID.String()
	case "workflow":
		return e.Workflow
	case "name":
		return e.Name
	case "status":
		return string(e.Status)
	case "owner":
		return e.Owner
	case "task_queue":
		return e.TaskQueue
	}
	return ""
}

func numberValue(e *execDomain.Execution, field string) float64 {
	if field == "attempts" {
		return float64(e.Attempts)
	}
	return 0
}

func timeValue(e *execDomain.Execution, field string) (time.Time, bool) {
	switch field {
	case "created_at":
		return e.CreatedAt, true
	case "closed_at":
		if e.ClosedAt == nil {
			return time.Time{}, false
		}
		return *e.ClosedAt, true
	}
	return time.Time{}, false
}

func matchText(v string, cond sharedQuery.Condition) bool {
	switch cond.Op {
	case sharedQuery.OpEq:
		return v == cond.Value.(string)
	case sharedQuery.OpNeq:
		return v != cond.Value.(string)
	case sharedQuery.OpGt:
		return v > cond.Value.(string)
	case sharedQuery.OpGte:
		return v >= cond.Value.(string)
	case sharedQuery.OpLt:
		return v < cond.Value.(string)
	case sharedQuery.OpLte:
		return v <= cond.Value.(string)
	case sharedQuery.OpContains:
		return strings.Contains(v, cond.Value.(string))
	case sharedQuery.OpIContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(cond.Value.(string)))
	case sharedQuery.OpIn:
		for _, item := range cond.Value.([]any) {
			if v == item.(string) {
				return true
			}
		}
	}
	return false
}

func matchNumber(v float64, cond sharedQuery.Condition) bool {
	switch cond.Op {
	case sharedQuery.OpEq:
		return v == cond.Value.(float64)
	case sharedQuery.OpNeq:
		return v != cond.Value.(float64)
	case sharedQuery.OpGt:
		return v > cond.Value.(float64)
	case sharedQuery.OpGte:
		return v >= cond.Value.(float64)
	case sharedQuery.OpLt:
		return v < cond.Value.(float64)
	case sharedQuery.OpLte:
		return v <= cond.Value.(float64)
	case sharedQuery.OpIn:
		for _, item := range cond.Value.([]any) {
			if v == item.(float64) {
				return true
			}
		}
	}
	return false
}

func matchTime(v time.Time, cond sharedQuery.Condition) bool {
	switch cond.Op {
	case sharedQuery.OpEq:
		return v.Equal(cond.Value.(time.Time))
	case sharedQuery.OpNeq:
		return !v.Equal(cond.Value.(time.Time))
	case sharedQuery.OpGt:
		return v.After(cond.Value.(time.Time))
	case sharedQuery.OpGte:
		return !v.Before(cond.Value.(time.Time))
	case sharedQuery.OpLt:
		return v.Before(cond.Value.(time.Time))
	case sharedQuery.OpLte:
		return !v.After(cond.Value.(time.Time))
	case sharedQuery.OpIn:
		for _, item := range cond.Value.([]any) {
			if v.Equal(item.(time.Time)) {
				return true
			}
		}
	}
	return false
}

// sortExecutions ordena por el campo pedido con desempate por ID,
// igual que los backends reales.
func sortExecutions(list []*execDomain.Execution, o sharedQuery.Order) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		var less, equal bool
		switch o.Field.Kind {
		case sharedQuery.KindNumber:
			av, bv := numberValue(a, o.Field.Name), numberValue(b, o.Field.Name)
			less, equal = av < bv, av == bv
		case sharedQuery.KindTime:
			av, _ := timeValue(a, o.Field.Name)
			bv, _ := timeValue(b, o.Field.Name)
			less, equal = av.Before(bv), av.Equal(bv)
		default:
			av, bv := textValue(a, o.Field.Name), textValue(b, o.Field.Name)
			less, equal = av < bv, av == bv
		}
		if equal {
			return a.ID.String() < b.ID.String()
		}
		if o.Desc {
			return !less
		}
		return less
	})
}
