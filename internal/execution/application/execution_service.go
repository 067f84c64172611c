package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/flowlab/internal/execution/domain"
	"github.com/davicafu/flowlab/internal/registry"
	sharedDomain "github.com/davicafu/flowlab/shared/domain"
	sharedCache "github.com/davicafu/flowlab/shared/platform/cache"
	sharedQuery "github.com/davicafu/flowlab/shared/query"
	sharedUtils "github.com/davicafu/flowlab/shared/utils"
)

// ExecutionService define los casos de uso relacionados con Execution.
// El listado delega en la capa genérica de consulta: el mismo servicio
// funciona sobre un backend offset (SQL) o cursor (listado externo),
// según el Paginator que se enchufe.
type ExecutionService struct {
	repo      domain.ExecutionRepository
	lister    sharedQuery.Paginator[*domain.Execution]
	fields    *sharedQuery.Registry
	workflows *registry.Registry
	cache     sharedCache.Cache
	analytics domain.ExecutionAnalytics
	log       *zap.Logger
}

// NewExecutionService constructor. cache y analytics pueden ser nil.
func NewExecutionService(
	repo domain.ExecutionRepository,
	lister sharedQuery.Paginator[*domain.Execution],
	workflows *registry.Registry,
	cache sharedCache.Cache,
	analytics domain.ExecutionAnalytics,
	log *zap.Logger,
) *ExecutionService {
	return &ExecutionService{
		repo:      repo,
		lister:    lister,
		fields:    domain.NewFieldRegistry(),
		workflows: workflows,
		cache:     cache,
		analytics: analytics,
		log:       log,
	}
}

func newOutboxEvent(e *domain.Execution, eventType string) sharedDomain.OutboxEvent {
	return sharedDomain.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: "execution",
		AggregateID:   e.ID.String(),
		EventType:     eventType,
		Payload:       e,
		CreatedAt:     time.Now().UTC(),
		Processed:     false,
	}
}

// StartExecution da de alta una ejecución de un workflow registrado.
func (s *ExecutionService) StartExecution(ctx context.Context, workflow, name, owner, taskQueue string) (*domain.Execution, error) {
	wf, ok := s.workflows.Workflow(workflow)
	if !ok {
		return nil, domain.ErrUnknownWorkflow
	}
	if taskQueue == "" {
		taskQueue = wf.Name + "-queue"
	}

	exec := &domain.Execution{
		ID:          uuid.New(),
		Workflow:    wf.Name,
		Name:        name,
		Status:      domain.StatusRunning,
		Owner:       owner,
		TaskQueue:   taskQueue,
		Attempts:    1,
		SecretToken: uuid.NewString(), // credencial del worker, nunca expuesta
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, exec, newOutboxEvent(exec, domain.ExecutionStarted)); err != nil {
		return nil, err
	}

	sharedCache.AsyncCacheSet(ctx, s.cache, domain.CacheKeyByID(exec.ID), exec, 60, s.log)
	return exec, nil
}

// CloseExecution lleva la ejecución a un estado terminal.
func (s *ExecutionService) CloseExecution(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus) (*domain.Execution, error) {
	// Las transiciones de estado leen del repositorio, no de la cache:
	// la escritura en cache es asíncrona y puede ir por detrás.
	exec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exec.Closed() {
		return nil, domain.ErrExecutionClosed
	}

	now := time.Now().UTC()
	exec.Status = status
	exec.ClosedAt = &now

	eventType := domain.ExecutionCompleted
	switch status {
	case domain.StatusFailed:
		eventType = domain.ExecutionFailed
	case domain.StatusCanceled:
		eventType = domain.ExecutionCanceled
	}

	if err := s.repo.Update(ctx, exec, newOutboxEvent(exec, eventType)); err != nil {
		return nil, err
	}

	sharedCache.AsyncCacheSet(ctx, s.cache, domain.CacheKeyByID(exec.ID), exec, 60, s.log)

	// El archivo analítico se alimenta desde el consumidor de eventos,
	// no aquí: el evento de cierre ya viaja por el outbox.
	return exec, nil
}

// RetryExecution reabre una ejecución fallida incrementando el intento.
func (s *ExecutionService) RetryExecution(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	exec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exec.Status != domain.StatusFailed {
		return nil, domain.ErrExecutionClosed
	}

	exec.Status = domain.StatusRunning
	exec.ClosedAt = nil
	exec.Attempts++

	if err := s.repo.Update(ctx, exec, newOutboxEvent(exec, domain.ExecutionStarted)); err != nil {
		return nil, err
	}

	sharedCache.AsyncCacheSet(ctx, s.cache, domain.CacheKeyByID(exec.ID), exec, 60, s.log)
	return exec, nil
}

// GetExecution obtiene una ejecución (primero intenta desde cache).
func (s *ExecutionService) GetExecution(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	if s.cache != nil {
		var e domain.Execution
		if ok, _ := s.cache.Get(ctx, domain.CacheKeyByID(id), &e); ok {
			return &e, nil
		}
	}

	var exec *domain.Execution
	err := sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func() error {
		var err error
		exec, err = s.repo.GetByID(ctx, id)
		if err == domain.ErrExecutionNotFound {
			return nil // no tiene sentido reintentar un not found
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, domain.ErrExecutionNotFound
	}

	sharedCache.AsyncCacheSet(ctx, s.cache, domain.CacheKeyByID(exec.ID), exec, 60, s.log)
	return exec, nil
}

// ListExecutions es la operación única de consulta: valida y normaliza
// los filtros/orden/página contra el allow-list y ejecuta la estrategia
// de paginación del backend. Toda la validación ocurre antes de tocar
// el backend, así que un error siempre es seguro de reintentar.
func (s *ExecutionService) ListExecutions(
	ctx context.Context,
	filters sharedQuery.Filters,
	sortBy, sortOrder string,
	req sharedQuery.PageRequest,
) (sharedQuery.Page[*domain.Execution], error) {
	pred, err := sharedQuery.BuildPredicate(s.fields, filters)
	if err != nil {
		return sharedQuery.Page[*domain.Execution]{}, err
	}
	order := sharedQuery.BuildOrder(s.fields, sortBy, sortOrder)

	return s.lister.Paginate(ctx, pred, order, req)
}

// DailyTrend expone la agregación analítica de arranques/cierres.
func (s *ExecutionService) DailyTrend(ctx context.Context, start, end time.Time) ([]domain.DailyExecutionTrend, error) {
	if s.analytics == nil {
		return nil, nil
	}
	return s.analytics.GetDailyTrend(ctx, start, end)
}
