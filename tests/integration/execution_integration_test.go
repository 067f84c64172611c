package integration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/davicafu/flowlab/internal/execution/domain"
	"github.com/davicafu/flowlab/internal/execution/infra/outbound/db/sqlite"
	sharedDomain "github.com/davicafu/flowlab/shared/domain"
	sharedQuery "github.com/davicafu/flowlab/shared/query"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, sqlite.InitSQLite(db))
	return db
}

func startedEvent(e *domain.Execution) sharedDomain.OutboxEvent {
	return sharedDomain.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: "execution",
		AggregateID:   e.ID.String(),
		EventType:     domain.ExecutionStarted,
		Payload:       e,
		CreatedAt:     time.Now().UTC(),
	}
}

func newExecution(name, owner string, status domain.ExecutionStatus, attempts int, createdAt time.Time) *domain.Execution {
	return &domain.Execution{
		ID:          uuid.New(),
		Workflow:    "order-processing",
		Name:        name,
		Status:      status,
		Owner:       owner,
		TaskQueue:   "order-processing-queue",
		Attempts:    attempts,
		SecretToken: uuid.NewString(),
		CreatedAt:   createdAt,
	}
}

func TestExecutionSQLiteIntegration_CreateGetUpdate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := sqlite.NewExecutionRepoSQLite(db)
	ctx := context.Background()

	exec := newExecution("order-42", "ana", domain.StatusRunning, 1, time.Now().UTC())

	err := repo.Create(ctx, exec, startedEvent(exec))
	assert.NoError(t, err)

	// Crear de nuevo con el mismo ID debe fallar
	err = repo.Create(ctx, exec, startedEvent(exec))
	assert.ErrorIs(t, err, domain.ErrExecutionAlreadyExists)

	got, err := repo.GetByID(ctx, exec.ID)
	assert.NoError(t, err)
	assert.Equal(t, exec.Name, got.Name)
	assert.Equal(t, exec.Status, got.Status)
	assert.Nil(t, got.ClosedAt)

	// Cerrar y actualizar
	now := time.Now().UTC()
	exec.Status = domain.StatusCompleted
	exec.ClosedAt = &now
	err = repo.Update(ctx, exec, startedEvent(exec))
	assert.NoError(t, err)

	got, err = repo.GetByID(ctx, exec.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.ClosedAt)

	// Inexistente
	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
}

func TestExecutionSQLiteIntegration_Outbox(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := sqlite.NewExecutionRepoSQLite(db)
	ctx := context.Background()

	exec := newExecution("order-1", "ana", domain.StatusRunning, 1, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, exec, startedEvent(exec)))

	pending, err := repo.FetchPendingOutbox(ctx, 10)
	assert.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.ExecutionStarted, pending[0].EventType)
	assert.Equal(t, exec.ID.String(), pending[0].AggregateID)

	require.NoError(t, repo.MarkOutboxProcessed(ctx, pending[0].ID))

	pending, err = repo.FetchPendingOutbox(ctx, 10)
	assert.NoError(t, err)
	assert.Empty(t, pending)
}

// -------------------- Capa de consulta sobre SQLite --------------------

func seedQueryDataset(t *testing.T, repo *sqlite.ExecutionRepoSQLite) {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []*domain.Execution{
		newExecution("nightly-report", "ana", domain.StatusRunning, 1, base),
		newExecution("Payment-Sweep", "bob", domain.StatusCompleted, 2, base.Add(1*time.Hour)),
		newExecution("payment-retry", "ana", domain.StatusFailed, 3, base.Add(2*time.Hour)),
		newExecution("cleanup", "carol", domain.StatusCompleted, 1, base.Add(3*time.Hour)),
		newExecution("cleanup-deep", "ana", domain.StatusCanceled, 5, base.Add(4*time.Hour)),
	}
	for _, e := range rows {
		require.NoError(t, repo.Create(context.Background(), e, startedEvent(e)))
	}
}

func listWith(t *testing.T, repo *sqlite.ExecutionRepoSQLite, filters sharedQuery.Filters, sortBy, sortOrder string, req sharedQuery.PageRequest) sharedQuery.Page[*domain.Execution] {
	t.Helper()
	fields := domain.NewFieldRegistry()

	pred, err := sharedQuery.BuildPredicate(fields, filters)
	require.NoError(t, err)
	order := sharedQuery.BuildOrder(fields, sortBy, sortOrder)

	paginator := sharedQuery.OffsetPaginator[*domain.Execution]{
		Backend: repo,
		Limits:  sharedQuery.Limits{DefaultPageSize: 25, MaxPageSize: 100},
	}
	page, err := paginator.Paginate(context.Background(), pred, order, req)
	require.NoError(t, err)
	return page
}

func TestQueryOverSQLite_FilterOperators(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := sqlite.NewExecutionRepoSQLite(db)
	seedQueryDataset(t, repo)

	// eq
	page := listWith(t, repo, sharedQuery.Filters{"owner": {"eq": "ana"}}, "", "", sharedQuery.PageRequest{Page: 1})
	assert.Equal(t, 3, page.Count)

	// contains distingue mayúsculas; icontains no
	page = listWith(t, repo, sharedQuery.Filters{"name": {"contains": "payment"}}, "", "", sharedQuery.PageRequest{Page: 1})
	assert.Equal(t, 1, page.Count)
	page = listWith(t, repo, sharedQuery.Filters{"name": {"icontains": "payment"}}, "", "", sharedQuery.PageRequest{Page: 1})
	assert.Equal(t, 2, page.Count)

	// in
	page = listWith(t, repo, sharedQuery.Filters{"status": {"in": "completed,failed"}}, "", "", sharedQuery.PageRequest{Page: 1})
	assert.Equal(t, 3, page.Count)

	// rango numérico
	page = listWith(t, repo, sharedQuery.Filters{"attempts": {"gte": "2", "lte": "3"}}, "", "", sharedQuery.PageRequest{Page: 1})
	assert.Equal(t, 2, page.Count)

	// rango temporal: el almacenamiento de fechas conserva el orden cronológico
	page = listWith(t, repo, sharedQuery.Filters{"created_at": {"gt": "2026-03-01T13:30:00Z"}}, "", "", sharedQuery.PageRequest{Page: 1})
	assert.Equal(t, 3, page.Count)
}

func TestQueryOverSQLite_DeniedFieldEquivalence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := sqlite.NewExecutionRepoSQLite(db)
	seedQueryDataset(t, repo)

	all := listWith(t, repo, nil, "", "", sharedQuery.PageRequest{Page: 1})
	denied := listWith(t, repo, sharedQuery.Filters{"secret_token": {"eq": "x"}}, "", "", sharedQuery.PageRequest{Page: 1})

	// Filtrar por un campo denegado es indistinguible de no filtrar.
	assert.Equal(t, all.Total, denied.Total)
	assert.Equal(t, all.Count, denied.Count)
}

func TestQueryOverSQLite_SortAndPagination(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := sqlite.NewExecutionRepoSQLite(db)
	seedQueryDataset(t, repo)

	// Orden descendente por fecha, páginas de 2
	page1 := listWith(t, repo, nil, "created_at", "desc", sharedQuery.PageRequest{Page: 1, PageSize: 2})
	assert.Equal(t, 2, page1.Count)
	assert.Equal(t, int64(5), page1.Total)
	assert.False(t, page1.ApproxTotal)
	assert.True(t, page1.Items[0].CreatedAt.After(page1.Items[1].CreatedAt))

	page2 := listWith(t, repo, nil, "created_at", "desc", sharedQuery.PageRequest{Page: 2, PageSize: 2})
	page3 := listWith(t, repo, nil, "created_at", "desc", sharedQuery.PageRequest{Page: 3, PageSize: 2})
	assert.Equal(t, 2, page2.Count)
	assert.Equal(t, 1, page3.Count)

	// Sin duplicados entre páginas
	seen := map[uuid.UUID]bool{}
	for _, p := range []sharedQuery.Page[*domain.Execution]{page1, page2, page3} {
		for _, e := range p.Items {
			assert.False(t, seen[e.ID])
			seen[e.ID] = true
		}
	}
	assert.Len(t, seen, 5)

	// Página fuera de rango: vacía pero con el total real
	empty := listWith(t, repo, nil, "created_at", "desc", sharedQuery.PageRequest{Page: 9, PageSize: 2})
	assert.Equal(t, 0, empty.Count)
	assert.Equal(t, int64(5), empty.Total)

	// page_size por encima del máximo se recorta, no se rechaza
	clamped := listWith(t, repo, nil, "", "", sharedQuery.PageRequest{Page: 1, PageSize: 1000})
	assert.Equal(t, 5, clamped.Count)
}

func TestQueryOverSQLite_Idempotence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := sqlite.NewExecutionRepoSQLite(db)
	seedQueryDataset(t, repo)

	filters := sharedQuery.Filters{"owner": {"eq": "ana"}, "attempts": {"gte": "1"}}

	first := listWith(t, repo, filters, "name", "asc", sharedQuery.PageRequest{Page: 1, PageSize: 10})
	second := listWith(t, repo, filters, "name", "asc", sharedQuery.PageRequest{Page: 1, PageSize: 10})

	require.Equal(t, first.Count, second.Count)
	for i := range first.Items {
		assert.Equal(t, first.Items[i].ID, second.Items[i].ID)
	}
}
