package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/flowlab/internal/execution/application"
	"github.com/davicafu/flowlab/internal/execution/domain"
	"github.com/davicafu/flowlab/internal/registry"
	sharedQuery "github.com/davicafu/flowlab/shared/query"
	"github.com/davicafu/flowlab/tests/mocks"
)

func setupRouter(t *testing.T) (*gin.Engine, *mocks.InMemoryExecutionRepo, *application.ExecutionService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := mocks.NewInMemoryExecutionRepo()
	lister := sharedQuery.OffsetPaginator[*domain.Execution]{
		Backend: repo,
		Limits:  sharedQuery.Limits{DefaultPageSize: 25, MaxPageSize: 100},
	}

	reg := registry.New()
	require.NoError(t, reg.RegisterActivity("validate-input"))
	require.NoError(t, reg.RegisterWorkflow("order-processing", []string{"validate-input"}))

	service := application.NewExecutionService(repo, lister, reg, mocks.NewDummyCache(), nil, zap.NewNop())

	router := gin.New()
	RegisterExecutionRoutes(router, NewExecutionHandler(service))
	return router, repo, service
}

type listResponse struct {
	Data          []json.RawMessage `json:"data"`
	Count         int               `json:"count"`
	Total         int64             `json:"total"`
	ApproxTotal   bool              `json:"approx_total"`
	NextPageToken string            `json:"next_page_token"`
}

func TestStartExecution_HTTP(t *testing.T) {
	router, repo, _ := setupRouter(t)

	body := bytes.NewBufferString(`{"workflow":"order-processing","name":"order-42","owner":"ana"}`)
	req := httptest.NewRequest(http.MethodPost, "/executions/", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order-42", resp["name"])
	assert.Equal(t, "running", resp["status"])

	// SecretToken jamás aparece en la respuesta
	_, leaked := resp["secret_token"]
	assert.False(t, leaked)

	assert.Len(t, repo.Outbox, 1)
}

func TestStartExecution_HTTP_UnknownWorkflow(t *testing.T) {
	router, _, _ := setupRouter(t)

	body := bytes.NewBufferString(`{"workflow":"ghost","name":"x"}`)
	req := httptest.NewRequest(http.MethodPost, "/executions/", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetExecution_HTTP_NotFound(t *testing.T) {
	router, _, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/executions/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCloseExecution_HTTP_Conflict(t *testing.T) {
	router, _, service := setupRouter(t)

	exec, err := service.StartExecution(context.Background(), "order-processing", "order-1", "ana", "")
	require.NoError(t, err)

	doClose := func() *httptest.ResponseRecorder {
		body := bytes.NewBufferString(`{"status":"completed"}`)
		req := httptest.NewRequest(http.MethodPost, "/executions/"+exec.ID.String()+"/close", body)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, doClose().Code)
	assert.Equal(t, http.StatusConflict, doClose().Code)
}

func TestCloseExecution_HTTP_InvalidStatus(t *testing.T) {
	router, _, service := setupRouter(t)

	exec, err := service.StartExecution(context.Background(), "order-processing", "order-1", "ana", "")
	require.NoError(t, err)

	body := bytes.NewBufferString(`{"status":"paused"}`)
	req := httptest.NewRequest(http.MethodPost, "/executions/"+exec.ID.String()+"/close", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListExecutions_HTTP_FilterSyntax(t *testing.T) {
	router, _, service := setupRouter(t)

	for _, name := range []string{"alpha", "beta", "gamma"} {
		_, err := service.StartExecution(context.Background(), "order-processing", name, "ana", "")
		require.NoError(t, err)
	}
	_, err := service.StartExecution(context.Background(), "order-processing", "delta", "bob", "")
	require.NoError(t, err)

	target := "/executions/?" + url.Values{
		"filter[owner][eq]": {"ana"},
		"sort_by":           {"name"},
		"sort_order":        {"asc"},
		"page_size":         {"2"},
	}.Encode()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, int64(3), resp.Total)
	assert.False(t, resp.ApproxTotal)
}

func TestListExecutions_HTTP_UnknownOperator(t *testing.T) {
	router, _, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/executions/?"+url.Values{
		"filter[status][regex]": {"run.*"},
	}.Encode(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListExecutions_HTTP_InvalidPageParams(t *testing.T) {
	router, _, service := setupRouter(t)

	_, err := service.StartExecution(context.Background(), "order-processing", "alpha", "ana", "")
	require.NoError(t, err)

	// Parámetros de página malformados o fuera de rango nunca se degradan
	// en silencio a la primera página.
	for _, raw := range []string{"page=abc", "page=0", "page=-3", "page_size=xyz"} {
		req := httptest.NewRequest(http.MethodGet, "/executions/?"+raw, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %q", raw)
	}

	// Sin parámetro alguno sí se sirve la primera página.
	req := httptest.NewRequest(http.MethodGet, "/executions/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListExecutions_HTTP_DeniedFieldIgnored(t *testing.T) {
	router, _, service := setupRouter(t)

	_, err := service.StartExecution(context.Background(), "order-processing", "alpha", "ana", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/executions/?"+url.Values{
		"filter[secret_token][eq]": {"whatever"},
	}.Encode(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

// -------------------- parseFilters --------------------

func TestParseFilters(t *testing.T) {
	values := url.Values{
		"filter[status][eq]":    {"running"},
		"filter[attempts][gte]": {"2"},
		"filter[attempts][lte]": {"5"},
		"filter[owner]":         {"malformed"}, // sin operador: se ignora
		"filter[][eq]":          {"empty field"},
		"sort_by":               {"name"},
		"page":                  {"1"},
	}

	filters := parseFilters(values)

	assert.Equal(t, "running", filters["status"]["eq"])
	assert.Equal(t, "2", filters["attempts"]["gte"])
	assert.Equal(t, "5", filters["attempts"]["lte"])
	_, hasMalformed := filters["owner"]
	assert.False(t, hasMalformed)
	_, hasEmpty := filters[""]
	assert.False(t, hasEmpty)
}
