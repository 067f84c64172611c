package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/davicafu/flowlab/internal/execution/application"
	execDomain "github.com/davicafu/flowlab/internal/execution/domain"
	sharedQuery "github.com/davicafu/flowlab/shared/query"
)

// ExecutionHandler encapsula los endpoints HTTP relacionados con Execution.
type ExecutionHandler struct {
	service *application.ExecutionService
}

// NewExecutionHandler crea un nuevo ExecutionHandler.
func NewExecutionHandler(service *application.ExecutionService) *ExecutionHandler {
	return &ExecutionHandler{service: service}
}

// --- Handlers CRUD ---

// StartExecution endpoint POST /executions
func (h *ExecutionHandler) StartExecution(c *gin.Context) {
	var req struct {
		Workflow  string `json:"workflow" binding:"required"`
		Name      string `json:"name" binding:"required"`
		Owner     string `json:"owner"`
		TaskQueue string `json:"task_queue"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	exec, err := h.service.StartExecution(c.Request.Context(), req.Workflow, req.Name, req.Owner, req.TaskQueue)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exec)
}

// GetExecution endpoint GET /executions/:id
func (h *ExecutionHandler) GetExecution(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid execution id"})
		return
	}

	exec, err := h.service.GetExecution(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exec)
}

// CloseExecution endpoint POST /executions/:id/close
func (h *ExecutionHandler) CloseExecution(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid execution id"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := execDomain.ExecutionStatus(req.Status)
	switch status {
	case execDomain.StatusCompleted, execDomain.StatusFailed, execDomain.StatusCanceled:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be completed, failed or canceled"})
		return
	}

	exec, err := h.service.CloseExecution(c.Request.Context(), id, status)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exec)
}

// RetryExecution endpoint POST /executions/:id/retry
func (h *ExecutionHandler) RetryExecution(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid execution id"})
		return
	}

	exec, err := h.service.RetryExecution(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exec)
}

// ListExecutions endpoint GET /executions con filtros, orden y paginación.
//
// Los filtros llegan como filter[campo][operador]=valor, por ejemplo:
//
//	GET /executions?filter[status][eq]=running&filter[attempts][gte]=2&sort_by=created_at&sort_order=desc
func (h *ExecutionHandler) ListExecutions(c *gin.Context) {
	filters := parseFilters(c.Request.URL.Query())

	sortBy := c.Query("sort_by")
	sortOrder := c.DefaultQuery("sort_order", "asc")

	// Un parámetro ausente cae al defecto; uno malformado es un error,
	// nunca un defecto silencioso.
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be an integer"})
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page_size must be an integer"})
		return
	}
	req := sharedQuery.PageRequest{
		Page:      page,
		PageSize:  pageSize,
		PageToken: c.Query("page_token"),
	}

	result, err := h.service.ListExecutions(c.Request.Context(), filters, sortBy, sortOrder, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":            result.Items,
		"count":           result.Count,
		"total":           result.Total,
		"approx_total":    result.ApproxTotal,
		"next_page_token": result.NextPageToken,
	})
}

// DailyTrend endpoint GET /executions/trend?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *ExecutionHandler) DailyTrend(c *gin.Context) {
	const layout = "2006-01-02"

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -7)

	if raw := c.Query("start"); raw != "" {
		t, err := time.Parse(layout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date"})
			return
		}
		start = t
	}
	if raw := c.Query("end"); raw != "" {
		t, err := time.Parse(layout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date"})
			return
		}
		end = t
	}

	trend, err := h.service.DailyTrend(c.Request.Context(), start, end)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": trend})
}

// --- Helpers ---

// parseFilters extrae los parámetros con forma filter[campo][operador]=valor.
// Las claves malformadas se ignoran; la validación semántica (operador
// conocido, tipo del valor) ocurre después en la capa de consulta.
func parseFilters(values url.Values) sharedQuery.Filters {
	filters := sharedQuery.Filters{}

	for key, vals := range values {
		if len(vals) == 0 || !strings.HasPrefix(key, "filter[") {
			continue
		}
		rest := strings.TrimPrefix(key, "filter[")
		// rest tiene la forma "campo][operador]"
		parts := strings.SplitN(rest, "][", 2)
		if len(parts) != 2 || !strings.HasSuffix(parts[1], "]") {
			continue
		}
		field := parts[0]
		op := strings.TrimSuffix(parts[1], "]")
		if field == "" || op == "" {
			continue
		}

		if filters[field] == nil {
			filters[field] = map[string]string{}
		}
		filters[field][op] = vals[0]
	}

	return filters
}

// writeServiceError traduce errores de dominio/consulta a códigos HTTP.
func writeServiceError(c *gin.Context, err error) {
	var vErr *sharedQuery.ValidationError

	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, execDomain.ErrUnknownWorkflow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, execDomain.ErrExecutionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "execution not found"})
	case errors.Is(err, execDomain.ErrExecutionAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, execDomain.ErrExecutionClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, sharedQuery.ErrStaleCursor):
		c.JSON(http.StatusGone, gin.H{"error": "page token no longer valid"})
	case errors.Is(err, sharedQuery.ErrBackendUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage backend unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
