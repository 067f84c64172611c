package http

import "github.com/gin-gonic/gin"

// RegisterExecutionRoutes registra las rutas HTTP del dominio de Ejecuciones.
func RegisterExecutionRoutes(r *gin.Engine, handler *ExecutionHandler) {
	executions := r.Group("/executions")
	{
		executions.POST("/", handler.StartExecution)          // Arrancar una ejecución
		executions.GET("/", handler.ListExecutions)           // Listar con filtros y paginación
		executions.GET("/trend", handler.DailyTrend)          // Agregado diario
		executions.GET("/:id", handler.GetExecution)          // Obtener por ID
		executions.POST("/:id/close", handler.CloseExecution) // Cerrar (completed/failed/canceled)
		executions.POST("/:id/retry", handler.RetryExecution) // Reintentar una fallida
	}
}
