package execrouter

import (
	"context"

	"github.com/compozy/executor/engine/execution"
	"github.com/gin-gonic/gin"
)

// Service is the subset of execution.Service the handlers call.
type Service interface {
	CreateExecution(ctx context.Context) (*execution.Execution, error)
	GetExecution(ctx context.Context, id string) (*execution.Execution, error)
	ListExecutions(ctx context.Context) ([]*execution.Execution, error)
	DeleteExecution(ctx context.Context, id string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status execution.Status) (*execution.Execution, error)
}

type handlers struct {
	svc Service
}

func Register(apiBase *gin.RouterGroup, svc Service) {
	h := &handlers{svc: svc}
	executionsGroup := apiBase.Group("/executions")
	{
		// POST /executions
		// Start a remote run and record it
		executionsGroup.POST("", h.createExecution)

		// GET /executions
		// List all execution records
		executionsGroup.GET("", h.listExecutions)

		// GET /executions/:id
		// Get one execution record
		executionsGroup.GET("/:id", h.getExecution)

		// PATCH /executions/:id
		// Set the status explicitly
		executionsGroup.PATCH("/:id", h.updateStatus)

		// DELETE /executions/:id
		// Delete the local record; the remote run is not canceled
		executionsGroup.DELETE("/:id", h.deleteExecution)
	}
}
