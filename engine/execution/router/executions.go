package execrouter

import (
	"errors"
	"net/http"
	"strings"

	"github.com/compozy/executor/engine/execution"
	"github.com/compozy/executor/engine/infra/server/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type DeleteResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// createExecution starts a new execution. Any request body is ignored.
//
//	@Summary		Create execution
//	@Tags			executions
//	@Produce		json
//	@Success		200	{object}	execution.Execution
//	@Failure		500	{object}	router.ErrorResponse
//	@Router			/executions [post]
func (h *handlers) createExecution(c *gin.Context) {
	exec, err := h.svc.CreateExecution(c.Request.Context())
	if err != nil {
		router.RespondWithError(c, router.NewRequestError(
			http.StatusInternalServerError,
			"failed to create execution",
			err,
		))
		return
	}
	router.RespondOK(c, exec)
}

// Route: GET /executions
func (h *handlers) listExecutions(c *gin.Context) {
	execs, err := h.svc.ListExecutions(c.Request.Context())
	if err != nil {
		router.RespondWithError(c, router.NewRequestError(
			http.StatusInternalServerError,
			"failed to list executions",
			err,
		))
		return
	}
	if execs == nil {
		execs = []*execution.Execution{}
	}
	router.RespondOK(c, execs)
}

// getExecution returns one record.
//
//	@Summary		Get execution
//	@Tags			executions
//	@Produce		json
//	@Param			id	path		string	true	"Execution ID"
//	@Success		200	{object}	execution.Execution
//	@Failure		400	{object}	router.ErrorResponse
//	@Failure		404	{object}	router.ErrorResponse
//	@Failure		500	{object}	router.ErrorResponse
//	@Router			/executions/{id} [get]
func (h *handlers) getExecution(c *gin.Context) {
	id, ok := executionID(c)
	if !ok {
		return
	}
	exec, err := h.svc.GetExecution(c.Request.Context(), id)
	if err != nil {
		router.RespondWithError(c, router.NewRequestError(
			http.StatusInternalServerError,
			"failed to get execution",
			err,
		))
		return
	}
	if exec == nil {
		router.RespondWithError(c, router.NewRequestError(http.StatusNotFound, "execution not found", nil))
		return
	}
	router.RespondOK(c, exec)
}

// Route: PATCH /executions/:id
func (h *handlers) updateStatus(c *gin.Context) {
	id, ok := executionID(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		router.RespondWithError(c, router.NewRequestError(http.StatusBadRequest, "invalid request body", err))
		return
	}
	status, err := execution.ParseStatus(req.Status)
	if err != nil {
		router.RespondWithError(c, router.NewRequestError(http.StatusBadRequest, "invalid status", err))
		return
	}
	exec, err := h.svc.UpdateStatus(c.Request.Context(), id, status)
	switch {
	case errors.Is(err, execution.ErrNotFound):
		router.RespondWithError(c, router.NewRequestError(http.StatusNotFound, "execution not found", nil))
	case errors.Is(err, execution.ErrInvalidTransition):
		router.RespondWithError(c, router.NewRequestError(http.StatusConflict, "status cannot change", err))
	case err != nil:
		router.RespondWithError(c, router.NewRequestError(
			http.StatusInternalServerError,
			"failed to update execution",
			err,
		))
	default:
		router.RespondOK(c, exec)
	}
}

// deleteExecution removes the local record only.
//
//	@Summary		Delete execution
//	@Description	Deletes the local record. The remote run keeps running.
//	@Tags			executions
//	@Produce		json
//	@Param			id	path		string	true	"Execution ID"
//	@Success		200	{object}	execrouter.DeleteResponse
//	@Failure		404	{object}	router.ErrorResponse
//	@Failure		500	{object}	router.ErrorResponse
//	@Router			/executions/{id} [delete]
func (h *handlers) deleteExecution(c *gin.Context) {
	id, ok := executionID(c)
	if !ok {
		return
	}
	removed, err := h.svc.DeleteExecution(c.Request.Context(), id)
	if err != nil {
		router.RespondWithError(c, router.NewRequestError(
			http.StatusInternalServerError,
			"failed to delete execution",
			err,
		))
		return
	}
	if !removed {
		router.RespondWithError(c, router.NewRequestError(http.StatusNotFound, "execution not found", nil))
		return
	}
	router.RespondOK(c, DeleteResponse{Message: "execution deleted", ID: id})
}

func executionID(c *gin.Context) (string, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := uuid.Parse(raw)
	if err != nil {
		router.RespondWithError(c, router.NewRequestError(
			http.StatusNotFound,
			"execution not found",
			execution.ErrInvalidID,
		))
		return "", false
	}
	return id.String(), true
}
