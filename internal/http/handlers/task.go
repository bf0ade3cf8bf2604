package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ckguru/orchestrator/internal/controlplane"
	"github.com/ckguru/orchestrator/internal/http/response"
)

type TaskHandler struct {
	cp *controlplane.Service
}

func NewTaskHandler(cp *controlplane.Service) *TaskHandler {
	return &TaskHandler{cp: cp}
}

// GET /tasks/:task_id
func (h *TaskHandler) GetTask(c *gin.Context) {
	status, err := h.cp.Task(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// POST /tasks/:task_id/revoke?terminate=true&signal=TERM
func (h *TaskHandler) RevokeTask(c *gin.Context) {
	terminate := c.Query("terminate") == "true"
	reason := c.Query("signal")
	if reason == "" {
		reason = "revoked"
	}
	if err := h.cp.Revoke(c.Request.Context(), c.Param("task_id"), terminate, reason); err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
