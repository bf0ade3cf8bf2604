package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ckguru/orchestrator/internal/controlplane"
	"github.com/ckguru/orchestrator/internal/http/response"
)

type XAIHandler struct {
	cp *controlplane.Service
}

func NewXAIHandler(cp *controlplane.Service) *XAIHandler {
	return &XAIHandler{cp: cp}
}

// GET /xai/infer/:job_id/explanations
func (h *XAIHandler) ListExplanations(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	jobs, err := h.cp.ListExplanations(c.Request.Context(), jobID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"explanations": jobs})
}

// GET /xai/explanations/:id
func (h *XAIHandler) GetExplanation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_explanation_id", err)
		return
	}
	job, err := h.cp.GetExplanation(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"explanation": job})
}
