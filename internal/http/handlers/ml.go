package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ckguru/orchestrator/internal/controlplane"
	"github.com/ckguru/orchestrator/internal/http/response"
)

type MLHandler struct {
	cp *controlplane.Service
}

func NewMLHandler(cp *controlplane.Service) *MLHandler {
	return &MLHandler{cp: cp}
}

// POST /ml/train
func (h *MLHandler) Train(c *gin.Context) {
	var req controlplane.TrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	job, err := h.cp.SubmitTraining(c.Request.Context(), req)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	respondSubmitted(c, job.ID)
}

// GET /ml/train/:job_id
func (h *MLHandler) GetTrain(c *gin.Context) {
	h.getJob(c)
}

// POST /ml/search
func (h *MLHandler) Search(c *gin.Context) {
	var req controlplane.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	job, err := h.cp.SubmitSearch(c.Request.Context(), req)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	respondSubmitted(c, job.ID)
}

// GET /ml/search/:job_id
func (h *MLHandler) GetSearch(c *gin.Context) {
	h.getJob(c)
}

// POST /ml/infer
func (h *MLHandler) Infer(c *gin.Context) {
	var req controlplane.InferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	job, err := h.cp.SubmitInference(c.Request.Context(), req)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if req.Explain {
		if _, err := h.cp.SubmitExplanationOrchestration(c.Request.Context(), job.ID); err != nil {
			// Inference was already queued -- explanation fan-out is a
			// best-effort add-on the caller can retry once inference
			// succeeds, so don't fail the response for it.
			_ = err
		}
	}
	respondSubmitted(c, job.ID)
}

// GET /ml/infer/:job_id
func (h *MLHandler) GetInfer(c *gin.Context) {
	h.getJob(c)
}

func (h *MLHandler) getJob(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.cp.GetJob(c.Request.Context(), jobID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	body := gin.H{"job": job}
	if model, ok := h.cp.ModelForJob(c.Request.Context(), job); ok {
		body["model"] = model
	}
	c.JSON(http.StatusOK, body)
}

func respondSubmitted(c *gin.Context, jobID int64) {
	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  jobID,
		"task_id": strconv.FormatInt(jobID, 10),
	})
}
