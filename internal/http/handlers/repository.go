package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ckguru/orchestrator/internal/controlplane"
	"github.com/ckguru/orchestrator/internal/http/response"
)

type RepositoryHandler struct {
	cp *controlplane.Service
}

func NewRepositoryHandler(cp *controlplane.Service) *RepositoryHandler {
	return &RepositoryHandler{cp: cp}
}

// POST /repositories/:id/commits/:hash/ingest
func (h *RepositoryHandler) IngestCommit(c *gin.Context) {
	repoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_repository_id", err)
		return
	}
	hash := c.Param("hash")

	job, err := h.cp.SubmitCommitIngestion(c.Request.Context(), repoID, hash)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": strconv.FormatInt(job.ID, 10)})
}

// GET /repositories/:id/commits/:hash
func (h *RepositoryHandler) GetCommit(c *gin.Context) {
	repoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_repository_id", err)
		return
	}
	hash := c.Param("hash")

	details, guru, ck, err := h.cp.GetCommit(c.Request.Context(), repoID, hash)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if details == nil {
		c.JSON(http.StatusOK, gin.H{"ingestion_status": "not_ingested"})
		return
	}
	if details.IngestionStatus != "complete" {
		c.JSON(http.StatusAccepted, gin.H{
			"ingestion_status": details.IngestionStatus,
			"commit_hash":      details.CommitHash,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ingestion_status":   details.IngestionStatus,
		"commit_hash":        details.CommitHash,
		"file_diffs":         details.FileDiffs,
		"commit_guru_metric": guru,
		"ck_metrics":         ck,
	})
}

// POST /repositories/:id/datasets
func (h *RepositoryHandler) GenerateDataset(c *gin.Context) {
	repoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_repository_id", err)
		return
	}

	var req controlplane.GenerateDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	ds, job, err := h.cp.SubmitDatasetGeneration(c.Request.Context(), repoID, req)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"dataset_id": ds.ID,
		"task_id":    strconv.FormatInt(job.ID, 10),
	})
}
