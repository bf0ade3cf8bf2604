package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ckguru/orchestrator/internal/controlplane"
	"github.com/ckguru/orchestrator/internal/data/repos"
	"github.com/ckguru/orchestrator/internal/http/response"
)

type RegistryHandler struct {
	cp *controlplane.Service
}

func NewRegistryHandler(cp *controlplane.Service) *RegistryHandler {
	return &RegistryHandler{cp: cp}
}

// GET /cleaning-rules
func (h *RegistryHandler) ListCleaningRules(c *gin.Context) {
	h.list(c, h.cp.CleaningRegistry)
}

// GET /feature-selection-algorithms
func (h *RegistryHandler) ListFeatureSelectionAlgorithms(c *gin.Context) {
	h.list(c, h.cp.FeatureSelectionRegistry)
}

// GET /ml/model-types
func (h *RegistryHandler) ListModelTypes(c *gin.Context) {
	h.list(c, h.cp.ModelTypeRegistry)
}

func (h *RegistryHandler) list(c *gin.Context, reg repos.EntryRepo) {
	entries, err := h.cp.ListRegistry(c.Request.Context(), reg)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
