package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	domainregistry "github.com/ckguru/orchestrator/internal/domain/registry"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

func TestRegistryHandlerListsOnlyImplementedEntries(t *testing.T) {
	cp := newTestControlPlane(t)
	ctx := dbctx.Background(context.Background())

	if err := cp.ModelTypeRegistry.Upsert(ctx, &domainregistry.Entry{
		Name: "random_forest", DisplayName: "Random Forest", IsImplemented: true, LastUpdatedBy: "test",
	}); err != nil {
		t.Fatalf("seed random_forest: %v", err)
	}
	if err := cp.ModelTypeRegistry.Upsert(ctx, &domainregistry.Entry{
		Name: "neural_net", DisplayName: "Neural Net", IsImplemented: false, LastUpdatedBy: "test",
	}); err != nil {
		t.Fatalf("seed neural_net: %v", err)
	}

	h := NewRegistryHandler(cp)
	r := gin.New()
	r.GET("/ml/model-types", h.ListModelTypes)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ml/model-types", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var body struct {
		Entries []domainregistry.Entry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Entries) != 1 || body.Entries[0].Name != "random_forest" {
		t.Fatalf("expected only the implemented entry, got %+v", body.Entries)
	}
}
