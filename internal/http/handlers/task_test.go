package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

func TestTaskHandlerGetAndRevoke(t *testing.T) {
	cp := newTestControlPlane(t)
	ctx := dbctx.Background(context.Background())

	repoID := uuid.New()
	job, err := cp.Jobs.Create(ctx, &domainjobs.Job{
		Kind:         domainjobs.KindCommitIngestion,
		Status:       domainjobs.StatusPending,
		RepositoryID: &repoID,
	})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
	taskID := strconv.FormatInt(job.ID, 10)

	h := NewTaskHandler(cp)
	r := gin.New()
	r.GET("/tasks/:task_id", h.GetTask)
	r.POST("/tasks/:task_id/revoke", h.RevokeTask)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tasks/"+taskID, nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GetTask: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var status struct {
		JobID  int64  `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.JobID != job.ID || status.Status != string(domainjobs.StatusPending) {
		t.Fatalf("unexpected status: %+v", status)
	}

	revokeRec := httptest.NewRecorder()
	revokeReq := httptest.NewRequest(http.MethodPost, "/tasks/"+taskID+"/revoke?terminate=true", nil)
	r.ServeHTTP(revokeRec, revokeReq)
	if revokeRec.Code != http.StatusAccepted {
		t.Fatalf("RevokeTask: expected 202, got %d body=%s", revokeRec.Code, revokeRec.Body.String())
	}

	reloaded, err := cp.Jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.Status != domainjobs.StatusRevoked {
		t.Fatalf("expected revoked, got %s", reloaded.Status)
	}
}

func TestTaskHandlerUnknownTask(t *testing.T) {
	cp := newTestControlPlane(t)
	h := NewTaskHandler(cp)
	r := gin.New()
	r.GET("/tasks/:task_id", h.GetTask)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tasks/nonexistent", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rec.Code, rec.Body.String())
	}
}
