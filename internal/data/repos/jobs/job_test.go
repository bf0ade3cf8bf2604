package jobs

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/ckguru/orchestrator/internal/data/repos/testutil"
	domainjobs "github.com/ckguru/orchestrator/internal/domain/jobs"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

func TestJobRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	repo := NewJobRepo(db, testutil.Logger(t))

	now := time.Now().UTC()

	pending := &domainjobs.Job{
		Kind:      domainjobs.KindCommitIngestion,
		Status:    domainjobs.StatusPending,
		Config:    datatypes.JSON([]byte("{}")),
		CreatedAt: now.Add(-3 * time.Hour),
		UpdatedAt: now.Add(-3 * time.Hour),
	}
	staleRunning := &domainjobs.Job{
		Kind:      domainjobs.KindTraining,
		Status:    domainjobs.StatusRunning,
		Config:    datatypes.JSON([]byte("{}")),
		StartedAt: ptrTime(now.Add(-10 * time.Hour)),
		CreatedAt: now.Add(-1 * time.Hour),
		UpdatedAt: now.Add(-1 * time.Hour),
	}

	for _, j := range []*domainjobs.Job{pending, staleRunning} {
		if _, err := repo.Create(dbc, j); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	if rows, err := repo.GetByIDs(dbc, []int64{pending.ID, staleRunning.ID}); err != nil || len(rows) != 2 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}

	// ClaimNextPending should walk the runnable set in created_at ASC order.
	claim1, err := repo.ClaimNextPending(dbc, 1*time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextPending #1: %v", err)
	}
	if claim1 == nil || claim1.ID != pending.ID {
		t.Fatalf("ClaimNextPending #1: expected %v got %v", pending.ID, claim1)
	}

	claim2, err := repo.ClaimNextPending(dbc, 1*time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextPending #2: %v", err)
	}
	if claim2 == nil || claim2.ID != staleRunning.ID {
		t.Fatalf("ClaimNextPending #2: expected %v got %v", staleRunning.ID, claim2)
	}

	claim3, err := repo.ClaimNextPending(dbc, 1*time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextPending #3: %v", err)
	}
	if claim3 != nil {
		t.Fatalf("ClaimNextPending #3: expected nil, got %v", claim3)
	}

	// TransitionStatus succeeds only while the row still has the
	// expected status -- a second attempt with the same expectation
	// must lose the race.
	ok, err := repo.TransitionStatus(dbc, pending.ID, domainjobs.StatusRunning, map[string]interface{}{
		"status": domainjobs.StatusSuccess,
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if !ok {
		t.Fatalf("TransitionStatus: expected success")
	}

	ok, err = repo.TransitionStatus(dbc, pending.ID, domainjobs.StatusRunning, map[string]interface{}{
		"status": domainjobs.StatusFailed,
	})
	if err != nil {
		t.Fatalf("TransitionStatus (stale expectation): %v", err)
	}
	if ok {
		t.Fatalf("TransitionStatus (stale expectation): expected false, job already left running")
	}

	got, err := repo.GetByID(dbc, pending.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domainjobs.StatusSuccess {
		t.Fatalf("expected status success, got %s", got.Status)
	}

	if err := repo.Heartbeat(dbc, staleRunning.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	if err := repo.UpdateFields(dbc, staleRunning.ID, map[string]interface{}{
		"status_message": "waiting on broker",
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	// XAI fan-out idempotency: GetByXAIPair finds a job already
	// created for the (inference job, xai type) pair.
	xai := &domainjobs.Job{
		Kind:           domainjobs.KindXAIResult,
		Status:         domainjobs.StatusPending,
		Config:         datatypes.JSON([]byte("{}")),
		InferenceJobID: ptrInt64(pending.ID),
		XAIType:        ptrString("shap"),
	}
	if _, err := repo.Create(dbc, xai); err != nil {
		t.Fatalf("Create xai: %v", err)
	}
	found, err := repo.GetByXAIPair(dbc, pending.ID, "shap")
	if err != nil {
		t.Fatalf("GetByXAIPair: %v", err)
	}
	if found.ID != xai.ID {
		t.Fatalf("GetByXAIPair: expected %v got %v", xai.ID, found.ID)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
func ptrInt64(v int64) *int64        { return &v }
func ptrString(s string) *string     { return &s }
