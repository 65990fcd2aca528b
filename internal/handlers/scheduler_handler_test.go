package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/scheduler"
)

type mockCycleRunner struct {
	timing     scheduler.Timing
	runCycleFn func(ctx context.Context) (*scheduler.CycleResult, error)
}

func (m *mockCycleRunner) Timing(_ time.Time) scheduler.Timing {
	return m.timing
}

func (m *mockCycleRunner) RunCycle(ctx context.Context) (*scheduler.CycleResult, error) {
	if m.runCycleFn != nil {
		return m.runCycleFn(ctx)
	}
	return &scheduler.CycleResult{Trigger: scheduler.TriggerManual}, nil
}

var _ CycleRunner = (*scheduler.Scheduler)(nil)

func setupSchedulerRouter(handler *SchedulerHandler) *gin.Engine {
	r := gin.New()
	r.GET("/next-update", handler.NextUpdate)
	r.POST("/admin/update-cycle", handler.TriggerCycle)
	return r
}

func TestSchedulerHandler_NextUpdate(t *testing.T) {
	last := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	runner := &mockCycleRunner{timing: scheduler.Timing{
		LastUpdate:         last,
		NextUpdate:         last.Add(10 * time.Minute),
		SecondsUntilUpdate: 420,
	}}
	r := setupSchedulerRouter(NewSchedulerHandler(runner, &mockAuditService{}))

	rec := doRequest(r, http.MethodGet, "/next-update", "")

	assertStatus(t, rec, http.StatusOK)
	body := parseJSON(t, rec)
	if body["secondsUntilUpdate"] != float64(420) {
		t.Errorf("unexpected countdown %v", body)
	}
	if body["nextUpdate"] != "2024-05-01T10:10:00Z" {
		t.Errorf("unexpected nextUpdate %v", body["nextUpdate"])
	}
}

func TestSchedulerHandler_TriggerCycle(t *testing.T) {
	t.Run("runs a cycle and audits it", func(t *testing.T) {
		audit := &mockAuditService{}
		runner := &mockCycleRunner{
			runCycleFn: func(context.Context) (*scheduler.CycleResult, error) {
				return &scheduler.CycleResult{Trigger: scheduler.TriggerManual, AssetsUpdated: 9, AccountsValued: 2}, nil
			},
		}
		r := setupSchedulerRouter(NewSchedulerHandler(runner, audit))

		rec := doRequest(r, http.MethodPost, "/admin/update-cycle", "")

		assertStatus(t, rec, http.StatusOK)
		body := parseJSON(t, rec)
		if body["message"] != "All user portfolios updated successfully" {
			t.Errorf("unexpected message %v", body["message"])
		}
		result, ok := body["result"].(map[string]interface{})
		if !ok || result["assetsUpdated"] != float64(9) || result["trigger"] != "manual" {
			t.Errorf("unexpected result %v", body["result"])
		}
		if got := audit.actions(); len(got) != 1 || got[0] != "RUN_UPDATE_CYCLE" {
			t.Errorf("expected RUN_UPDATE_CYCLE audit entry, got %v", got)
		}
	})

	t.Run("returns 409 while a cycle is running", func(t *testing.T) {
		runner := &mockCycleRunner{
			runCycleFn: func(context.Context) (*scheduler.CycleResult, error) {
				return nil, apperrors.ErrCycleInProgress
			},
		}
		r := setupSchedulerRouter(NewSchedulerHandler(runner, &mockAuditService{}))

		rec := doRequest(r, http.MethodPost, "/admin/update-cycle", "")

		assertStatus(t, rec, http.StatusConflict)
		assertErrorCode(t, parseJSON(t, rec), "CYCLE_IN_PROGRESS")
	})

	t.Run("cycle context is not cancelled with the request", func(t *testing.T) {
		runner := &mockCycleRunner{
			runCycleFn: func(ctx context.Context) (*scheduler.CycleResult, error) {
				if ctx.Done() != nil {
					return nil, errors.New("cycle context must not carry request cancellation")
				}
				return &scheduler.CycleResult{}, nil
			},
		}
		r := setupSchedulerRouter(NewSchedulerHandler(runner, &mockAuditService{}))

		rec := doRequest(r, http.MethodPost, "/admin/update-cycle", "")

		assertStatus(t, rec, http.StatusOK)
	})
}
