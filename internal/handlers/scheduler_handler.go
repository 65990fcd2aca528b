package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"papertrade/internal/scheduler"
	"papertrade/internal/services"
)

// CycleRunner is the part of the scheduler exposed over HTTP.
type CycleRunner interface {
	Timing(now time.Time) scheduler.Timing
	RunCycle(ctx context.Context) (*scheduler.CycleResult, error)
}

// SchedulerHandler exposes the update countdown and the manual trigger.
type SchedulerHandler struct {
	runner       CycleRunner
	auditService services.AuditServicer
	now          func() time.Time
}

// NewSchedulerHandler creates a new SchedulerHandler.
func NewSchedulerHandler(runner CycleRunner, auditService services.AuditServicer) *SchedulerHandler {
	return &SchedulerHandler{runner: runner, auditService: auditService, now: time.Now}
}

// CycleResponse acknowledges a manual run.
type CycleResponse struct {
	Message string                 `json:"message"`
	Result  *scheduler.CycleResult `json:"result"`
}

// NextUpdate returns the last completion time and the countdown to the next cycle.
// @Summary     Next update
// @Tags        scheduler
// @Produce     json
// @Success     200 {object} scheduler.Timing
// @Router      /next-update [get]
func (h *SchedulerHandler) NextUpdate(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.Timing(h.now()))
}

// TriggerCycle runs an update cycle immediately and waits for it to finish.
// @Summary     Run update cycle now
// @Description Manual trigger. Rejected while a cycle is already running.
// @Tags        admin
// @Produce     json
// @Security    AdminKey
// @Success     200 {object} CycleResponse
// @Failure     401 {object} ErrorResponse "Missing or invalid API key"
// @Failure     409 {object} ErrorResponse "Cycle already running"
// @Failure     503 {object} ErrorResponse "Admin key not configured"
// @Router      /admin/update-cycle [post]
func (h *SchedulerHandler) TriggerCycle(c *gin.Context) {
	// The cycle outlives a disconnected caller.
	ctx := context.WithoutCancel(c.Request.Context())

	result, err := h.runner.RunCycle(ctx)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log("", "RUN_UPDATE_CYCLE", "scheduler", "", c.ClientIP(), map[string]interface{}{
		"assets_updated":  result.AssetsUpdated,
		"accounts_valued": result.AccountsValued,
		"errors":          len(result.Errors),
	})

	c.JSON(http.StatusOK, CycleResponse{
		Message: "All user portfolios updated successfully",
		Result:  result,
	})
}
