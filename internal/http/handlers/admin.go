package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/capacity-checker/internal/http/response"
	"github.com/yungbote/capacity-checker/internal/jobs/runtime"
	errs "github.com/yungbote/capacity-checker/internal/pkg/errors"
	"github.com/yungbote/capacity-checker/internal/search/location"
	"github.com/yungbote/capacity-checker/internal/services"
)

type AdminHandler struct {
	engine services.EngineService
}

func NewAdminHandler(engine services.EngineService) *AdminHandler {
	return &AdminHandler{engine: engine}
}

// POST /api/admin/rebuild/company-index?force=&max_batches=&timeout=
func (h *AdminHandler) RebuildCompanyIndex(c *gin.Context) {
	budget, err := budgetFromQuery(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))
	stats, err := h.engine.RebuildIndex(c.Request.Context(), force, budget)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	respondJob(c, stats.Completed || stats.Skipped, gin.H{"stats": stats})
}

// POST /api/admin/rebuild/location-mapping?mode=full|incremental&min_components=&max_batches=&timeout=
func (h *AdminHandler) RebuildLocationMapping(c *gin.Context) {
	budget, err := budgetFromQuery(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	mode := strings.ToLower(c.DefaultQuery("mode", location.ModeIncremental))
	minComponents, _ := strconv.Atoi(c.DefaultQuery("min_components", "1"))
	stats, err := h.engine.RebuildLocationMapping(c.Request.Context(), mode, minComponents, budget)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	respondJob(c, stats.Completed, gin.H{"stats": stats})
}

// POST /api/admin/crawl?max_batches=&timeout=
func (h *AdminHandler) Crawl(c *gin.Context) {
	budget, err := budgetFromQuery(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	stats, err := h.engine.Crawl(c.Request.Context(), budget)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	respondJob(c, stats.Completed, gin.H{"stats": stats})
}

// POST /api/admin/backfill/capacity?max_batches=&timeout=
func (h *AdminHandler) BackfillCapacity(c *gin.Context) {
	budget, err := budgetFromQuery(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	stats, err := h.engine.BackfillCapacity(c.Request.Context(), budget)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	respondJob(c, stats.Completed, gin.H{"stats": stats})
}

// GET /api/admin/jobs/:job/runs?limit=
func (h *AdminHandler) JobRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.engine.JobRuns(c.Request.Context(), c.Param("job"), limit)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"runs": runs})
}

// respondJob answers 200 for a finished run and 202 for one paused by its budget.
func respondJob(c *gin.Context, finished bool, payload gin.H) {
	if finished {
		c.JSON(http.StatusOK, payload)
		return
	}
	c.JSON(http.StatusAccepted, payload)
}

func budgetFromQuery(c *gin.Context) (runtime.Budget, error) {
	var b runtime.Budget
	if raw := strings.TrimSpace(c.Query("max_batches")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return b, fmt.Errorf("%w: max_batches must be a non-negative integer", errs.ErrInvalidArgument)
		}
		b.MaxBatches = n
	}
	if raw := strings.TrimSpace(c.Query("timeout")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return b, fmt.Errorf("%w: timeout must be a duration like 30s", errs.ErrInvalidArgument)
		}
		b = b.WithTimeout(d)
	}
	return b, nil
}
