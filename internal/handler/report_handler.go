package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
	"github.com/prperemyshlev/datahub-healthcheck/internal/dto"
	"github.com/prperemyshlev/datahub-healthcheck/internal/repository"
	"github.com/prperemyshlev/datahub-healthcheck/internal/service"
)

const defaultHistoryLimit = 20

// ReportHandler serves health check reports and run triggers
type ReportHandler struct {
	healthCheck service.HealthCheckService
}

// NewReportHandler creates a new report handler
func NewReportHandler(healthCheck service.HealthCheckService) *ReportHandler {
	return &ReportHandler{
		healthCheck: healthCheck,
	}
}

// GetReport returns the latest run with its full report
// @Summary Latest report
// @Tags report
// @Produce json
// @Success 200 {object} dto.RunResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /report [get]
func (h *ReportHandler) GetReport(c *gin.Context) {
	run, ok := h.latest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.NewRunResponse(run))
}

// GetGroup returns the records of one group of the latest run
// @Summary Latest report for one group
// @Tags report
// @Produce json
// @Param group path string true "flowmanager_report or auth_report"
// @Success 200 {object} dto.GroupResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /report/{group} [get]
func (h *ReportHandler) GetGroup(c *gin.Context) {
	run, ok := h.latest(c)
	if !ok {
		return
	}

	group := c.Param("group")
	records, found := run.Report.Group(group)
	if !found {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "Not found",
			Message: "unknown report group " + strconv.Quote(group),
		})
		return
	}

	c.JSON(http.StatusOK, dto.GroupResponse{Group: group, Records: records})
}

// ListRuns returns run history, newest first
// @Summary Run history
// @Tags runs
// @Produce json
// @Param limit query int false "maximum number of runs"
// @Success 200 {object} dto.RunListResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /runs [get]
func (h *ReportHandler) ListRuns(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Bad request",
				Message: "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	runs, err := h.healthCheck.History(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, service.ErrHistoryDisabled) {
			c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
				Error:   "Service unavailable",
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "failed to list runs",
		})
		return
	}

	resp := dto.RunListResponse{Runs: make([]dto.RunSummary, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, dto.NewRunSummary(run))
	}
	c.JSON(http.StatusOK, resp)
}

// GetRun returns one stored run with its full report
// @Summary Run by id
// @Tags runs
// @Produce json
// @Param id path string true "run id"
// @Success 200 {object} dto.RunResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /runs/{id} [get]
func (h *ReportHandler) GetRun(c *gin.Context) {
	run, err := h.healthCheck.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrHistoryDisabled):
			c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
				Error:   "Service unavailable",
				Message: err.Error(),
			})
		case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrNoReport):
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "Not found",
				Message: "run " + strconv.Quote(c.Param("id")) + " not found",
			})
		default:
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
				Error:   "Internal server error",
				Message: "failed to load run",
			})
		}
		return
	}

	c.JSON(http.StatusOK, dto.NewRunResponse(run))
}

// TriggerRun starts a new run in the background
// @Summary Start a health check run
// @Tags runs
// @Produce json
// @Param X-API-Key header string true "API key"
// @Success 202 {object} dto.RunAcceptedResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /runs [post]
func (h *ReportHandler) TriggerRun(c *gin.Context) {
	if err := h.healthCheck.Trigger(c.Request.Context()); err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			c.JSON(http.StatusConflict, dto.ErrorResponse{
				Error:   "Conflict",
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   "Service unavailable",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.RunAcceptedResponse{Message: "health check run started"})
}

func (h *ReportHandler) latest(c *gin.Context) (*domain.Run, bool) {
	run, err := h.healthCheck.Latest(c.Request.Context())
	if err == nil {
		return run, true
	}

	if errors.Is(err, service.ErrNoReport) || errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "Not found",
			Message: "no health check run has completed yet",
		})
		return nil, false
	}

	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "Internal server error",
		Message: "failed to load report",
	})
	return nil, false
}
