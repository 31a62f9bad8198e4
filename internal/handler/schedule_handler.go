package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/csit-edu/timetable-api/internal/dto"
	"github.com/csit-edu/timetable-api/internal/middleware"
	"github.com/csit-edu/timetable-api/internal/models"
	"github.com/csit-edu/timetable-api/internal/service"
	appErrors "github.com/csit-edu/timetable-api/pkg/errors"
	"github.com/csit-edu/timetable-api/pkg/response"
)

type timetableRunner interface {
	Generate(ctx context.Context, req *dto.GenerateScheduleRequest, actorID string) (*dto.ScheduleDetailResponse, error)
	GenerateAsync(ctx context.Context, req *dto.GenerateScheduleRequest, actorID string) (*dto.AsyncRunResponse, error)
	GetRun(ctx context.Context, id string) (*dto.ScheduleDetailResponse, error)
	ExportRun(ctx context.Context, id string, format models.ExportFormat, sectionID string) (*service.RunExport, error)
	Archive(ctx context.Context, req *dto.ArchiveScheduleRequest, actorID string) (*models.ScheduleArchive, error)
	ListArchived(ctx context.Context, filter models.ArchiveFilter) (*dto.ArchiveListResponse, bool, error)
	GetArchived(ctx context.Context, id string) (*dto.ArchiveDetailResponse, bool, error)
	DeleteArchived(ctx context.Context, id, actorID string, role models.UserRole) error
}

// ScheduleHandler manages schedule generation endpoints.
type ScheduleHandler struct {
	service timetableRunner
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc timetableRunner) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// Generate godoc
// @Summary Generate a timetable from a staged dataset
// @Description Runs the constraint solver synchronously and returns the full result.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Generate payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /schedules/generate [post]
func (h *ScheduleHandler) Generate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), &req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GenerateAsync godoc
// @Summary Queue a timetable generation
// @Description Enqueues the solve on the background worker and returns the run ID.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Generate payload"
// @Success 202 {object} response.Envelope
// @Router /schedules/generate/async [post]
func (h *ScheduleHandler) GenerateAsync(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	ack, err := h.service.GenerateAsync(c.Request.Context(), &req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, ack)
}

// Get godoc
// @Summary Get a schedule run
// @Tags Schedules
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// Export godoc
// @Summary Download a finished run as CSV or PDF
// @Tags Schedules
// @Produce octet-stream
// @Param id path string true "Run ID"
// @Param format query string false "csv or pdf" default(csv)
// @Param section query string false "Limit to one section"
// @Success 200 {file} binary
// @Failure 409 {object} response.Envelope
// @Router /schedules/{id}/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	format := models.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))
	doc, err := h.service.ExportRun(c.Request.Context(), c.Param("id"), format, c.Query("section"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", doc.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}

// Archive godoc
// @Summary Persist a finished run
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Run ID"
// @Param payload body dto.ArchiveScheduleRequest true "Archive payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/{id}/archive [post]
func (h *ScheduleHandler) Archive(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ArchiveScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid archive payload"))
		return
	}
	req.RunID = c.Param("id")
	archive, err := h.service.Archive(c.Request.Context(), &req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, archive)
}

// ListArchived godoc
// @Summary List archived schedules
// @Tags Schedules
// @Produce json
// @Param state query string false "Filter by terminal state"
// @Param search query string false "Match name or dataset name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules/archived [get]
func (h *ScheduleHandler) ListArchived(c *gin.Context) {
	var filter models.ArchiveFilter
	filter.State = strings.ToUpper(c.Query("state"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	result, cacheHit, err := h.service.ListArchived(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, result.Items, &result.Pagination, middleware.ExtractMeta(c))
}

// GetArchived godoc
// @Summary Get an archived schedule with its assignments
// @Tags Schedules
// @Produce json
// @Param id path string true "Archive ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/archived/{id} [get]
func (h *ScheduleHandler) GetArchived(c *gin.Context) {
	archive, cacheHit, err := h.service.GetArchived(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, archive, nil, middleware.ExtractMeta(c))
}

// DeleteArchived godoc
// @Summary Delete an archived schedule
// @Description Owners delete their own archives, ADMIN deletes any.
// @Tags Schedules
// @Param id path string true "Archive ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /schedules/archived/{id} [delete]
func (h *ScheduleHandler) DeleteArchived(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.DeleteArchived(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
