package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/csit-edu/timetable-api/internal/models"
	"github.com/csit-edu/timetable-api/internal/service"
	appErrors "github.com/csit-edu/timetable-api/pkg/errors"
	"github.com/csit-edu/timetable-api/pkg/response"
)

type datasetManager interface {
	Upload(ctx context.Context, name, actorID string, files service.DatasetFiles) (*models.DatasetSummary, error)
	Summary(ctx context.Context, id string) (*models.DatasetSummary, error)
	List(ctx context.Context) []models.DatasetSummary
	Delete(ctx context.Context, id string) error
}

// DatasetHandler manages staged scheduling datasets.
type DatasetHandler struct {
	service datasetManager
}

// NewDatasetHandler constructs the handler.
func NewDatasetHandler(svc datasetManager) *DatasetHandler {
	return &DatasetHandler{service: svc}
}

// Upload godoc
// @Summary Upload a scheduling dataset
// @Description Stages five CSV files (courses, instructors, rooms, timeslots, sections) as one dataset.
// @Tags Datasets
// @Accept multipart/form-data
// @Produce json
// @Param name formData string false "Dataset label"
// @Param courses formData file true "courses.csv"
// @Param instructors formData file true "instructors.csv"
// @Param rooms formData file true "rooms.csv"
// @Param timeslots formData file true "timeslots.csv"
// @Param sections formData file true "sections.csv"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /datasets [post]
func (h *DatasetHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var closers []io.Closer
	defer func() {
		for _, cl := range closers {
			cl.Close() //nolint:errcheck
		}
	}()
	files := service.DatasetFiles{
		Courses:     h.formReader(c, "courses", &closers),
		Instructors: h.formReader(c, "instructors", &closers),
		Rooms:       h.formReader(c, "rooms", &closers),
		TimeSlots:   h.formReader(c, "timeslots", &closers),
		Sections:    h.formReader(c, "sections", &closers),
	}

	summary, err := h.service.Upload(c.Request.Context(), c.PostForm("name"), claims.UserID, files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, summary)
}

// List godoc
// @Summary List staged datasets
// @Tags Datasets
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /datasets [get]
func (h *DatasetHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.List(c.Request.Context()), nil)
}

// Get godoc
// @Summary Get dataset summary
// @Tags Datasets
// @Produce json
// @Param id path string true "Dataset ID"
// @Success 200 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /datasets/{id} [get]
func (h *DatasetHandler) Get(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Delete godoc
// @Summary Drop a staged dataset
// @Tags Datasets
// @Param id path string true "Dataset ID"
// @Success 204
// @Router /datasets/{id} [delete]
func (h *DatasetHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// formReader opens one named multipart file. A missing field returns nil so the
// service can report every absent file in a single validation error.
func (h *DatasetHandler) formReader(c *gin.Context, field string, closers *[]io.Closer) io.Reader {
	header, err := c.FormFile(field)
	if err != nil {
		return nil
	}
	file, err := header.Open()
	if err != nil {
		return nil
	}
	*closers = append(*closers, file)
	return file
}
