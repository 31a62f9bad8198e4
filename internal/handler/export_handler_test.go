package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/csit-edu/timetable-api/internal/dto"
	"github.com/csit-edu/timetable-api/internal/middleware"
	"github.com/csit-edu/timetable-api/internal/models"
	"github.com/csit-edu/timetable-api/internal/service"
	appErrors "github.com/csit-edu/timetable-api/pkg/errors"
)

type exportServiceMock struct {
	createResp  *dto.ExportJobResponse
	createErr   error
	statusResp  *dto.ExportStatusResponse
	statusErr   error
	download    *service.ExportDownload
	downloadErr error
}

func (m *exportServiceMock) CreateJob(ctx context.Context, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error) {
	return m.createResp, m.createErr
}

func (m *exportServiceMock) GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*dto.ExportStatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *exportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	return m.download, m.downloadErr
}

func TestExportHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{
		createResp: &dto.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued, Progress: 0},
	}
	handler := NewExportHandler(mockSvc)

	payload, _ := json.Marshal(dto.ExportRequest{ArchiveID: "arch-1", Format: "csv"})
	c, w := newGinContext(http.MethodPost, "/exports", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Create(c)
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestExportHandlerCreateUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&exportServiceMock{})

	payload, _ := json.Marshal(dto.ExportRequest{ArchiveID: "arch-1", Format: "csv"})
	c, w := newGinContext(http.MethodPost, "/exports", payload)

	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExportHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{
		statusResp: &dto.ExportStatusResponse{ID: "job-1", Status: models.ExportStatusFinished, Progress: 100},
	}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	file, err := os.CreateTemp("", "export*.csv")
	require.NoError(t, err)
	defer os.Remove(file.Name())
	_, _ = file.WriteString("data")
	_, _ = file.Seek(0, 0)

	mockSvc := &exportServiceMock{
		download: &service.ExportDownload{
			File:      file,
			Filename:  "timetable.csv",
			Format:    models.ExportFormatCSV,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/download/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), "timetable.csv")
}

func TestExportHandlerDownloadRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{
		downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token"),
	}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/download/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}

	handler.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
