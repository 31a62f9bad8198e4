package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/csit-edu/timetable-api/internal/dto"
	"github.com/csit-edu/timetable-api/internal/models"
	"github.com/csit-edu/timetable-api/internal/repository"
	appErrors "github.com/csit-edu/timetable-api/pkg/errors"
	"github.com/csit-edu/timetable-api/pkg/jobs"
)

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type exportJobRepoStub struct {
	jobs map[string]*models.ExportJob
}

func newExportJobRepoStub() *exportJobRepoStub {
	return &exportJobRepoStub{jobs: map[string]*models.ExportJob{}}
}

func (r *exportJobRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *exportJobRepoStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (r *exportJobRepoStub) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *exportJobRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var queued []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *exportJobRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	return nil, nil
}

func newExportJobServiceForTest(t *testing.T) (*ExportJobService, *exportJobRepoStub, *queueStub, *ExportService) {
	t.Helper()
	repo := newExportJobRepoStub()
	queue := &queueStub{}
	exportSvc, _, archives := newExportServiceForTest(t)
	svc := NewExportJobService(repo, archives, queue, exportSvc, nil, zap.NewNop(), ExportJobConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
		MaxRetries:      3,
	})
	return svc, repo, queue, exportSvc
}

func TestExportJobServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)
	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		ArchiveID: "arch-1",
		Format:    "csv",
	}, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeScheduleExport, queue.jobs[0].Type)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)

	stored := repo.jobs[resp.ID]
	require.NotNil(t, stored)
	assert.Equal(t, models.ExportFormatCSV, stored.Params.Format)
	assert.Equal(t, "Fall 2026", stored.Params.Title)
}

func TestExportJobServiceCreateJobValidation(t *testing.T) {
	svc, _, _, _ := newExportJobServiceForTest(t)
	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		ArchiveID: "arch-1",
		Format:    "xlsx",
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportJobServiceCreateJobUnknownArchive(t *testing.T) {
	svc, _, _, _ := newExportJobServiceForTest(t)
	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		ArchiveID: "missing",
		Format:    "csv",
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportJobServiceCreateJobEnqueueFailure(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)
	queue.err = errors.New("queue closed")

	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		ArchiveID: "arch-1",
		Format:    "csv",
	}, "user-1")
	require.Error(t, err)

	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestExportJobServiceGetStatusOwnership(t *testing.T) {
	svc, repo, _, _ := newExportJobServiceForTest(t)
	job := &models.ExportJob{
		ID:        "job-1",
		ArchiveID: "arch-1",
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		Status:    models.ExportStatusFinished,
		Progress:  100,
		CreatedBy: "user-1",
	}
	repo.jobs[job.ID] = job

	resp, err := svc.GetStatus(context.Background(), job.ID, "user-1", models.RoleViewer)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, resp.Status)

	_, err = svc.GetStatus(context.Background(), job.ID, "someone-else", models.RoleViewer)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.GetStatus(context.Background(), job.ID, "someone-else", models.RoleAdmin)
	require.NoError(t, err)
}

func TestExportJobServiceResolveDownload(t *testing.T) {
	svc, repo, _, exportSvc := newExportJobServiceForTest(t)
	job := &models.ExportJob{
		ID:        "job-download",
		ArchiveID: "arch-1",
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV, Title: "Fall 2026"},
		Status:    models.ExportStatusFinished,
		Progress:  100,
		CreatedBy: "user-1",
	}
	repo.jobs[job.ID] = job
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL

	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(result.RelativePath), download.Filename)
	assert.Equal(t, models.ExportFormatCSV, download.Format)
	download.File.Close()
}

func TestExportJobServiceResolveDownloadNotReady(t *testing.T) {
	svc, repo, _, exportSvc := newExportJobServiceForTest(t)
	job := &models.ExportJob{
		ID:        "job-pending",
		ArchiveID: "arch-1",
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		Status:    models.ExportStatusProcessing,
		CreatedBy: "user-1",
	}
	repo.jobs[job.ID] = job
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL

	_, err = svc.ResolveDownload(context.Background(), result.Token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportJobServiceRecoverPendingJobs(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)
	repo.jobs["q1"] = &models.ExportJob{ID: "q1", ArchiveID: "arch-1", Status: models.ExportStatusQueued}
	repo.jobs["q2"] = &models.ExportJob{ID: "q2", ArchiveID: "arch-1", Status: models.ExportStatusQueued}
	repo.jobs["f1"] = &models.ExportJob{ID: "f1", ArchiveID: "arch-1", Status: models.ExportStatusFinished}

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.jobs, 2)
}

type exportGenStub struct {
	result *ExportResult
	err    error
}

func (e exportGenStub) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func TestExportWorkerHandleSuccess(t *testing.T) {
	repo := newExportJobRepoStub()
	repo.jobs["job-1"] = &models.ExportJob{
		ID:        "job-1",
		ArchiveID: "arch-1",
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		Status:    models.ExportStatusQueued,
		CreatedBy: "user-1",
	}
	exporter := exportGenStub{result: &ExportResult{URL: "/api/v1/exports/download/token"}}
	worker := NewExportWorker(repo, exporter, nil, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.NoError(t, err)
	require.Equal(t, models.ExportStatusFinished, repo.jobs["job-1"].Status)
	require.Equal(t, 100, repo.jobs["job-1"].Progress)
	require.NotNil(t, repo.jobs["job-1"].ResultURL)
}

func TestExportWorkerHandleFailureRequeues(t *testing.T) {
	repo := newExportJobRepoStub()
	repo.jobs["job-1"] = &models.ExportJob{
		ID:        "job-1",
		ArchiveID: "arch-1",
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		Status:    models.ExportStatusQueued,
		CreatedBy: "user-1",
	}
	exporter := exportGenStub{err: errors.New("boom")}
	worker := NewExportWorker(repo, exporter, nil, 2, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	require.Equal(t, models.ExportStatusQueued, repo.jobs["job-1"].Status)
	require.NotNil(t, repo.jobs["job-1"].ErrorMessage)
}

func TestExportWorkerHandleFailureExhaustsRetries(t *testing.T) {
	repo := newExportJobRepoStub()
	repo.jobs["job-1"] = &models.ExportJob{
		ID:        "job-1",
		ArchiveID: "arch-1",
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		Status:    models.ExportStatusQueued,
		CreatedBy: "user-1",
	}
	exporter := exportGenStub{err: errors.New("boom")}
	worker := NewExportWorker(repo, exporter, nil, 2, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	require.Equal(t, models.ExportStatusFailed, repo.jobs["job-1"].Status)
}
