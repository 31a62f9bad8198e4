package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/csit-edu/timetable-api/internal/dto"
	"github.com/csit-edu/timetable-api/internal/models"
	"github.com/csit-edu/timetable-api/internal/solver"
	appErrors "github.com/csit-edu/timetable-api/pkg/errors"
	"github.com/csit-edu/timetable-api/pkg/export"
	"github.com/csit-edu/timetable-api/pkg/jobs"
)

type datasetStub struct {
	dataset *models.Dataset
	err     error
}

func (d datasetStub) Get(ctx context.Context, id string) (*models.Dataset, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.dataset, nil
}

type archiveStoreStub struct {
	archives    map[string]*models.ScheduleArchive
	assignments map[string][]models.ScheduleAssignment
	createErr   error
}

func newArchiveStoreStub() *archiveStoreStub {
	return &archiveStoreStub{
		archives:    map[string]*models.ScheduleArchive{},
		assignments: map[string][]models.ScheduleAssignment{},
	}
}

func (s *archiveStoreStub) Create(ctx context.Context, archive *models.ScheduleArchive, assignments []models.ScheduleAssignment) error {
	if s.createErr != nil {
		return s.createErr
	}
	if archive.ID == "" {
		archive.ID = fmt.Sprintf("arch-%d", len(s.archives)+1)
	}
	if archive.CreatedAt.IsZero() {
		archive.CreatedAt = time.Now().UTC()
	}
	stored := *archive
	s.archives[archive.ID] = &stored
	rows := make([]models.ScheduleAssignment, len(assignments))
	copy(rows, assignments)
	for i := range rows {
		rows[i].ArchiveID = archive.ID
	}
	s.assignments[archive.ID] = rows
	return nil
}

func (s *archiveStoreStub) GetByID(ctx context.Context, id string) (*models.ScheduleArchive, error) {
	archive, ok := s.archives[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return archive, nil
}

func (s *archiveStoreStub) ListAssignments(ctx context.Context, archiveID string) ([]models.ScheduleAssignment, error) {
	return s.assignments[archiveID], nil
}

func (s *archiveStoreStub) List(ctx context.Context, filter models.ArchiveFilter) ([]models.ScheduleArchive, int, error) {
	out := make([]models.ScheduleArchive, 0, len(s.archives))
	for _, archive := range s.archives {
		out = append(out, *archive)
	}
	return out, len(out), nil
}

func (s *archiveStoreStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.archives[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.archives, id)
	delete(s.assignments, id)
	return nil
}

func timetableFixtureDataset() *models.Dataset {
	return &models.Dataset{
		ID:   "ds-1",
		Name: "fall-2026",
		Courses: []models.Course{
			{ID: "CSC101", Name: "Intro to Computing", Type: "Lecture", Year: 1},
			{ID: "MTH110", Name: "Calculus", Type: "Lecture", Year: 1},
		},
		Instructors: []models.Instructor{
			{ID: "P1", Name: "Dr. Hana", Role: "Professor", Qualified: []string{"CSC101"}},
			{ID: "P2", Name: "Dr. Imad", Role: "Professor", Qualified: []string{"MTH110"}},
		},
		Rooms: []models.Room{
			{ID: "R101", Type: "Lecture", Capacity: 120},
			{ID: "R102", Type: "Lecture", Capacity: 80},
		},
		TimeSlots: []models.TimeSlot{
			{ID: "Sunday@9:00 AM", Day: "Sunday", Start: "9:00 AM", End: "10:30 AM", Duration: 90},
			{ID: "Monday@9:00 AM", Day: "Monday", Start: "9:00 AM", End: "10:30 AM", Duration: 90},
			{ID: "Tuesday@9:00 AM", Day: "Tuesday", Start: "9:00 AM", End: "10:30 AM", Duration: 90},
		},
		Sections:   []models.Section{{ID: "1/1", Capacity: 40}, {ID: "1/2", Capacity: 40}},
		UploadedBy: "user-1",
		CreatedAt:  time.Now().UTC(),
	}
}

func newTimetableServiceForTest(t *testing.T, dataset *models.Dataset) (*TimetableService, *archiveStoreStub, *queueStub) {
	t.Helper()
	archives := newArchiveStoreStub()
	queue := &queueStub{}
	svc := NewTimetableService(
		datasetStub{dataset: dataset},
		archives,
		queue,
		nil,
		nil,
		export.NewCSVExporter(),
		export.NewPDFExporter(),
		nil,
		zap.NewNop(),
		TimetableConfig{DefaultTimeBudget: 5 * time.Second},
	)
	return svc, archives, queue
}

func TestTimetableServiceGenerateSolves(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t, timetableFixtureDataset())

	detail, err := svc.Generate(context.Background(), &dto.GenerateScheduleRequest{DatasetID: "ds-1"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, string(solver.StateSolved), detail.State)
	assert.InDelta(t, 1.0, detail.Completion, 1e-9)
	assert.Equal(t, 2, detail.Groups)
	assert.Equal(t, 2, detail.Assigned)
	assert.Len(t, detail.Sections, 2)
	assert.False(t, detail.AutoRelaxed)

	got, err := svc.GetRun(context.Background(), detail.ID)
	require.NoError(t, err)
	assert.Equal(t, detail.State, got.State)
	assert.Len(t, got.Assignments, 2)
}

func TestTimetableServiceGenerateValidation(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t, timetableFixtureDataset())

	_, err := svc.Generate(context.Background(), &dto.GenerateScheduleRequest{}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceGenerateUnknownDataset(t *testing.T) {
	archives := newArchiveStoreStub()
	svc := NewTimetableService(
		datasetStub{err: appErrors.Clone(appErrors.ErrNotFound, "dataset not found")},
		archives, &queueStub{}, nil, nil,
		export.NewCSVExporter(), export.NewPDFExporter(),
		nil, zap.NewNop(), TimetableConfig{},
	)

	_, err := svc.Generate(context.Background(), &dto.GenerateScheduleRequest{DatasetID: "missing"}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceNegativeBudgetTimesOut(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t, timetableFixtureDataset())

	probe := -1.0
	detail, err := svc.Generate(context.Background(), &dto.GenerateScheduleRequest{
		DatasetID:         "ds-1",
		TimeBudgetSeconds: &probe,
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, string(solver.StateTimedOut), detail.State)
	assert.Empty(t, detail.Assignments)
}

func TestTimetableServiceAutoRelaxUpgradesOutcome(t *testing.T) {
	dataset := timetableFixtureDataset()
	// Nobody is qualified for CSC101, so a strict run sets its group aside.
	dataset.Instructors = []models.Instructor{
		{ID: "P2", Name: "Dr. Imad", Role: "Professor", Qualified: []string{"MTH110"}},
	}
	svc, _, _ := newTimetableServiceForTest(t, dataset)

	strict, err := svc.Generate(context.Background(), &dto.GenerateScheduleRequest{DatasetID: "ds-1"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, string(solver.StatePartiallySolved), strict.State)

	relaxed, err := svc.Generate(context.Background(), &dto.GenerateScheduleRequest{
		DatasetID: "ds-1",
		AutoRelax: true,
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, string(solver.StateSolved), relaxed.State)
	assert.True(t, relaxed.AutoRelaxed)
	assert.InDelta(t, 1.0, relaxed.Completion, 1e-9)
}

func TestTimetableServiceGenerateAsyncLifecycle(t *testing.T) {
	svc, _, queue := newTimetableServiceForTest(t, timetableFixtureDataset())

	ack, err := svc.GenerateAsync(context.Background(), &dto.GenerateScheduleRequest{DatasetID: "ds-1"}, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, ack.RunID)
	assert.Equal(t, string(solver.StateUnsolved), ack.State)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeScheduleGeneration, queue.jobs[0].Type)

	queued, err := svc.GetRun(context.Background(), ack.RunID)
	require.NoError(t, err)
	assert.Equal(t, string(solver.StateUnsolved), queued.State)
	assert.Empty(t, queued.Assignments)

	require.NoError(t, svc.ProcessRun(context.Background(), jobs.Job{ID: ack.RunID, Type: JobTypeScheduleGeneration}))

	done, err := svc.GetRun(context.Background(), ack.RunID)
	require.NoError(t, err)
	assert.Equal(t, string(solver.StateSolved), done.State)
	assert.Len(t, done.Assignments, 2)
}

func TestTimetableServiceGenerateAsyncEnqueueFailure(t *testing.T) {
	svc, _, queue := newTimetableServiceForTest(t, timetableFixtureDataset())
	queue.err = fmt.Errorf("queue closed")

	_, err := svc.GenerateAsync(context.Background(), &dto.GenerateScheduleRequest{DatasetID: "ds-1"}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceProcessRunRecordsStructuralFailure(t *testing.T) {
	dataset := timetableFixtureDataset()
	dataset.Courses = nil
	svc, _, _ := newTimetableServiceForTest(t, dataset)

	ack, err := svc.GenerateAsync(context.Background(), &dto.GenerateScheduleRequest{DatasetID: "ds-1"}, "user-1")
	require.NoError(t, err)

	// Structural failures are terminal, not retried.
	require.NoError(t, svc.ProcessRun(context.Background(), jobs.Job{ID: ack.RunID}))

	_, err = svc.GetRun(context.Background(), ack.RunID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceExportRunCSV(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t, timetableFixtureDataset())
	detail, err := svc.Generate(context.Background(), &dto.GenerateScheduleRequest{DatasetID: "ds-1"}, "user-1")
	require.NoError(t, err)

	doc, err := svc.ExportRun(context.Background(), detail.ID, models.ExportFormatCSV, "")
	require.NoError(t, err)
	assert.Contains(t, doc.Filename, ".csv")
	assert.Equal(t, "text/csv", doc.ContentType)
	assert.Contains(t, string(doc.Data), "CSC101")

	_, err = svc.ExportRun(context.Background(), detail.ID, models.ExportFormatCSV, "9/9")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceExportRunRequiresFinishedRun(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t, timetableFixtureDataset())
	ack, err := svc.GenerateAsync(context.Background(), &dto.GenerateScheduleRequest{DatasetID: "ds-1"}, "user-1")
	require.NoError(t, err)

	_, err = svc.ExportRun(context.Background(), ack.RunID, models.ExportFormatCSV, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRunNotFinished.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceArchiveRun(t *testing.T) {
	svc, archives, _ := newTimetableServiceForTest(t, timetableFixtureDataset())
	detail, err := svc.Generate(context.Background(), &dto.GenerateScheduleRequest{DatasetID: "ds-1"}, "user-1")
	require.NoError(t, err)

	archive, err := svc.Archive(context.Background(), &dto.ArchiveScheduleRequest{
		RunID: detail.ID,
		Name:  "Fall 2026 final",
	}, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, archive.ID)
	assert.Equal(t, "fall-2026", archive.DatasetName)
	assert.Equal(t, string(solver.StateSolved), archive.State)
	assert.Equal(t, 2, archive.Groups)
	assert.Equal(t, 2, archive.Assigned)
	assert.False(t, archive.Permissive)

	rows := archives.assignments[archive.ID]
	require.Len(t, rows, 2)
	assert.Equal(t, pq.StringArray{"1/1", "1/2"}, rows[0].SectionIDs)
	assert.NotEmpty(t, rows[0].InstructorName)
	assert.NotEmpty(t, rows[0].Day)
}

func TestTimetableServiceArchiveRequiresFinishedRun(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t, timetableFixtureDataset())
	ack, err := svc.GenerateAsync(context.Background(), &dto.GenerateScheduleRequest{DatasetID: "ds-1"}, "user-1")
	require.NoError(t, err)

	_, err = svc.Archive(context.Background(), &dto.ArchiveScheduleRequest{
		RunID: ack.RunID,
		Name:  "too early",
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRunNotFinished.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceGetArchived(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t, timetableFixtureDataset())
	detail, err := svc.Generate(context.Background(), &dto.GenerateScheduleRequest{DatasetID: "ds-1"}, "user-1")
	require.NoError(t, err)
	archive, err := svc.Archive(context.Background(), &dto.ArchiveScheduleRequest{RunID: detail.ID, Name: "Fall 2026"}, "user-1")
	require.NoError(t, err)

	got, cached, err := svc.GetArchived(context.Background(), archive.ID)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, archive.ID, got.ID)
	assert.Len(t, got.Assignments, 2)

	_, _, err = svc.GetArchived(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceDeleteArchivedOwnership(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t, timetableFixtureDataset())
	detail, err := svc.Generate(context.Background(), &dto.GenerateScheduleRequest{DatasetID: "ds-1"}, "user-1")
	require.NoError(t, err)
	archive, err := svc.Archive(context.Background(), &dto.ArchiveScheduleRequest{RunID: detail.ID, Name: "Fall 2026"}, "user-1")
	require.NoError(t, err)

	err = svc.DeleteArchived(context.Background(), archive.ID, "someone-else", models.RoleScheduler)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.DeleteArchived(context.Background(), archive.ID, "user-1", models.RoleScheduler))

	err = svc.DeleteArchived(context.Background(), archive.ID, "user-1", models.RoleAdmin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
