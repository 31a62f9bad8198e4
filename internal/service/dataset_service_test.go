package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/csit-edu/timetable-api/pkg/errors"
)

const (
	coursesCSV = `CourseID,CourseName,Credits,Type,Year,Shared
CSC101,Intro to Computing,3,Lecture,1,no
MTH110,Calculus,3,Lecture,1,no
`
	instructorsCSV = `InstructorID,Name,Role,QualifiedCourses,PreferredDays
P1,Dr. Hana,Professor,"CSC101, MTH110",
P2,Dr. Imad,Professor,MTH110,Monday
`
	roomsCSV = `RoomID,Type,Capacity
R101,Lecture,120
R102,Lecture,80
`
	timeslotsCSV = `Day,StartTime,EndTime,Duration
Sunday,9:00 AM,10:30 AM,90
Monday,9:00 AM,10:30 AM,90
Tuesday,9:00 AM,10:30 AM,90
`
	sectionsCSV = `SectionID,Capacity
1/1,40
1/2,40
`
)

func fixtureDatasetFiles() DatasetFiles {
	return DatasetFiles{
		Courses:     strings.NewReader(coursesCSV),
		Instructors: strings.NewReader(instructorsCSV),
		Rooms:       strings.NewReader(roomsCSV),
		TimeSlots:   strings.NewReader(timeslotsCSV),
		Sections:    strings.NewReader(sectionsCSV),
	}
}

func TestDatasetServiceUploadAndGet(t *testing.T) {
	svc := NewDatasetService(zap.NewNop(), DatasetConfig{TTL: time.Hour})

	summary, err := svc.Upload(context.Background(), "Fall 2026", "user-1", fixtureDatasetFiles())
	require.NoError(t, err)
	require.NotEmpty(t, summary.ID)
	assert.Equal(t, "Fall 2026", summary.Name)
	assert.Equal(t, 2, summary.Courses)
	assert.Equal(t, 2, summary.Instructors)
	assert.Equal(t, 2, summary.Rooms)
	assert.Equal(t, 3, summary.TimeSlots)
	assert.Equal(t, 2, summary.Sections)
	assert.Equal(t, "user-1", summary.UploadedBy)

	dataset, err := svc.Get(context.Background(), summary.ID)
	require.NoError(t, err)
	assert.Len(t, dataset.Courses, 2)
	assert.Equal(t, "CSC101", dataset.Courses[0].ID)
	assert.Equal(t, []string{"CSC101", "MTH110"}, dataset.Instructors[0].Qualified)
}

func TestDatasetServiceUploadDefaultsName(t *testing.T) {
	svc := NewDatasetService(zap.NewNop(), DatasetConfig{})
	summary, err := svc.Upload(context.Background(), "  ", "user-1", fixtureDatasetFiles())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(summary.Name, "dataset-"), "got %q", summary.Name)
}

func TestDatasetServiceUploadMissingFile(t *testing.T) {
	svc := NewDatasetService(zap.NewNop(), DatasetConfig{})
	files := fixtureDatasetFiles()
	files.Rooms = nil
	files.Sections = nil

	_, err := svc.Upload(context.Background(), "ds", "user-1", files)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "rooms")
	assert.Contains(t, appErr.Message, "sections")
}

func TestDatasetServiceUploadRejectsMalformedCSV(t *testing.T) {
	svc := NewDatasetService(zap.NewNop(), DatasetConfig{})
	files := fixtureDatasetFiles()
	files.Courses = strings.NewReader("WrongHeader\nCSC101\n")

	_, err := svc.Upload(context.Background(), "ds", "user-1", files)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "courses file")
}

func TestDatasetServiceUploadRejectsDuplicateIDs(t *testing.T) {
	svc := NewDatasetService(zap.NewNop(), DatasetConfig{})
	files := fixtureDatasetFiles()
	files.Courses = strings.NewReader(`CourseID,CourseName,Type,Year
CSC101,Intro to Computing,Lecture,1
CSC101,Intro to Computing Again,Lecture,1
`)

	_, err := svc.Upload(context.Background(), "ds", "user-1", files)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "duplicate course CSC101")
}

func TestDatasetServiceGetExpired(t *testing.T) {
	svc := NewDatasetService(zap.NewNop(), DatasetConfig{TTL: time.Nanosecond})
	summary, err := svc.Upload(context.Background(), "ds", "user-1", fixtureDatasetFiles())
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)

	_, err = svc.Get(context.Background(), summary.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDatasetExpired.Code, appErrors.FromError(err).Code)

	// The expired entry is gone after the first touch.
	_, err = svc.Get(context.Background(), summary.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDatasetServiceGetUnknown(t *testing.T) {
	svc := NewDatasetService(zap.NewNop(), DatasetConfig{})
	_, err := svc.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDatasetServiceListNewestFirst(t *testing.T) {
	svc := NewDatasetService(zap.NewNop(), DatasetConfig{TTL: time.Hour})
	first, err := svc.Upload(context.Background(), "first", "user-1", fixtureDatasetFiles())
	require.NoError(t, err)
	second, err := svc.Upload(context.Background(), "second", "user-1", fixtureDatasetFiles())
	require.NoError(t, err)

	items := svc.List(context.Background())
	require.Len(t, items, 2)
	ids := []string{items[0].ID, items[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
	assert.False(t, items[0].CreatedAt.Before(items[1].CreatedAt))
}

func TestDatasetServiceDelete(t *testing.T) {
	svc := NewDatasetService(zap.NewNop(), DatasetConfig{})
	summary, err := svc.Upload(context.Background(), "ds", "user-1", fixtureDatasetFiles())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), summary.ID))

	err = svc.Delete(context.Background(), summary.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDatasetServiceUploadCapacity(t *testing.T) {
	svc := NewDatasetService(zap.NewNop(), DatasetConfig{TTL: time.Hour, MaxDatasets: 1})
	_, err := svc.Upload(context.Background(), "first", "user-1", fixtureDatasetFiles())
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), "second", "user-1", fixtureDatasetFiles())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
