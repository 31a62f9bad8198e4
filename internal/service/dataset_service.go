package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/csit-edu/timetable-api/internal/ingest"
	"github.com/csit-edu/timetable-api/internal/models"
	appErrors "github.com/csit-edu/timetable-api/pkg/errors"
)

// DatasetConfig defines staging behaviour for uploaded datasets.
type DatasetConfig struct {
	// TTL is how long a staged dataset stays retrievable after upload.
	TTL time.Duration
	// MaxDatasets bounds how many live datasets the store keeps at once.
	MaxDatasets int
}

// DatasetService stages uploaded CSV bundles in memory so schedule runs can
// reference them by ID. Datasets are immutable once staged; they expire after
// the configured TTL and are never persisted.
type DatasetService struct {
	store  *datasetStore
	logger *zap.Logger
	cfg    DatasetConfig
}

// DatasetFiles bundles the five CSV streams of one upload. Every reader is
// required.
type DatasetFiles struct {
	Courses     io.Reader
	Instructors io.Reader
	Rooms       io.Reader
	TimeSlots   io.Reader
	Sections    io.Reader
}

// NewDatasetService wires the dataset staging area.
func NewDatasetService(logger *zap.Logger, cfg DatasetConfig) *DatasetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.MaxDatasets <= 0 {
		cfg.MaxDatasets = 50
	}
	return &DatasetService{
		store:  newDatasetStore(cfg.TTL, cfg.MaxDatasets),
		logger: logger,
		cfg:    cfg,
	}
}

// Upload parses and stages one dataset. Parsing is strict: a malformed row in
// any file rejects the whole upload, and no partial dataset is staged.
func (s *DatasetService) Upload(ctx context.Context, name, actorID string, files DatasetFiles) (*models.DatasetSummary, error) {
	if err := requireFiles(files); err != nil {
		return nil, err
	}

	courses, err := ingest.ParseCourses(files.Courses)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("courses file: %v", err))
	}
	instructors, err := ingest.ParseInstructors(files.Instructors)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("instructors file: %v", err))
	}
	rooms, err := ingest.ParseRooms(files.Rooms)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("rooms file: %v", err))
	}
	timeslots, err := ingest.ParseTimeSlots(files.TimeSlots)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("timeslots file: %v", err))
	}
	sections, err := ingest.ParseSections(files.Sections)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("sections file: %v", err))
	}

	dataset := &models.Dataset{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Courses:     courses,
		Instructors: instructors,
		Rooms:       rooms,
		TimeSlots:   timeslots,
		Sections:    sections,
		UploadedBy:  actorID,
		CreatedAt:   time.Now().UTC(),
	}
	if dataset.Name == "" {
		dataset.Name = "dataset-" + dataset.CreatedAt.Format("20060102-150405")
	}

	if issues := datasetIssues(dataset); len(issues) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dataset is inconsistent: "+strings.Join(issues, "; "))
	}
	if unknown := unknownQualifications(dataset); len(unknown) > 0 {
		s.logger.Warn("dataset has qualifications for unknown courses",
			zap.String("dataset_id", dataset.ID),
			zap.Strings("qualifications", unknown))
	}

	if !s.store.Save(dataset) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "dataset staging area is full, delete an old dataset first")
	}

	s.logger.Info("dataset staged",
		zap.String("dataset_id", dataset.ID),
		zap.String("name", dataset.Name),
		zap.String("uploaded_by", actorID),
		zap.Int("courses", len(courses)),
		zap.Int("sections", len(sections)))

	summary := dataset.Summary()
	return &summary, nil
}

// Get returns a staged dataset. Expired datasets report ErrDatasetExpired on
// the first access after the TTL elapses and NOT_FOUND afterwards.
func (s *DatasetService) Get(ctx context.Context, id string) (*models.Dataset, error) {
	dataset, expired, ok := s.store.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "dataset not found")
	}
	if expired {
		return nil, appErrors.Clone(appErrors.ErrDatasetExpired, "dataset expired, upload it again")
	}
	return dataset, nil
}

// Summary returns the counts view of one staged dataset.
func (s *DatasetService) Summary(ctx context.Context, id string) (*models.DatasetSummary, error) {
	dataset, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := dataset.Summary()
	return &summary, nil
}

// List returns summaries of every live dataset, newest first.
func (s *DatasetService) List(ctx context.Context) []models.DatasetSummary {
	return s.store.List()
}

// Delete removes a staged dataset.
func (s *DatasetService) Delete(ctx context.Context, id string) error {
	if !s.store.Delete(id) {
		return appErrors.Clone(appErrors.ErrNotFound, "dataset not found")
	}
	s.logger.Info("dataset deleted", zap.String("dataset_id", id))
	return nil
}

func requireFiles(files DatasetFiles) error {
	missing := make([]string, 0, 5)
	if files.Courses == nil {
		missing = append(missing, "courses")
	}
	if files.Instructors == nil {
		missing = append(missing, "instructors")
	}
	if files.Rooms == nil {
		missing = append(missing, "rooms")
	}
	if files.TimeSlots == nil {
		missing = append(missing, "timeslots")
	}
	if files.Sections == nil {
		missing = append(missing, "sections")
	}
	if len(missing) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "missing files: "+strings.Join(missing, ", "))
	}
	return nil
}

// datasetIssues cross-checks the parsed collections. Duplicate IDs within a
// collection reject the upload; dangling references only do when they would
// make a later solve fail outright.
func datasetIssues(d *models.Dataset) []string {
	var issues []string

	courseIDs := make(map[string]struct{}, len(d.Courses))
	for _, c := range d.Courses {
		if _, dup := courseIDs[c.ID]; dup {
			issues = append(issues, "duplicate course "+c.ID)
			continue
		}
		courseIDs[c.ID] = struct{}{}
	}

	instructorIDs := make(map[string]struct{}, len(d.Instructors))
	for _, inst := range d.Instructors {
		if _, dup := instructorIDs[inst.ID]; dup {
			issues = append(issues, "duplicate instructor "+inst.ID)
			continue
		}
		instructorIDs[inst.ID] = struct{}{}
	}

	roomIDs := make(map[string]struct{}, len(d.Rooms))
	for _, r := range d.Rooms {
		if _, dup := roomIDs[r.ID]; dup {
			issues = append(issues, "duplicate room "+r.ID)
			continue
		}
		roomIDs[r.ID] = struct{}{}
	}

	sectionIDs := make(map[string]struct{}, len(d.Sections))
	for _, sec := range d.Sections {
		if _, dup := sectionIDs[sec.ID]; dup {
			issues = append(issues, "duplicate section "+sec.ID)
			continue
		}
		sectionIDs[sec.ID] = struct{}{}
	}

	return issues
}

// unknownQualifications lists instructor qualifications that reference no
// course in the catalogue. These are harmless (they simply never match) but
// usually indicate a stale staff sheet, so they are logged rather than
// rejected.
func unknownQualifications(d *models.Dataset) []string {
	courseIDs := make(map[string]struct{}, len(d.Courses))
	for _, c := range d.Courses {
		courseIDs[strings.ToUpper(c.ID)] = struct{}{}
	}
	var unknown []string
	for _, inst := range d.Instructors {
		for _, courseID := range inst.Qualified {
			if _, ok := courseIDs[strings.ToUpper(courseID)]; !ok {
				unknown = append(unknown, fmt.Sprintf("%s: %s", inst.ID, courseID))
			}
		}
	}
	return unknown
}

type datasetEntry struct {
	dataset  *models.Dataset
	expireAt time.Time
}

// datasetStore is the mutex-guarded staging map. Expiry is lazy: entries are
// reaped on access, not by a background sweeper.
type datasetStore struct {
	ttl time.Duration
	max int

	mu    sync.RWMutex
	items map[string]datasetEntry
}

func newDatasetStore(ttl time.Duration, max int) *datasetStore {
	return &datasetStore{
		ttl:   ttl,
		max:   max,
		items: make(map[string]datasetEntry),
	}
}

// Save stages the dataset. It reports false when the store is already at
// capacity after reaping expired entries.
func (s *datasetStore) Save(dataset *models.Dataset) bool {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.items {
		if now.After(entry.expireAt) {
			delete(s.items, id)
		}
	}
	if len(s.items) >= s.max {
		return false
	}
	s.items[dataset.ID] = datasetEntry{dataset: dataset, expireAt: now.Add(s.ttl)}
	return true
}

// Get returns (dataset, expired, found). An expired hit removes the entry, so
// the next lookup misses entirely.
func (s *datasetStore) Get(id string) (*models.Dataset, bool, bool) {
	s.mu.RLock()
	entry, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false, false
	}
	if time.Now().After(entry.expireAt) {
		s.Delete(id)
		return nil, true, true
	}
	return entry.dataset, false, true
}

func (s *datasetStore) List() []models.DatasetSummary {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DatasetSummary, 0, len(s.items))
	for id, entry := range s.items {
		if now.After(entry.expireAt) {
			delete(s.items, id)
			continue
		}
		out = append(out, entry.dataset.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *datasetStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}
