package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/csit-edu/timetable-api/internal/dto"
	"github.com/csit-edu/timetable-api/internal/models"
	"github.com/csit-edu/timetable-api/internal/solver"
	appErrors "github.com/csit-edu/timetable-api/pkg/errors"
	"github.com/csit-edu/timetable-api/pkg/export"
	"github.com/csit-edu/timetable-api/pkg/jobs"
)

// JobTypeScheduleGeneration tags queued background generation jobs.
const JobTypeScheduleGeneration = "schedule_generation"

type datasetProvider interface {
	Get(ctx context.Context, id string) (*models.Dataset, error)
}

type scheduleArchiveStore interface {
	Create(ctx context.Context, archive *models.ScheduleArchive, assignments []models.ScheduleAssignment) error
	GetByID(ctx context.Context, id string) (*models.ScheduleArchive, error)
	ListAssignments(ctx context.Context, archiveID string) ([]models.ScheduleAssignment, error)
	List(ctx context.Context, filter models.ArchiveFilter) ([]models.ScheduleArchive, int, error)
	Delete(ctx context.Context, id string) error
}

// TimetableConfig tunes run budgets and in-memory retention.
type TimetableConfig struct {
	// DefaultTimeBudget applies when a request leaves the budget unset.
	DefaultTimeBudget time.Duration
	// MaxTimeBudget caps any requested budget.
	MaxTimeBudget time.Duration
	// RunTTL is how long finished runs stay retrievable.
	RunTTL time.Duration
	// MaxRuns bounds the number of retained runs.
	MaxRuns int
	// CacheTTL applies to cached archive reads.
	CacheTTL time.Duration
}

// TimetableService drives schedule generation: it resolves a staged dataset,
// runs the solver synchronously or through the background queue, keeps run
// outcomes in memory until they expire, and persists the ones worth keeping
// as archives.
type TimetableService struct {
	datasets  datasetProvider
	archives  scheduleArchiveStore
	queue     jobDispatcher
	metrics   *MetricsService
	cache     *CacheService
	csv       csvRenderer
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableConfig
	runs      *runStore
}

// NewTimetableService wires the generation engine. The queue may be nil, in
// which case asynchronous generation is unavailable. A nil cache disables
// archive read caching.
func NewTimetableService(
	datasets datasetProvider,
	archives scheduleArchiveStore,
	queue jobDispatcher,
	metrics *MetricsService,
	cache *CacheService,
	csv csvRenderer,
	pdf pdfRenderer,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTimeBudget <= 0 {
		cfg.DefaultTimeBudget = 30 * time.Second
	}
	if cfg.MaxTimeBudget <= 0 {
		cfg.MaxTimeBudget = 2 * time.Minute
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = 6 * time.Hour
	}
	if cfg.MaxRuns <= 0 {
		cfg.MaxRuns = 200
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &TimetableService{
		datasets:  datasets,
		archives:  archives,
		queue:     queue,
		metrics:   metrics,
		cache:     cache,
		csv:       csv,
		pdf:       pdf,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		runs:      newRunStore(cfg.RunTTL, cfg.MaxRuns),
	}
}

// SetQueue installs the generation queue after construction. The queue
// handler needs the service and the service needs the queue, so wiring
// happens in two steps.
func (s *TimetableService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// Generate runs one solve to completion and returns the full outcome.
func (s *TimetableService) Generate(ctx context.Context, req *dto.GenerateScheduleRequest, actorID string) (*dto.ScheduleDetailResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation request")
	}
	dataset, err := s.datasets.Get(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}

	run := s.newRun(req, dataset, actorID)
	res, relaxed, err := s.solve(ctx, run.input, run.Options, run.AutoRelax)
	if err != nil {
		return nil, err
	}
	s.finishRun(&run, res, relaxed)
	s.runs.Save(run)

	s.logger.Info("schedule generated",
		zap.String("run_id", run.ID),
		zap.String("dataset_id", run.DatasetID),
		zap.String("state", string(res.State)),
		zap.Float64("completion", res.Completion),
		zap.Bool("permissive", run.Options.Permissive),
		zap.Bool("auto_relaxed", relaxed),
		zap.Duration("elapsed", res.Diagnostics.Elapsed))

	detail := runDetail(run)
	return &detail, nil
}

// GenerateAsync stages a run and hands it to the background queue. The
// dataset is resolved up front so its expiry cannot fail the run later.
func (s *TimetableService) GenerateAsync(ctx context.Context, req *dto.GenerateScheduleRequest, actorID string) (*dto.AsyncRunResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation request")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "generation queue is not running")
	}
	dataset, err := s.datasets.Get(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}

	run := s.newRun(req, dataset, actorID)
	s.runs.Save(run)
	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: JobTypeScheduleGeneration}); err != nil {
		s.runs.Delete(run.ID)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue schedule generation")
	}

	s.logger.Info("schedule generation queued",
		zap.String("run_id", run.ID),
		zap.String("dataset_id", run.DatasetID),
		zap.String("requested_by", actorID))

	return &dto.AsyncRunResponse{RunID: run.ID, State: string(solver.StateUnsolved)}, nil
}

// ProcessRun is the queue handler for schedule generation jobs. Structural
// input failures are recorded on the run and not retried; only infrastructure
// errors propagate to the queue.
func (s *TimetableService) ProcessRun(ctx context.Context, job jobs.Job) error {
	run, ok := s.runs.Get(job.ID)
	if !ok {
		return fmt.Errorf("schedule run %s not found", job.ID)
	}
	if run.State.Terminal() || run.failure != nil {
		return nil
	}

	s.runs.Update(job.ID, func(r *scheduleRun) {
		r.State = solver.StateInProgress
	})

	res, relaxed, err := s.solve(ctx, run.input, run.Options, run.AutoRelax)
	if err != nil {
		now := time.Now().UTC()
		failure := appErrors.FromError(err)
		s.runs.Update(job.ID, func(r *scheduleRun) {
			r.failure = failure
			r.FinishedAt = &now
		})
		s.logger.Warn("queued schedule generation failed",
			zap.String("run_id", job.ID),
			zap.Error(err))
		return nil
	}

	s.runs.Update(job.ID, func(r *scheduleRun) {
		s.finishRun(r, res, relaxed)
	})

	s.logger.Info("queued schedule generated",
		zap.String("run_id", job.ID),
		zap.String("state", string(res.State)),
		zap.Float64("completion", res.Completion),
		zap.Bool("auto_relaxed", relaxed))
	return nil
}

// GetRun returns the current view of a run, including queued and in-progress
// ones. A run whose background solve failed structurally reports that
// failure instead.
func (s *TimetableService) GetRun(ctx context.Context, id string) (*dto.ScheduleDetailResponse, error) {
	run, ok := s.runs.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found or expired")
	}
	if run.failure != nil {
		return nil, run.failure
	}
	detail := runDetail(run)
	return &detail, nil
}

// RunExport is one rendered timetable document.
type RunExport struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportRun renders a finished run as CSV or PDF, optionally narrowed to one
// section.
func (s *TimetableService) ExportRun(ctx context.Context, id string, format models.ExportFormat, sectionID string) (*RunExport, error) {
	run, ok := s.runs.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found or expired")
	}
	if run.failure != nil {
		return nil, run.failure
	}
	if !run.State.Terminal() {
		return nil, appErrors.ErrRunNotFinished
	}

	data, err := runExportDataset(run.Sections, sectionID)
	if err != nil {
		return nil, err
	}

	stamp := run.CreatedAt.Format("20060102")
	switch format {
	case models.ExportFormatCSV:
		payload, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &RunExport{
			Filename:    fmt.Sprintf("timetable-%s-%s.csv", sanitizeFilename(run.DatasetName), stamp),
			ContentType: "text/csv",
			Data:        payload,
		}, nil
	case models.ExportFormatPDF:
		payload, err := s.pdf.Render(data, "Timetable "+run.DatasetName)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &RunExport{
			Filename:    fmt.Sprintf("timetable-%s-%s.pdf", sanitizeFilename(run.DatasetName), stamp),
			ContentType: "application/pdf",
			Data:        payload,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

// Archive persists a finished run so it survives process restarts.
func (s *TimetableService) Archive(ctx context.Context, req *dto.ArchiveScheduleRequest, actorID string) (*models.ScheduleArchive, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid archive request")
	}
	run, ok := s.runs.Get(req.RunID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found or expired")
	}
	if run.failure != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "failed runs cannot be archived")
	}
	if !run.State.Terminal() {
		return nil, appErrors.ErrRunNotFinished
	}

	instructors := make(map[string]string, len(run.input.Instructors))
	for _, inst := range run.input.Instructors {
		instructors[inst.ID] = inst.Name
	}

	assignments := make([]models.ScheduleAssignment, 0, len(run.Result.Assignments))
	for _, a := range run.Result.Assignments {
		assignments = append(assignments, models.ScheduleAssignment{
			GroupID:        a.Group.ID,
			CourseID:       a.Group.CourseID,
			CourseName:     a.Group.CourseName,
			SessionType:    string(a.Group.Kind),
			SectionIDs:     pq.StringArray(a.Group.SectionIDs),
			InstructorID:   a.InstructorID,
			InstructorName: instructors[a.InstructorID],
			RoomID:         a.RoomID,
			Day:            a.Slot.Day,
			StartTime:      a.Slot.Start,
			EndTime:        a.Slot.End,
			Duration:       a.Slot.Duration,
		})
	}

	archive := &models.ScheduleArchive{
		Name:        req.Name,
		DatasetName: run.DatasetName,
		State:       string(run.State),
		Completion:  run.Result.Completion,
		Permissive:  run.Options.Permissive || run.AutoRelaxed,
		Groups:      run.Result.Groups,
		Assigned:    len(run.Result.Assignments),
		CreatedBy:   actorID,
	}
	if err := s.archives.Create(ctx, archive, assignments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive schedule")
	}
	s.invalidateArchiveCache(ctx)

	s.logger.Info("schedule archived",
		zap.String("archive_id", archive.ID),
		zap.String("run_id", run.ID),
		zap.String("name", archive.Name),
		zap.String("created_by", actorID))
	return archive, nil
}

// ListArchived returns archive metadata with pagination. Results are cached
// until the next archive write. The boolean reports whether the response came
// from cache.
func (s *TimetableService) ListArchived(ctx context.Context, filter models.ArchiveFilter) (*dto.ArchiveListResponse, bool, error) {
	key := fmt.Sprintf("archives:list:%s:%s:%d:%d", filter.State, filter.Search, filter.Page, filter.PageSize)
	if s.cache != nil {
		var cached dto.ArchiveListResponse
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	items, total, err := s.archives.List(ctx, filter)
	s.metrics.ObserveDBQuery("archives_list", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list archived schedules")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	result := &dto.ArchiveListResponse{
		Items:      items,
		Pagination: models.Pagination{Page: page, PageSize: pageSize, TotalCount: total},
	}
	s.persistArchiveCache(ctx, key, result)
	return result, false, nil
}

// GetArchived returns one archive with its assignments.
func (s *TimetableService) GetArchived(ctx context.Context, id string) (*dto.ArchiveDetailResponse, bool, error) {
	key := "archives:item:" + id
	if s.cache != nil {
		var cached dto.ArchiveDetailResponse
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	archive, err := s.archives.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "archived schedule not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archived schedule")
	}
	assignments, err := s.archives.ListAssignments(ctx, id)
	s.metrics.ObserveDBQuery("archives_get", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archived assignments")
	}
	result := &dto.ArchiveDetailResponse{ScheduleArchive: *archive, Assignments: assignments}
	s.persistArchiveCache(ctx, key, result)
	return result, false, nil
}

// DeleteArchived removes an archive. Only the creator or an admin may do so.
func (s *TimetableService) DeleteArchived(ctx context.Context, id, actorID string, role models.UserRole) error {
	archive, err := s.archives.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "archived schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archived schedule")
	}
	if role != models.RoleAdmin && archive.CreatedBy != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the creator or an admin can delete an archive")
	}
	if err := s.archives.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "archived schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete archived schedule")
	}
	s.invalidateArchiveCache(ctx)
	s.logger.Info("schedule archive deleted",
		zap.String("archive_id", id),
		zap.String("deleted_by", actorID))
	return nil
}

func (s *TimetableService) persistArchiveCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("archive cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *TimetableService) invalidateArchiveCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "archives:*"); err != nil {
		s.logger.Warn("archive cache invalidation failed", zap.Error(err))
	}
}

func (s *TimetableService) newRun(req *dto.GenerateScheduleRequest, dataset *models.Dataset, actorID string) scheduleRun {
	return scheduleRun{
		ID:          uuid.NewString(),
		DatasetID:   dataset.ID,
		DatasetName: dataset.Name,
		Options: solver.Options{
			TimeBudget: s.resolveBudget(req.TimeBudgetSeconds),
			Permissive: req.Permissive,
		},
		AutoRelax: req.AutoRelax,
		State:     solver.StateUnsolved,
		CreatedBy: actorID,
		CreatedAt: time.Now().UTC(),
		input: solver.Input{
			Courses:     dataset.Courses,
			Instructors: dataset.Instructors,
			Rooms:       dataset.Rooms,
			TimeSlots:   dataset.TimeSlots,
			Sections:    dataset.Sections,
		},
	}
}

// resolveBudget maps the request field onto a solver budget: unset or zero
// means the configured default, negative means an immediate-timeout probe,
// anything else is clamped to the maximum.
func (s *TimetableService) resolveBudget(seconds *float64) time.Duration {
	if seconds == nil || *seconds == 0 {
		return s.cfg.DefaultTimeBudget
	}
	if *seconds < 0 {
		return 0
	}
	budget := time.Duration(*seconds * float64(time.Second))
	if budget > s.cfg.MaxTimeBudget {
		budget = s.cfg.MaxTimeBudget
	}
	return budget
}

// solve runs the solver once and, when allowed, retries permissively after a
// strict run falls short. The retry result wins only when it assigns at
// least as much as the strict one.
func (s *TimetableService) solve(ctx context.Context, input solver.Input, opts solver.Options, autoRelax bool) (*solver.Result, bool, error) {
	res, err := solver.Solve(ctx, input, opts)
	if err != nil {
		return nil, false, mapSolveError(err)
	}
	s.observeSolve(res, opts.Permissive)

	if !autoRelax || opts.Permissive {
		return res, false, nil
	}
	switch res.State {
	case solver.StatePartiallySolved, solver.StateExhausted:
	default:
		return res, false, nil
	}

	relaxed := opts
	relaxed.Permissive = true
	retry, err := solver.Solve(ctx, input, relaxed)
	if err != nil {
		s.logger.Warn("permissive retry failed, keeping strict result", zap.Error(err))
		return res, false, nil
	}
	s.observeSolve(retry, true)
	if retry.Completion < res.Completion {
		return res, false, nil
	}
	return retry, true, nil
}

func (s *TimetableService) finishRun(run *scheduleRun, res *solver.Result, relaxed bool) {
	now := time.Now().UTC()
	run.State = res.State
	run.Result = res
	run.AutoRelaxed = relaxed
	run.Sections = solver.FormatTimetable(run.input, res)
	run.FinishedAt = &now
}

func (s *TimetableService) observeSolve(res *solver.Result, permissive bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveSolve(string(res.State), permissive, res.Diagnostics.Elapsed, res.Completion)
}

func mapSolveError(err error) error {
	var vErr *solver.ValidationError
	if errors.As(err, &vErr) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, vErr.Error())
	}
	var cErr *solver.ConfigurationError
	if errors.As(err, &cErr) {
		return appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, cErr.Error())
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "schedule generation failed")
}

func runDetail(run scheduleRun) dto.ScheduleDetailResponse {
	detail := dto.ScheduleDetailResponse{
		ScheduleRunResponse: dto.ScheduleRunResponse{
			ID:          run.ID,
			DatasetID:   run.DatasetID,
			DatasetName: run.DatasetName,
			State:       string(run.State),
			Permissive:  run.Options.Permissive,
			AutoRelaxed: run.AutoRelaxed,
			CreatedAt:   run.CreatedAt,
		},
		Assignments: []solver.Assignment{},
		Sections:    run.Sections,
	}
	if run.Result != nil {
		detail.Completion = run.Result.Completion
		detail.Groups = run.Result.Groups
		detail.Assigned = len(run.Result.Assignments)
		detail.Assignments = run.Result.Assignments
		detail.Diagnostics = run.Result.Diagnostics
	}
	return detail
}

func runExportDataset(sections []solver.SectionTimetable, sectionID string) (export.Dataset, error) {
	headers := []string{"Section", "Day", "Start", "End", "Course", "Session", "Instructor", "Room"}
	rows := make([]map[string]string, 0, len(sections))
	found := sectionID == ""
	for _, sec := range sections {
		if sectionID != "" {
			if sec.SectionID != sectionID {
				continue
			}
			found = true
		}
		for _, row := range sec.Rows {
			rows = append(rows, map[string]string{
				"Section":    sec.SectionID,
				"Day":        row.Day,
				"Start":      row.Start,
				"End":        row.End,
				"Course":     fmt.Sprintf("%s %s", row.CourseID, row.CourseName),
				"Session":    row.SessionType,
				"Instructor": row.InstructorName,
				"Room":       row.RoomID,
			})
		}
	}
	if !found {
		return export.Dataset{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("section %s is not part of this run", sectionID))
	}
	return export.Dataset{Headers: headers, Rows: rows}, nil
}

// scheduleRun is one generation attempt tracked in memory. The solver input
// is captured at creation so queued runs survive dataset expiry.
type scheduleRun struct {
	ID          string
	DatasetID   string
	DatasetName string
	Options     solver.Options
	AutoRelax   bool
	AutoRelaxed bool
	State       solver.State
	Result      *solver.Result
	Sections    []solver.SectionTimetable
	CreatedBy   string
	CreatedAt   time.Time
	FinishedAt  *time.Time

	input   solver.Input
	failure *appErrors.Error
}

// runStore keeps recent runs behind a mutex. Retention is lazy, mirroring
// the dataset store: expired entries are reaped on access.
type runStore struct {
	ttl time.Duration
	max int

	mu    sync.RWMutex
	items map[string]scheduleRun
}

func newRunStore(ttl time.Duration, max int) *runStore {
	return &runStore{
		ttl:   ttl,
		max:   max,
		items: make(map[string]scheduleRun),
	}
}

func (s *runStore) Save(run scheduleRun) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.items {
		if now.Sub(existing.CreatedAt) > s.ttl {
			delete(s.items, id)
		}
	}
	if len(s.items) >= s.max {
		s.evictOldestLocked()
	}
	s.items[run.ID] = run
}

func (s *runStore) Get(id string) (scheduleRun, bool) {
	s.mu.RLock()
	run, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return scheduleRun{}, false
	}
	if time.Since(run.CreatedAt) > s.ttl {
		s.Delete(id)
		return scheduleRun{}, false
	}
	return run, true
}

// Update applies fn to the stored run under the write lock. It reports false
// when the run no longer exists.
func (s *runStore) Update(id string, fn func(*scheduleRun)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.items[id]
	if !ok {
		return false
	}
	fn(&run)
	s.items[id] = run
	return true
}

func (s *runStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *runStore) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, run := range s.items {
		if oldestID == "" || run.CreatedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = run.CreatedAt
		}
	}
	if oldestID != "" {
		delete(s.items, oldestID)
	}
}
