package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/csit-edu/timetable-api/internal/models"
	"github.com/csit-edu/timetable-api/pkg/export"
	"github.com/csit-edu/timetable-api/pkg/storage"
)

type archiveReader interface {
	GetByID(ctx context.Context, id string) (*models.ScheduleArchive, error)
	ListAssignments(ctx context.Context, archiveID string) ([]models.ScheduleAssignment, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders archived schedules into downloadable files.
type ExportService struct {
	archives archiveReader
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(archives archiveReader, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		archives: archives,
		storage:  storage,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate renders the archive named by the job and stores the result.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job, title)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/exports/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob, title string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("timetable_%s_%s.%s", sanitizeFilename(title), timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// buildDataset flattens one archived schedule into tabular form, optionally
// narrowed to the assignments one section attends.
func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	archive, err := s.archives.GetByID(ctx, job.ArchiveID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load archive %s: %w", job.ArchiveID, err)
	}
	assignments, err := s.archives.ListAssignments(ctx, job.ArchiveID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load assignments for %s: %w", job.ArchiveID, err)
	}

	rows := make([]map[string]string, 0, len(assignments))
	for _, a := range assignments {
		if job.Params.SectionID != "" && !containsSection(a.SectionIDs, job.Params.SectionID) {
			continue
		}
		rows = append(rows, map[string]string{
			"Day":        a.Day,
			"Start":      a.StartTime,
			"End":        a.EndTime,
			"Course":     fmt.Sprintf("%s %s", a.CourseID, a.CourseName),
			"Session":    a.SessionType,
			"Sections":   strings.Join(a.SectionIDs, ", "),
			"Instructor": a.InstructorName,
			"Room":       a.RoomID,
		})
	}
	if job.Params.SectionID != "" && len(rows) == 0 {
		return export.Dataset{}, "", fmt.Errorf("section %s has no assignments in archive %s", job.Params.SectionID, job.ArchiveID)
	}

	dataset := export.Dataset{
		Headers: []string{"Day", "Start", "End", "Course", "Session", "Sections", "Instructor", "Room"},
		Rows:    rows,
	}
	title := archive.Name
	if job.Params.SectionID != "" {
		title = fmt.Sprintf("%s %s", archive.Name, job.Params.SectionID)
	}
	return dataset, title, nil
}

func containsSection(sectionIDs []string, id string) bool {
	for _, secID := range sectionIDs {
		if secID == id {
			return true
		}
	}
	return false
}
