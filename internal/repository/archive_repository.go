package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/csit-edu/timetable-api/internal/models"
)

// ArchiveRepository persists finished schedules and their assignments.
type ArchiveRepository struct {
	db *sqlx.DB
}

// NewArchiveRepository constructs the repository.
func NewArchiveRepository(db *sqlx.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// Create stores the archive row and its assignments in one transaction.
func (r *ArchiveRepository) Create(ctx context.Context, archive *models.ScheduleArchive, assignments []models.ScheduleAssignment) error {
	if archive.ID == "" {
		archive.ID = uuid.NewString()
	}
	if archive.CreatedAt.IsZero() {
		archive.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertArchive = `INSERT INTO schedule_archives
	(id, name, dataset_name, state, completion, permissive, groups_total, groups_assigned, created_by, created_at)
	VALUES (:id, :name, :dataset_name, :state, :completion, :permissive, :groups_total, :groups_assigned, :created_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertArchive, archive); err != nil {
		return fmt.Errorf("insert schedule archive: %w", err)
	}

	const insertAssignment = `INSERT INTO schedule_assignments
	(id, archive_id, group_id, course_id, course_name, session_type, section_ids, instructor_id, instructor_name, room_id, day, start_time, end_time, duration)
	VALUES (:id, :archive_id, :group_id, :course_id, :course_name, :session_type, :section_ids, :instructor_id, :instructor_name, :room_id, :day, :start_time, :end_time, :duration)`
	for i := range assignments {
		if assignments[i].ID == "" {
			assignments[i].ID = uuid.NewString()
		}
		assignments[i].ArchiveID = archive.ID
		if _, err := tx.NamedExecContext(ctx, insertAssignment, assignments[i]); err != nil {
			return fmt.Errorf("insert schedule assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

// GetByID retrieves one archive row.
func (r *ArchiveRepository) GetByID(ctx context.Context, id string) (*models.ScheduleArchive, error) {
	const query = `SELECT id, name, dataset_name, state, completion, permissive, groups_total, groups_assigned, created_by, created_at
	FROM schedule_archives WHERE id = $1`
	var archive models.ScheduleArchive
	if err := r.db.GetContext(ctx, &archive, query, id); err != nil {
		return nil, err
	}
	return &archive, nil
}

// ListAssignments returns an archive's placements ordered by group.
func (r *ArchiveRepository) ListAssignments(ctx context.Context, archiveID string) ([]models.ScheduleAssignment, error) {
	const query = `SELECT id, archive_id, group_id, course_id, course_name, session_type, section_ids, instructor_id, instructor_name, room_id, day, start_time, end_time, duration
	FROM schedule_assignments WHERE archive_id = $1 ORDER BY group_id ASC`
	var rows []models.ScheduleAssignment
	if err := r.db.SelectContext(ctx, &rows, query, archiveID); err != nil {
		return nil, fmt.Errorf("list schedule assignments: %w", err)
	}
	return rows, nil
}

// List returns archives applying filters with a total count for pagination.
func (r *ArchiveRepository) List(ctx context.Context, filter models.ArchiveFilter) ([]models.ScheduleArchive, int, error) {
	baseQuery := strings.Builder{}
	baseQuery.WriteString("FROM schedule_archives")
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)

	if filter.State != "" {
		args = append(args, filter.State)
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(dataset_name) LIKE $%d)", len(args), len(args)))
	}
	if len(conditions) > 0 {
		baseQuery.WriteString(" WHERE ")
		baseQuery.WriteString(strings.Join(conditions, " AND "))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, name, dataset_name, state, completion, permissive, groups_total, groups_assigned, created_by, created_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		baseQuery.String(), pageSize, offset)

	var records []models.ScheduleArchive
	if err := r.db.SelectContext(ctx, &records, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedule archives: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery.String(), args...); err != nil {
		return nil, 0, fmt.Errorf("count schedule archives: %w", err)
	}
	return records, total, nil
}

// Delete removes an archive row; assignments cascade at the schema level.
func (r *ArchiveRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM schedule_archives WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete schedule archive: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check archive delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
