package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
)

// TrainingRepository persists training sessions and enrollments.
type TrainingRepository struct {
	db *sqlx.DB
}

// NewTrainingRepository constructs the repository.
func NewTrainingRepository(db *sqlx.DB) *TrainingRepository {
	return &TrainingRepository{db: db}
}

const trainingColumns = `id, title, description, type, status, instructor_name, location,
	department, scheduled_start_date, scheduled_end_date, max_participants,
	created_by, created_at, updated_at`

// Create inserts a new training session.
func (r *TrainingRepository) Create(ctx context.Context, training *models.Training) error {
	if training.ID == "" {
		training.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if training.CreatedAt.IsZero() {
		training.CreatedAt = now
	}
	training.UpdatedAt = now
	const query = `INSERT INTO trainings
	(id, title, description, type, status, instructor_name, location, department,
	 scheduled_start_date, scheduled_end_date, max_participants, created_by, created_at, updated_at)
	VALUES (:id, :title, :description, :type, :status, :instructor_name, :location, :department,
	 :scheduled_start_date, :scheduled_end_date, :max_participants, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, training); err != nil {
		return fmt.Errorf("create training: %w", err)
	}
	return nil
}

// GetByID fetches a training session with its enrollments.
func (r *TrainingRepository) GetByID(ctx context.Context, id string) (*models.Training, error) {
	query := fmt.Sprintf(`SELECT %s FROM trainings WHERE id = $1`, trainingColumns)
	var training models.Training
	if err := r.db.GetContext(ctx, &training, query, id); err != nil {
		return nil, err
	}
	const enrollmentQuery = `SELECT id, training_id, participant_id, participant_name, enrolled_at, attended, completed, completed_at
	FROM enrollments WHERE training_id = $1 ORDER BY enrolled_at ASC`
	if err := r.db.SelectContext(ctx, &training.Enrollments, enrollmentQuery, id); err != nil {
		return nil, fmt.Errorf("load training enrollments: %w", err)
	}
	return &training, nil
}

// Update persists the mutable training fields.
func (r *TrainingRepository) Update(ctx context.Context, training *models.Training) error {
	training.UpdatedAt = time.Now().UTC()
	const query = `UPDATE trainings SET title = :title, description = :description, type = :type,
	instructor_name = :instructor_name, location = :location, department = :department,
	scheduled_start_date = :scheduled_start_date, scheduled_end_date = :scheduled_end_date,
	max_participants = :max_participants, updated_at = :updated_at
	WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, training)
	if err != nil {
		return fmt.Errorf("update training: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check training update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a training session still in the given draft status.
func (r *TrainingRepository) Delete(ctx context.Context, id string, status models.TrainingStatus) error {
	const query = `DELETE FROM trainings WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("delete training: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check training delete rows: %w", err)
	}
	if rows == 0 {
		if exists, existsErr := r.exists(ctx, id); existsErr == nil && exists {
			return ErrStaleStatus
		}
		return sql.ErrNoRows
	}
	return nil
}

func (r *TrainingRepository) exists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM trainings WHERE id = $1`, id); err != nil {
		return false, err
	}
	return count > 0, nil
}

// TrainingTransitionParams groups the atomic pieces of a workflow transition.
type TrainingTransitionParams struct {
	ID        string
	OldStatus models.TrainingStatus
	NewStatus models.TrainingStatus
	Audit     *models.AuditLog
}

// Transition applies a status change and the audit entry in one transaction
// with an optimistic status predicate; concurrent losers get ErrStaleStatus.
func (r *TrainingRepository) Transition(ctx context.Context, params TrainingTransitionParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin training transition: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx,
		`UPDATE trainings SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		params.NewStatus, time.Now().UTC(), params.ID, params.OldStatus)
	if err != nil {
		return fmt.Errorf("transition training status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check training transition rows: %w", err)
	}
	if rows == 0 {
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM trainings WHERE id = $1`, params.ID); err != nil {
			return fmt.Errorf("check training existence: %w", err)
		}
		if count > 0 {
			return ErrStaleStatus
		}
		return sql.ErrNoRows
	}

	if params.Audit != nil {
		if err := insertAuditTx(ctx, tx, params.Audit); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit training transition: %w", err)
	}
	return nil
}

// Enroll adds a participant to a session.
func (r *TrainingRepository) Enroll(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, training_id, participant_id, participant_name, enrolled_at, attended, completed, completed_at)
	VALUES (:id, :training_id, :participant_id, :participant_name, :enrolled_at, :attended, :completed, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("enroll participant: %w", err)
	}
	return nil
}

// CountEnrollments returns the number of participants for a session.
func (r *TrainingRepository) CountEnrollments(ctx context.Context, trainingID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollments WHERE training_id = $1`, trainingID); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// UpdateEnrollment records attendance/completion for a participant.
func (r *TrainingRepository) UpdateEnrollment(ctx context.Context, trainingID, enrollmentID string, attended, completed bool, completedAt *time.Time) error {
	const query = `UPDATE enrollments SET attended = $3, completed = $4, completed_at = $5 WHERE id = $1 AND training_id = $2`
	result, err := r.db.ExecContext(ctx, query, enrollmentID, trainingID, attended, completed, completedAt)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check enrollment update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns training sessions matching the filter plus the total.
func (r *TrainingRepository) List(ctx context.Context, filter models.TrainingFilter) ([]models.Training, int, error) {
	conditions, args := trainingConditions(filter)
	baseQuery := "FROM trainings"
	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count trainings: %w", err)
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"created_at":           true,
		"title":                true,
		"status":               true,
		"type":                 true,
		"scheduled_start_date": true,
		"instructor_name":      true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d",
		trainingColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var trainings []models.Training
	if err := r.db.SelectContext(ctx, &trainings, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list trainings: %w", err)
	}
	return trainings, total, nil
}

func trainingConditions(filter models.TrainingFilter) ([]string, []interface{}) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d OR LOWER(location) LIKE $%d OR LOWER(instructor_name) LIKE $%d OR LOWER(department) LIKE $%d)",
			n, n, n, n, n))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.ScheduledFrom != nil {
		args = append(args, *filter.ScheduledFrom)
		conditions = append(conditions, fmt.Sprintf("scheduled_start_date >= $%d", len(args)))
	}
	if filter.ScheduledTo != nil {
		args = append(args, *filter.ScheduledTo)
		conditions = append(conditions, fmt.Sprintf("scheduled_start_date <= $%d", len(args)))
	}
	if filter.OnlyMine && filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	return conditions, args
}

// Summary aggregates counts over the full training collection.
func (r *TrainingRepository) Summary(ctx context.Context) (*models.TrainingSummary, error) {
	summary := &models.TrainingSummary{}

	const countQuery = `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'SCHEDULED') AS scheduled,
		COUNT(*) FILTER (WHERE status = 'COMPLETED') AS completed
	FROM trainings`
	var counts struct {
		Total     int `db:"total"`
		Scheduled int `db:"scheduled"`
		Completed int `db:"completed"`
	}
	if err := r.db.GetContext(ctx, &counts, countQuery); err != nil {
		return nil, fmt.Errorf("training summary counts: %w", err)
	}
	summary.TotalCount = counts.Total
	summary.ScheduledCount = counts.Scheduled
	summary.CompletedCount = counts.Completed

	groups := []struct {
		query string
		dest  *map[string]int
	}{
		{`SELECT type AS key, COUNT(*) AS count FROM trainings GROUP BY type`, &summary.ByType},
		{`SELECT status AS key, COUNT(*) AS count FROM trainings GROUP BY status`, &summary.ByStatus},
	}
	for _, group := range groups {
		var rows []groupCount
		if err := r.db.SelectContext(ctx, &rows, group.query); err != nil {
			return nil, fmt.Errorf("training summary groups: %w", err)
		}
		*group.dest = groupCountsToMap(rows)
	}
	return summary, nil
}
