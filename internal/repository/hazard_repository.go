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

// HazardRepository persists hazards, risk assessments, and mitigation actions.
type HazardRepository struct {
	db *sqlx.DB
}

// NewHazardRepository constructs the repository.
func NewHazardRepository(db *sqlx.DB) *HazardRepository {
	return &HazardRepository{db: db}
}

const hazardColumns = `id, title, description, category, status, location, latitude, longitude,
	department, reporter_id, reporter_name, identified_date, expected_resolution_date,
	current_risk_level, created_at, updated_at`

// Create inserts a new hazard row.
func (r *HazardRepository) Create(ctx context.Context, hazard *models.Hazard) error {
	if hazard.ID == "" {
		hazard.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if hazard.IdentifiedDate.IsZero() {
		hazard.IdentifiedDate = now
	}
	if hazard.CreatedAt.IsZero() {
		hazard.CreatedAt = now
	}
	hazard.UpdatedAt = now
	const query = `INSERT INTO hazards
	(id, title, description, category, status, location, latitude, longitude, department,
	 reporter_id, reporter_name, identified_date, expected_resolution_date, current_risk_level, created_at, updated_at)
	VALUES (:id, :title, :description, :category, :status, :location, :latitude, :longitude, :department,
	 :reporter_id, :reporter_name, :identified_date, :expected_resolution_date, :current_risk_level, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, hazard); err != nil {
		return fmt.Errorf("create hazard: %w", err)
	}
	return nil
}

// GetByID fetches a hazard with its assessments and mitigation actions.
func (r *HazardRepository) GetByID(ctx context.Context, id string) (*models.Hazard, error) {
	query := fmt.Sprintf(`SELECT %s FROM hazards WHERE id = $1`, hazardColumns)
	var hazard models.Hazard
	if err := r.db.GetContext(ctx, &hazard, query, id); err != nil {
		return nil, err
	}

	const assessmentQuery = `SELECT id, hazard_id, risk_level, likelihood, severity, notes, assessor_id, is_current, assessed_at
	FROM risk_assessments WHERE hazard_id = $1 ORDER BY assessed_at DESC`
	if err := r.db.SelectContext(ctx, &hazard.Assessments, assessmentQuery, id); err != nil {
		return nil, fmt.Errorf("load hazard assessments: %w", err)
	}

	const mitigationQuery = `SELECT id, hazard_id, description, assigned_to, due_date, completed, completed_at, created_at
	FROM mitigation_actions WHERE hazard_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &hazard.Mitigations, mitigationQuery, id); err != nil {
		return nil, fmt.Errorf("load hazard mitigations: %w", err)
	}

	return &hazard, nil
}

// Update persists the mutable hazard fields.
func (r *HazardRepository) Update(ctx context.Context, hazard *models.Hazard) error {
	hazard.UpdatedAt = time.Now().UTC()
	const query = `UPDATE hazards SET title = :title, description = :description, category = :category,
	location = :location, latitude = :latitude, longitude = :longitude, department = :department,
	expected_resolution_date = :expected_resolution_date, updated_at = :updated_at
	WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, hazard)
	if err != nil {
		return fmt.Errorf("update hazard: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check hazard update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a hazard while it is still in the given pre-submission
// status. Hazards past that point are retained for compliance history.
func (r *HazardRepository) Delete(ctx context.Context, id string, status models.HazardStatus) error {
	const query = `DELETE FROM hazards WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("delete hazard: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check hazard delete rows: %w", err)
	}
	if rows == 0 {
		if exists, existsErr := r.exists(ctx, id); existsErr == nil && exists {
			return ErrStaleStatus
		}
		return sql.ErrNoRows
	}
	return nil
}

func (r *HazardRepository) exists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM hazards WHERE id = $1`, id); err != nil {
		return false, err
	}
	return count > 0, nil
}

// HazardTransitionParams groups the atomic pieces of a workflow transition.
type HazardTransitionParams struct {
	ID        string
	OldStatus models.HazardStatus
	NewStatus models.HazardStatus
	// Assessment, when set, is inserted as the new current assessment and
	// every previous one is superseded, all inside the same transaction.
	Assessment *models.RiskAssessment
	Audit      *models.AuditLog
}

// Transition applies a status change, its optional assessment, and the audit
// entry in one transaction. The optimistic status predicate guarantees that
// under concurrent attempts exactly one writer wins; the loser observes
// ErrStaleStatus and must re-read.
func (r *HazardRepository) Transition(ctx context.Context, params HazardTransitionParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin hazard transition: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	updateQuery := `UPDATE hazards SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	args := []interface{}{params.NewStatus, now, params.ID, params.OldStatus}
	if params.Assessment != nil {
		updateQuery = `UPDATE hazards SET status = $1, updated_at = $2, current_risk_level = $5 WHERE id = $3 AND status = $4`
		args = append(args, params.Assessment.RiskLevel)
	}
	result, err := tx.ExecContext(ctx, updateQuery, args...)
	if err != nil {
		return fmt.Errorf("transition hazard status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check hazard transition rows: %w", err)
	}
	if rows == 0 {
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM hazards WHERE id = $1`, params.ID); err != nil {
			return fmt.Errorf("check hazard existence: %w", err)
		}
		if count > 0 {
			return ErrStaleStatus
		}
		return sql.ErrNoRows
	}

	if params.Assessment != nil {
		assessment := params.Assessment
		if assessment.ID == "" {
			assessment.ID = uuid.NewString()
		}
		if assessment.AssessedAt.IsZero() {
			assessment.AssessedAt = now
		}
		assessment.HazardID = params.ID
		assessment.IsCurrent = true
		if _, err := tx.ExecContext(ctx, `UPDATE risk_assessments SET is_current = FALSE WHERE hazard_id = $1 AND is_current = TRUE`, params.ID); err != nil {
			return fmt.Errorf("supersede risk assessments: %w", err)
		}
		const insertQuery = `INSERT INTO risk_assessments
		(id, hazard_id, risk_level, likelihood, severity, notes, assessor_id, is_current, assessed_at)
		VALUES (:id, :hazard_id, :risk_level, :likelihood, :severity, :notes, :assessor_id, :is_current, :assessed_at)`
		if _, err := tx.NamedExecContext(ctx, insertQuery, assessment); err != nil {
			return fmt.Errorf("insert risk assessment: %w", err)
		}
	}

	if params.Audit != nil {
		if err := insertAuditTx(ctx, tx, params.Audit); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit hazard transition: %w", err)
	}
	return nil
}

// AddMitigation inserts a mitigation action for a hazard.
func (r *HazardRepository) AddMitigation(ctx context.Context, action *models.MitigationAction) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO mitigation_actions (id, hazard_id, description, assigned_to, due_date, completed, completed_at, created_at)
	VALUES (:id, :hazard_id, :description, :assigned_to, :due_date, :completed, :completed_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, action); err != nil {
		return fmt.Errorf("add mitigation action: %w", err)
	}
	return nil
}

// CompleteMitigation marks a mitigation action done.
func (r *HazardRepository) CompleteMitigation(ctx context.Context, hazardID, actionID string, completedAt time.Time) error {
	const query = `UPDATE mitigation_actions SET completed = TRUE, completed_at = $3 WHERE id = $1 AND hazard_id = $2 AND completed = FALSE`
	result, err := r.db.ExecContext(ctx, query, actionID, hazardID, completedAt)
	if err != nil {
		return fmt.Errorf("complete mitigation action: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check mitigation update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns hazards matching the filter plus the pre-pagination total.
func (r *HazardRepository) List(ctx context.Context, filter models.HazardFilter) ([]models.Hazard, int, error) {
	conditions, args := hazardConditions(filter)
	baseQuery := "FROM hazards"
	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count hazards: %w", err)
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"identified_date":          true,
		"title":                    true,
		"status":                   true,
		"category":                 true,
		"current_risk_level":       true,
		"expected_resolution_date": true,
		"created_at":               true,
	}
	// Unknown sort keys fall back silently to the default.
	if !allowedSorts[sortBy] {
		sortBy = "identified_date"
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
		hazardColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var hazards []models.Hazard
	if err := r.db.SelectContext(ctx, &hazards, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list hazards: %w", err)
	}
	return hazards, total, nil
}

func hazardConditions(filter models.HazardFilter) ([]string, []interface{}) {
	conditions := make([]string, 0, 8)
	args := make([]interface{}, 0, 10)

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		n := len(args)
		// Full-text search ORs across all listed fields.
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d OR LOWER(location) LIKE $%d OR LOWER(reporter_name) LIKE $%d OR LOWER(department) LIKE $%d)",
			n, n, n, n, n))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.RiskLevel != nil {
		args = append(args, *filter.RiskLevel)
		conditions = append(conditions, fmt.Sprintf("current_risk_level = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.IdentifiedFrom != nil {
		args = append(args, *filter.IdentifiedFrom)
		conditions = append(conditions, fmt.Sprintf("identified_date >= $%d", len(args)))
	}
	if filter.IdentifiedTo != nil {
		args = append(args, *filter.IdentifiedTo)
		conditions = append(conditions, fmt.Sprintf("identified_date <= $%d", len(args)))
	}
	if filter.Latitude != nil && filter.Longitude != nil && filter.RadiusKm != nil {
		args = append(args, *filter.Latitude)
		latIdx := len(args)
		args = append(args, *filter.Longitude)
		lngIdx := len(args)
		args = append(args, *filter.RadiusKm)
		radIdx := len(args)
		// Planar approximation, adequate for short ranges only.
		conditions = append(conditions, fmt.Sprintf(
			"(latitude IS NOT NULL AND longitude IS NOT NULL AND SQRT(POWER(69.1 * (latitude - $%d), 2) + POWER(69.1 * (longitude - $%d) * COS($%d / 57.3), 2)) <= $%d)",
			latIdx, lngIdx, latIdx, radIdx))
	}
	if filter.OnlyUnassessed {
		conditions = append(conditions, "current_risk_level IS NULL")
	}
	if filter.OnlyOverdue {
		conditions = append(conditions, "expected_resolution_date IS NOT NULL AND expected_resolution_date < NOW() AND status <> 'CLOSED'")
	}
	if filter.OnlyHighRisk {
		conditions = append(conditions, "current_risk_level IN ('HIGH', 'CRITICAL')")
	}
	if filter.OnlyMine && filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conditions = append(conditions, fmt.Sprintf("reporter_id = $%d", len(args)))
	}
	return conditions, args
}

// Summary aggregates counts over the full hazard collection, ignoring any
// list filters. Groups with zero members are naturally absent.
func (r *HazardRepository) Summary(ctx context.Context) (*models.HazardSummary, error) {
	summary := &models.HazardSummary{}

	const countQuery = `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'OPEN') AS open,
		COUNT(*) FILTER (WHERE current_risk_level IN ('HIGH', 'CRITICAL')) AS high_risk,
		COUNT(*) FILTER (WHERE expected_resolution_date IS NOT NULL AND expected_resolution_date < NOW() AND status <> 'CLOSED') AS overdue
	FROM hazards`
	var counts struct {
		Total    int `db:"total"`
		Open     int `db:"open"`
		HighRisk int `db:"high_risk"`
		Overdue  int `db:"overdue"`
	}
	if err := r.db.GetContext(ctx, &counts, countQuery); err != nil {
		return nil, fmt.Errorf("hazard summary counts: %w", err)
	}
	summary.TotalCount = counts.Total
	summary.OpenCount = counts.Open
	summary.HighRiskCount = counts.HighRisk
	summary.OverdueCount = counts.Overdue

	groups := []struct {
		query string
		dest  *map[string]int
	}{
		{`SELECT category AS key, COUNT(*) AS count FROM hazards GROUP BY category`, &summary.ByCategory},
		{`SELECT current_risk_level AS key, COUNT(*) AS count FROM hazards WHERE current_risk_level IS NOT NULL GROUP BY current_risk_level`, &summary.ByRiskLevel},
		{`SELECT status AS key, COUNT(*) AS count FROM hazards GROUP BY status`, &summary.ByStatus},
	}
	for _, group := range groups {
		var rows []groupCount
		if err := r.db.SelectContext(ctx, &rows, group.query); err != nil {
			return nil, fmt.Errorf("hazard summary groups: %w", err)
		}
		*group.dest = groupCountsToMap(rows)
	}
	return summary, nil
}
