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

// LicenseRepository persists licenses and their conditions.
type LicenseRepository struct {
	db *sqlx.DB
}

// NewLicenseRepository constructs the repository.
func NewLicenseRepository(db *sqlx.DB) *LicenseRepository {
	return &LicenseRepository{db: db}
}

const licenseColumns = `id, title, description, type, status, priority, license_number,
	issuing_authority, holder_name, department, issued_date, expiry_date,
	renewal_period_days, created_by, created_at, updated_at`

// Create inserts a new license row.
func (r *LicenseRepository) Create(ctx context.Context, license *models.License) error {
	if license.ID == "" {
		license.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if license.CreatedAt.IsZero() {
		license.CreatedAt = now
	}
	license.UpdatedAt = now
	const query = `INSERT INTO licenses
	(id, title, description, type, status, priority, license_number, issuing_authority, holder_name,
	 department, issued_date, expiry_date, renewal_period_days, created_by, created_at, updated_at)
	VALUES (:id, :title, :description, :type, :status, :priority, :license_number, :issuing_authority, :holder_name,
	 :department, :issued_date, :expiry_date, :renewal_period_days, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, license); err != nil {
		return fmt.Errorf("create license: %w", err)
	}
	return nil
}

// GetByID fetches a license with its conditions.
func (r *LicenseRepository) GetByID(ctx context.Context, id string) (*models.License, error) {
	query := fmt.Sprintf(`SELECT %s FROM licenses WHERE id = $1`, licenseColumns)
	var license models.License
	if err := r.db.GetContext(ctx, &license, query, id); err != nil {
		return nil, err
	}
	const conditionQuery = `SELECT id, license_id, description, due_date, completed, completed_at, created_at
	FROM license_conditions WHERE license_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &license.Conditions, conditionQuery, id); err != nil {
		return nil, fmt.Errorf("load license conditions: %w", err)
	}
	return &license, nil
}

// Update persists the mutable license fields. Identity fields (number,
// authority, holder, issued date) are deliberately absent from the SET list.
func (r *LicenseRepository) Update(ctx context.Context, license *models.License) error {
	license.UpdatedAt = time.Now().UTC()
	const query = `UPDATE licenses SET title = :title, description = :description, priority = :priority,
	department = :department, renewal_period_days = :renewal_period_days, updated_at = :updated_at
	WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, license)
	if err != nil {
		return fmt.Errorf("update license: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check license update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a license while still in the given pre-submission status.
func (r *LicenseRepository) Delete(ctx context.Context, id string, status models.LicenseStatus) error {
	const query = `DELETE FROM licenses WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("delete license: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check license delete rows: %w", err)
	}
	if rows == 0 {
		if exists, existsErr := r.exists(ctx, id); existsErr == nil && exists {
			return ErrStaleStatus
		}
		return sql.ErrNoRows
	}
	return nil
}

func (r *LicenseRepository) exists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM licenses WHERE id = $1`, id); err != nil {
		return false, err
	}
	return count > 0, nil
}

// LicenseTransitionParams groups the atomic pieces of a workflow transition.
type LicenseTransitionParams struct {
	ID        string
	OldStatus models.LicenseStatus
	NewStatus models.LicenseStatus
	// NewExpiryDate is set by renew only; it moves the expiry in the same
	// statement that flips the status.
	NewExpiryDate *time.Time
	Audit         *models.AuditLog
}

// Transition applies a status change and the audit entry in one transaction
// with an optimistic status predicate; concurrent losers get ErrStaleStatus.
func (r *LicenseRepository) Transition(ctx context.Context, params LicenseTransitionParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin license transition: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	updateQuery := `UPDATE licenses SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	args := []interface{}{params.NewStatus, now, params.ID, params.OldStatus}
	if params.NewExpiryDate != nil {
		updateQuery = `UPDATE licenses SET status = $1, updated_at = $2, expiry_date = $5 WHERE id = $3 AND status = $4`
		args = append(args, *params.NewExpiryDate)
	}
	result, err := tx.ExecContext(ctx, updateQuery, args...)
	if err != nil {
		return fmt.Errorf("transition license status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check license transition rows: %w", err)
	}
	if rows == 0 {
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM licenses WHERE id = $1`, params.ID); err != nil {
			return fmt.Errorf("check license existence: %w", err)
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
		return fmt.Errorf("commit license transition: %w", err)
	}
	return nil
}

// AddCondition inserts a compliance condition for a license.
func (r *LicenseRepository) AddCondition(ctx context.Context, condition *models.LicenseCondition) error {
	if condition.ID == "" {
		condition.ID = uuid.NewString()
	}
	if condition.CreatedAt.IsZero() {
		condition.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO license_conditions (id, license_id, description, due_date, completed, completed_at, created_at)
	VALUES (:id, :license_id, :description, :due_date, :completed, :completed_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, condition); err != nil {
		return fmt.Errorf("add license condition: %w", err)
	}
	return nil
}

// CompleteCondition marks a condition fulfilled.
func (r *LicenseRepository) CompleteCondition(ctx context.Context, licenseID, conditionID string, completedAt time.Time) error {
	const query = `UPDATE license_conditions SET completed = TRUE, completed_at = $3 WHERE id = $1 AND license_id = $2 AND completed = FALSE`
	result, err := r.db.ExecContext(ctx, query, conditionID, licenseID, completedAt)
	if err != nil {
		return fmt.Errorf("complete license condition: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check condition update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListExpirable returns non-terminal licenses whose expiry date has passed,
// for the background sweeper.
func (r *LicenseRepository) ListExpirable(ctx context.Context, asOf time.Time) ([]models.License, error) {
	query := fmt.Sprintf(`SELECT %s FROM licenses
	WHERE expiry_date IS NOT NULL AND expiry_date < $1
	AND status NOT IN ('REJECTED', 'REVOKED', 'EXPIRED')`, licenseColumns)
	var licenses []models.License
	if err := r.db.SelectContext(ctx, &licenses, query, asOf); err != nil {
		return nil, fmt.Errorf("list expirable licenses: %w", err)
	}
	return licenses, nil
}

// List returns licenses matching the filter plus the pre-pagination total.
func (r *LicenseRepository) List(ctx context.Context, filter models.LicenseFilter) ([]models.License, int, error) {
	conditions, args := licenseConditions(filter)
	baseQuery := "FROM licenses"
	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count licenses: %w", err)
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"created_at":     true,
		"title":          true,
		"status":         true,
		"type":           true,
		"priority":       true,
		"issued_date":    true,
		"expiry_date":    true,
		"license_number": true,
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
		licenseColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var licenses []models.License
	if err := r.db.SelectContext(ctx, &licenses, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list licenses: %w", err)
	}
	return licenses, total, nil
}

func licenseConditions(filter models.LicenseFilter) ([]string, []interface{}) {
	conditions := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d OR LOWER(license_number) LIKE $%d OR LOWER(holder_name) LIKE $%d OR LOWER(department) LIKE $%d)",
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
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.IssuedFrom != nil {
		args = append(args, *filter.IssuedFrom)
		conditions = append(conditions, fmt.Sprintf("issued_date >= $%d", len(args)))
	}
	if filter.IssuedTo != nil {
		args = append(args, *filter.IssuedTo)
		conditions = append(conditions, fmt.Sprintf("issued_date <= $%d", len(args)))
	}
	if filter.ExpiryFrom != nil {
		args = append(args, *filter.ExpiryFrom)
		conditions = append(conditions, fmt.Sprintf("expiry_date >= $%d", len(args)))
	}
	if filter.ExpiryTo != nil {
		args = append(args, *filter.ExpiryTo)
		conditions = append(conditions, fmt.Sprintf("expiry_date <= $%d", len(args)))
	}
	if filter.OnlyOverdue {
		conditions = append(conditions, "expiry_date IS NOT NULL AND expiry_date < NOW() AND status NOT IN ('REJECTED', 'REVOKED', 'EXPIRED')")
	}
	if filter.OnlyMine && filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	return conditions, args
}

// Summary aggregates counts over the full license collection.
func (r *LicenseRepository) Summary(ctx context.Context) (*models.LicenseSummary, error) {
	summary := &models.LicenseSummary{}

	const countQuery = `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'ACTIVE') AS active,
		COUNT(*) FILTER (WHERE status = 'ACTIVE' AND expiry_date IS NOT NULL AND expiry_date < NOW() + INTERVAL '30 days') AS expiring,
		COUNT(*) FILTER (WHERE expiry_date IS NOT NULL AND expiry_date < NOW() AND status NOT IN ('REJECTED', 'REVOKED', 'EXPIRED')) AS overdue
	FROM licenses`
	var counts struct {
		Total    int `db:"total"`
		Active   int `db:"active"`
		Expiring int `db:"expiring"`
		Overdue  int `db:"overdue"`
	}
	if err := r.db.GetContext(ctx, &counts, countQuery); err != nil {
		return nil, fmt.Errorf("license summary counts: %w", err)
	}
	summary.TotalCount = counts.Total
	summary.ActiveCount = counts.Active
	summary.ExpiringCount = counts.Expiring
	summary.OverdueCount = counts.Overdue

	groups := []struct {
		query string
		dest  *map[string]int
	}{
		{`SELECT type AS key, COUNT(*) AS count FROM licenses GROUP BY type`, &summary.ByType},
		{`SELECT priority AS key, COUNT(*) AS count FROM licenses GROUP BY priority`, &summary.ByPriority},
		{`SELECT status AS key, COUNT(*) AS count FROM licenses GROUP BY status`, &summary.ByStatus},
	}
	for _, group := range groups {
		var rows []groupCount
		if err := r.db.SelectContext(ctx, &rows, group.query); err != nil {
			return nil, fmt.Errorf("license summary groups: %w", err)
		}
		*group.dest = groupCountsToMap(rows)
	}
	return summary, nil
}
