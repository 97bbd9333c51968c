package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"carecoins/internal/database"
	"carecoins/internal/models"
)

// ActivityRepository handles database operations for activities
type ActivityRepository struct {
	db database.DBTX
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db database.DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ActivityRepository) WithTx(tx database.DBTX) *ActivityRepository {
	return &ActivityRepository{db: tx}
}

const activityColumns = `id, family_id, created_by, assigned_to, title, category, starts_at, ends_at,
	duration_minutes, coin_value, status, approved_by, approved_at, created_at`

// HasOverlap reports whether the assignee already holds a pending or approved
// activity intersecting the half-open window [startsAt, endsAt)
func (r *ActivityRepository) HasOverlap(ctx context.Context, familyID, assigneeID int64, startsAt, endsAt time.Time) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM activities
		WHERE family_id = ?
		  AND assigned_to = ?
		  AND status IN ('pending', 'approved')
		  AND starts_at < ?
		  AND ? < ends_at
	`
	var count int
	if err := r.db.QueryRow(ctx, query, familyID, assigneeID, endsAt, startsAt).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check schedule overlap: %w", err)
	}
	return count > 0, nil
}

// CreateActivity inserts a pending activity and returns its ID
func (r *ActivityRepository) CreateActivity(ctx context.Context, a *models.Activity) (int64, error) {
	query := `
		INSERT INTO activities (family_id, created_by, assigned_to, title, category,
			starts_at, ends_at, duration_minutes, coin_value, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		a.FamilyID, a.CreatedBy, a.AssignedTo, a.Title, string(a.Category),
		a.StartsAt, a.EndsAt, a.DurationMinutes, a.CoinValue, string(models.StatusPending),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create activity: %w", err)
	}
	return id, nil
}

// GetActivityByID retrieves an activity by ID
func (r *ActivityRepository) GetActivityByID(ctx context.Context, id int64) (*models.Activity, error) {
	query := "SELECT " + activityColumns + " FROM activities WHERE id = ?"
	return r.activity(ctx, query, id)
}

// LockActivity reads an activity and holds a row lock on it until the
// transaction ends, on dialects that support row locks
func (r *ActivityRepository) LockActivity(ctx context.Context, id int64) (*models.Activity, error) {
	query := "SELECT " + activityColumns + " FROM activities WHERE id = ?" + r.db.GetDialect().ForUpdate()
	return r.activity(ctx, query, id)
}

func (r *ActivityRepository) activity(ctx context.Context, query string, id int64) (*models.Activity, error) {
	a, err := scanActivity(r.db.QueryRow(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return a, nil
}

// GetFamilyActivities lists a family's activities ordered by start time
func (r *ActivityRepository) GetFamilyActivities(ctx context.Context, familyID int64) ([]models.Activity, error) {
	query := "SELECT " + activityColumns + " FROM activities WHERE family_id = ? ORDER BY starts_at ASC, id ASC"
	rows, err := r.db.Query(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	activities := []models.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activities: %w", err)
	}
	return activities, nil
}

// MarkApproved moves a pending activity to approved and reports how many
// rows changed; zero means the activity was no longer pending
func (r *ActivityRepository) MarkApproved(ctx context.Context, id, approverID int64, approvedAt time.Time) (int64, error) {
	query := `
		UPDATE activities
		SET status = ?, approved_by = ?, approved_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.db.Exec(ctx, query, string(models.StatusApproved), approverID, approvedAt, id, string(models.StatusPending))
	if err != nil {
		return 0, fmt.Errorf("failed to approve activity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to approve activity: %w", err)
	}
	return affected, nil
}

func scanActivity(row scanner) (*models.Activity, error) {
	a := &models.Activity{}
	var approvedBy sql.NullInt64
	var approvedAt sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.FamilyID,
		&a.CreatedBy,
		&a.AssignedTo,
		&a.Title,
		&a.Category,
		&a.StartsAt,
		&a.EndsAt,
		&a.DurationMinutes,
		&a.CoinValue,
		&a.Status,
		&approvedBy,
		&approvedAt,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if approvedBy.Valid {
		a.ApprovedBy = &approvedBy.Int64
	}
	if approvedAt.Valid {
		t := approvedAt.Time.UTC()
		a.ApprovedAt = &t
	}
	a.StartsAt = a.StartsAt.UTC()
	a.EndsAt = a.EndsAt.UTC()
	return a, nil
}
