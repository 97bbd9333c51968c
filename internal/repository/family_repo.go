package repository

import (
	"context"
	"database/sql"
	"fmt"

	"carecoins/internal/database"
	"carecoins/internal/models"
)

// FamilyRepository handles database operations for families and memberships
type FamilyRepository struct {
	db database.DBTX
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db database.DBTX) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *FamilyRepository) WithTx(tx database.DBTX) *FamilyRepository {
	return &FamilyRepository{db: tx}
}

// CreateFamily inserts a family row and returns its ID
func (r *FamilyRepository) CreateFamily(ctx context.Context, name string, monthlyBudget, createdBy int64) (int64, error) {
	query := "INSERT INTO families (name, monthly_coin_budget, created_by) VALUES (?, ?, ?)"
	id, err := r.db.ExecReturningID(ctx, query, name, monthlyBudget, createdBy)
	if err != nil {
		return 0, fmt.Errorf("failed to create family: %w", err)
	}
	return id, nil
}

// GetFamilyByID retrieves a family by ID
func (r *FamilyRepository) GetFamilyByID(ctx context.Context, familyID int64) (*models.Family, error) {
	query := "SELECT id, name, monthly_coin_budget, created_by, created_at FROM families WHERE id = ?"
	family := &models.Family{}
	err := r.db.QueryRow(ctx, query, familyID).Scan(
		&family.ID,
		&family.Name,
		&family.MonthlyCoinBudget,
		&family.CreatedBy,
		&family.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}

	return family, nil
}

// GetUserFamilies lists the families a user belongs to, newest first
func (r *FamilyRepository) GetUserFamilies(ctx context.Context, userID int64) ([]models.FamilySummary, error) {
	query := `
		SELECT f.id, f.name, f.monthly_coin_budget, fm.role, fm.coin_balance
		FROM family_members fm
		INNER JOIN families f ON f.id = fm.family_id
		WHERE fm.user_id = ?
		ORDER BY f.created_at DESC, f.id DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	families := []models.FamilySummary{}
	for rows.Next() {
		var family models.FamilySummary
		if err := rows.Scan(&family.ID, &family.Name, &family.MonthlyCoinBudget, &family.Role, &family.CoinBalance); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, family)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate families: %w", err)
	}

	return families, nil
}

// AddFamilyMember inserts a new membership with a zero balance
func (r *FamilyRepository) AddFamilyMember(ctx context.Context, familyID, userID int64, role models.Role) error {
	query := "INSERT INTO family_members (family_id, user_id, role) VALUES (?, ?, ?)"
	if _, err := r.db.Exec(ctx, query, familyID, userID, string(role)); err != nil {
		return fmt.Errorf("failed to add family member: %w", err)
	}
	return nil
}

// UpsertMembership inserts a membership or overwrites the role of an
// existing one. The coin balance is never touched.
func (r *FamilyRepository) UpsertMembership(ctx context.Context, familyID, userID int64, role models.Role) error {
	query := r.db.GetDialect().UpsertMembershipQuery()
	if _, err := r.db.Exec(ctx, query, familyID, userID, string(role)); err != nil {
		return fmt.Errorf("failed to upsert family member: %w", err)
	}
	return nil
}

const membershipColumns = "family_id, user_id, role, coin_balance, joined_at"

// GetMembership returns the membership of userID in familyID, or nil
func (r *FamilyRepository) GetMembership(ctx context.Context, familyID, userID int64) (*models.Membership, error) {
	query := "SELECT " + membershipColumns + " FROM family_members WHERE family_id = ? AND user_id = ?"
	return r.membership(ctx, query, familyID, userID)
}

// LockMembership reads a membership and holds a row lock on it until the
// transaction ends, on dialects that support row locks
func (r *FamilyRepository) LockMembership(ctx context.Context, familyID, userID int64) (*models.Membership, error) {
	query := "SELECT " + membershipColumns + " FROM family_members WHERE family_id = ? AND user_id = ?" +
		r.db.GetDialect().ForUpdate()
	return r.membership(ctx, query, familyID, userID)
}

func (r *FamilyRepository) membership(ctx context.Context, query string, familyID, userID int64) (*models.Membership, error) {
	m := &models.Membership{}
	err := r.db.QueryRow(ctx, query, familyID, userID).Scan(
		&m.FamilyID,
		&m.UserID,
		&m.Role,
		&m.CoinBalance,
		&m.JoinedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family membership: %w", err)
	}
	return m, nil
}

// CreditBalance adds amount to a member's coin balance and reports how
// many rows were changed
func (r *FamilyRepository) CreditBalance(ctx context.Context, familyID, userID, amount int64) (int64, error) {
	query := "UPDATE family_members SET coin_balance = coin_balance + ? WHERE family_id = ? AND user_id = ?"
	result, err := r.db.Exec(ctx, query, amount, familyID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to credit balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to credit balance: %w", err)
	}
	return affected, nil
}
