package repository

import (
	"context"
	"fmt"

	"carecoins/internal/database"
	"carecoins/internal/models"
)

// LedgerRepository reads and appends coin ledger entries. There is no
// update or delete; the schema rejects both.
type LedgerRepository struct {
	db database.DBTX
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db database.DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *LedgerRepository) WithTx(tx database.DBTX) *LedgerRepository {
	return &LedgerRepository{db: tx}
}

// AppendEntry writes one ledger entry and returns its ID
func (r *LedgerRepository) AppendEntry(ctx context.Context, e *models.LedgerEntry) (int64, error) {
	query := "INSERT INTO coin_ledger (family_id, user_id, activity_id, amount, reason) VALUES (?, ?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(ctx, query, e.FamilyID, e.UserID, e.ActivityID, e.Amount, e.Reason)
	if err != nil {
		return 0, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return id, nil
}

const ledgerColumns = "id, family_id, user_id, activity_id, amount, reason, created_at"

// GetFamilyEntries lists a family's ledger entries, newest first
func (r *LedgerRepository) GetFamilyEntries(ctx context.Context, familyID int64) ([]models.LedgerEntry, error) {
	query := "SELECT " + ledgerColumns + " FROM coin_ledger WHERE family_id = ? ORDER BY created_at DESC, id DESC"
	return r.entries(ctx, query, familyID)
}

// GetAllEntries lists every ledger entry in insertion order
func (r *LedgerRepository) GetAllEntries(ctx context.Context) ([]models.LedgerEntry, error) {
	query := "SELECT " + ledgerColumns + " FROM coin_ledger ORDER BY id ASC"
	return r.entries(ctx, query)
}

func (r *LedgerRepository) entries(ctx context.Context, query string, args ...interface{}) ([]models.LedgerEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.FamilyID, &e.UserID, &e.ActivityID, &e.Amount, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger: %w", err)
	}
	return entries, nil
}

// GetBalanceChecks returns, for every membership of familyID (or of every
// family when familyID is 0), the cached balance next to the ledger total
func (r *LedgerRepository) GetBalanceChecks(ctx context.Context, familyID int64) ([]models.BalanceCheck, error) {
	query := `
		SELECT fm.family_id, fm.user_id, fm.coin_balance, COALESCE(SUM(cl.amount), 0)
		FROM family_members fm
		LEFT JOIN coin_ledger cl ON cl.family_id = fm.family_id AND cl.user_id = fm.user_id
	`
	var args []interface{}
	if familyID != 0 {
		query += " WHERE fm.family_id = ?"
		args = append(args, familyID)
	}
	query += " GROUP BY fm.family_id, fm.user_id, fm.coin_balance ORDER BY fm.family_id, fm.user_id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	checks := []models.BalanceCheck{}
	for rows.Next() {
		var c models.BalanceCheck
		if err := rows.Scan(&c.FamilyID, &c.UserID, &c.CoinBalance, &c.LedgerTotal); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}
	return checks, nil
}
