package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"carecoins/internal/database"
	"carecoins/internal/models"
	"carecoins/internal/repository"
)

// LedgerExport is the JSON document written by Export
type LedgerExport struct {
	Version      string                `json:"version"`
	ExportedAt   time.Time             `json:"exported_at"`
	DatabaseType string                `json:"database_type"`
	Entries      []models.LedgerEntry  `json:"entries"`
	Balances     []models.BalanceCheck `json:"balances"`
}

// ReconcileReport is the outcome of comparing cached balances with the ledger
type ReconcileReport struct {
	Consistent bool                  `json:"consistent"`
	Checked    int                   `json:"checked"`
	Mismatches []models.BalanceCheck `json:"mismatches"`
}

// LedgerService exposes the read side of the coin ledger
type LedgerService struct {
	db         *database.DB
	ledgerRepo *repository.LedgerRepository
	familyRepo *repository.FamilyRepository
}

// NewLedgerService creates a new ledger service
func NewLedgerService(db *database.DB, ledgerRepo *repository.LedgerRepository, familyRepo *repository.FamilyRepository) *LedgerService {
	return &LedgerService{db: db, ledgerRepo: ledgerRepo, familyRepo: familyRepo}
}

// History returns the ledger entries of a family, newest first. Only
// members may read it.
func (s *LedgerService) History(ctx context.Context, familyID, userID int64) ([]models.LedgerEntry, error) {
	membership, err := s.familyRepo.GetMembership(ctx, familyID, userID)
	if err != nil {
		return nil, storeError(err)
	}
	if membership == nil {
		return nil, reject(ErrForbidden, "Not a family member.")
	}

	entries, err := s.ledgerRepo.GetFamilyEntries(ctx, familyID)
	if err != nil {
		return nil, storeError(err)
	}
	return entries, nil
}

// Reconcile compares every membership balance of familyID (all families
// when familyID is 0) with the sum of its ledger entries
func (s *LedgerService) Reconcile(ctx context.Context, familyID int64) (*ReconcileReport, error) {
	checks, err := s.ledgerRepo.GetBalanceChecks(ctx, familyID)
	if err != nil {
		return nil, storeError(err)
	}

	report := &ReconcileReport{Checked: len(checks), Mismatches: []models.BalanceCheck{}}
	for _, c := range checks {
		if !c.Consistent() {
			report.Mismatches = append(report.Mismatches, c)
		}
	}
	report.Consistent = len(report.Mismatches) == 0
	return report, nil
}

// ReconcileFamily is Reconcile restricted to main caregivers of familyID
func (s *LedgerService) ReconcileFamily(ctx context.Context, familyID, userID int64) (*ReconcileReport, error) {
	membership, err := s.familyRepo.GetMembership(ctx, familyID, userID)
	if err != nil {
		return nil, storeError(err)
	}
	if membership == nil || membership.Role != models.RoleMainCaregiver {
		return nil, reject(ErrForbidden, "Only main caregivers can reconcile the ledger.")
	}
	return s.Reconcile(ctx, familyID)
}

// Export writes every ledger entry and balance as indented JSON
func (s *LedgerService) Export(ctx context.Context, w io.Writer) error {
	export := &LedgerExport{
		Version:      "1.0",
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.db.GetDialect().DriverName(),
	}

	var err error
	if export.Entries, err = s.ledgerRepo.GetAllEntries(ctx); err != nil {
		return fmt.Errorf("failed to export ledger entries: %w", err)
	}
	if export.Balances, err = s.ledgerRepo.GetBalanceChecks(ctx, 0); err != nil {
		return fmt.Errorf("failed to export balances: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}
