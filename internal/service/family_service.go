package service

import (
	"context"
	"time"

	"carecoins/internal/config"
	"carecoins/internal/database"
	"carecoins/internal/metrics"
	"carecoins/internal/models"
	"carecoins/internal/repository"
	"carecoins/internal/tracing"
	"carecoins/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// FamilyService handles families and memberships
type FamilyService struct {
	db            *database.DB
	familyRepo    *repository.FamilyRepository
	joinPolicy    string
	defaultBudget int64
}

// NewFamilyService creates a new family service. An empty joinPolicy means
// config.JoinPolicyOpen.
func NewFamilyService(db *database.DB, familyRepo *repository.FamilyRepository, joinPolicy string, defaultBudget int64) *FamilyService {
	if joinPolicy == "" {
		joinPolicy = config.JoinPolicyOpen
	}
	return &FamilyService{
		db:            db,
		familyRepo:    familyRepo,
		joinPolicy:    joinPolicy,
		defaultBudget: defaultBudget,
	}
}

// CreateFamily creates a family with userID as its main caregiver.
// A nil budget uses the configured default.
func (s *FamilyService) CreateFamily(ctx context.Context, userID int64, name string, budget *int64) (family *models.Family, err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "FamilyService.CreateFamily", attribute.Int64("user.id", userID))
	defer func() {
		metrics.RecordOperation("create_family", outcome(err), time.Since(start))
		tracing.End(span, err)
	}()

	name, verr := validation.NormalizeName("name", name)
	if verr != nil {
		return nil, reject(ErrInvalidInput, "name is required.")
	}
	monthlyBudget := s.defaultBudget
	if budget != nil {
		monthlyBudget = *budget
	}
	if monthlyBudget < 0 {
		return nil, reject(ErrInvalidInput, "monthlyCoinBudget must not be negative.")
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.familyRepo.WithTx(tx)

		familyID, err := families.CreateFamily(ctx, name, monthlyBudget, userID)
		if err != nil {
			return err
		}
		if err := families.AddFamilyMember(ctx, familyID, userID, models.RoleMainCaregiver); err != nil {
			return err
		}

		family, err = families.GetFamilyByID(ctx, familyID)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}
	return family, nil
}

// ListFamilies returns the families userID belongs to, newest first
func (s *FamilyService) ListFamilies(ctx context.Context, userID int64) ([]models.FamilySummary, error) {
	families, err := s.familyRepo.GetUserFamilies(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	return families, nil
}

// CheckMembership returns the membership of userID in familyID, or nil when
// there is none
func (s *FamilyService) CheckMembership(ctx context.Context, familyID, userID int64) (*models.Membership, error) {
	membership, err := s.familyRepo.GetMembership(ctx, familyID, userID)
	if err != nil {
		return nil, storeError(err)
	}
	return membership, nil
}

// RequireMembership is CheckMembership that rejects non-members
func (s *FamilyService) RequireMembership(ctx context.Context, familyID, userID int64) (*models.Membership, error) {
	membership, err := s.CheckMembership(ctx, familyID, userID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, reject(ErrForbidden, "Not a family member.")
	}
	return membership, nil
}

// JoinFamily adds userID to familyID with role, or changes the role of an
// existing membership. An empty role means member.
func (s *FamilyService) JoinFamily(ctx context.Context, familyID, userID int64, role models.Role) (err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "FamilyService.JoinFamily",
		attribute.Int64("family.id", familyID),
		attribute.Int64("user.id", userID),
		attribute.String("role", string(role)),
	)
	defer func() {
		metrics.RecordOperation("join_family", outcome(err), time.Since(start))
		tracing.End(span, err)
	}()

	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return reject(ErrInvalidInput, "Invalid role.")
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.familyRepo.WithTx(tx)

		family, err := families.GetFamilyByID(ctx, familyID)
		if err != nil {
			return err
		}
		if family == nil {
			return reject(ErrNotFound, "Family not found.")
		}

		if s.joinPolicy == config.JoinPolicyGuarded {
			current, err := families.LockMembership(ctx, familyID, userID)
			if err != nil {
				return err
			}
			ceiling := models.RoleMember
			if current != nil {
				ceiling = current.Role
			}
			if role.Rank() > ceiling.Rank() {
				return reject(ErrForbidden, "You cannot raise your own role.")
			}
		}

		return families.UpsertMembership(ctx, familyID, userID, role)
	})
	return storeError(err)
}
