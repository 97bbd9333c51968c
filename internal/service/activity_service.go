package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"carecoins/internal/database"
	"carecoins/internal/metrics"
	"carecoins/internal/models"
	"carecoins/internal/repository"
	"carecoins/internal/tracing"
	"carecoins/internal/validation"
)

// ApprovalNotifier is told about approvals after they are committed
type ApprovalNotifier interface {
	NotifyApproval(ctx context.Context, recipient *models.User, activity *models.Activity, balance int64) error
}

// ProposeActivityInput carries a proposal as received from the caller.
// Timestamps are unparsed RFC 3339 strings.
type ProposeActivityInput struct {
	FamilyID   int64
	CreatedBy  int64
	AssignedTo int64
	Title      string
	Category   models.Category
	StartsAt   string
	EndsAt     string
	CoinValue  *int64
}

// ApprovalResult describes a committed approval
type ApprovalResult struct {
	Approved   bool      `json:"approved"`
	ActivityID int64     `json:"activity_id"`
	AssigneeID int64     `json:"assignee_id"`
	CoinValue  int64     `json:"coin_value"`
	Balance    int64     `json:"balance"`
	ApprovedAt time.Time `json:"approved_at"`
}

// ActivityService owns the activity lifecycle: proposal with overlap
// checks, listing, and approval with its coin credit
type ActivityService struct {
	db             *database.DB
	activityRepo   *repository.ActivityRepository
	familyRepo     *repository.FamilyRepository
	ledgerRepo     *repository.LedgerRepository
	userRepo       *repository.UserRepository
	coinsPerMinute int64
	notifier       ApprovalNotifier
	log            logrus.FieldLogger
	now            func() time.Time
}

// ActivityServiceOptions holds the optional collaborators of ActivityService
type ActivityServiceOptions struct {
	CoinsPerMinute int64
	Notifier       ApprovalNotifier
	Logger         logrus.FieldLogger
}

// NewActivityService creates a new activity service
func NewActivityService(
	db *database.DB,
	activityRepo *repository.ActivityRepository,
	familyRepo *repository.FamilyRepository,
	ledgerRepo *repository.LedgerRepository,
	userRepo *repository.UserRepository,
	opts ActivityServiceOptions,
) *ActivityService {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ActivityService{
		db:             db,
		activityRepo:   activityRepo,
		familyRepo:     familyRepo,
		ledgerRepo:     ledgerRepo,
		userRepo:       userRepo,
		coinsPerMinute: opts.CoinsPerMinute,
		notifier:       opts.Notifier,
		log:            logger,
		now:            time.Now,
	}
}

// Propose validates and stores a pending activity. Checks run in a fixed
// order and the first failure is returned.
func (s *ActivityService) Propose(ctx context.Context, in ProposeActivityInput) (activity *models.Activity, err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "ActivityService.Propose",
		attribute.Int64("family.id", in.FamilyID),
		attribute.Int64("assignee.id", in.AssignedTo),
	)
	defer func() {
		metrics.RecordOperation("propose", outcome(err), time.Since(start))
		tracing.End(span, err)
	}()

	title := strings.TrimSpace(in.Title)
	if in.FamilyID == 0 || in.AssignedTo == 0 || title == "" || in.Category == "" ||
		strings.TrimSpace(in.StartsAt) == "" || strings.TrimSpace(in.EndsAt) == "" {
		return nil, reject(ErrInvalidInput, "Missing required fields.")
	}
	if title, err = validation.NormalizeName("title", title); err != nil {
		return nil, reject(ErrInvalidInput, err.Error())
	}
	if !in.Category.Valid() {
		return nil, reject(ErrInvalidInput, "Invalid category.")
	}
	schedule, err := validation.ParseSchedule(in.StartsAt, in.EndsAt)
	if err != nil {
		return nil, reject(ErrInvalidSchedule, "Invalid schedule. Minimum duration is 15 minutes.")
	}

	coinValue := schedule.DurationMinutes * s.coinsPerMinute
	if in.CoinValue != nil && *in.CoinValue != 0 {
		coinValue = *in.CoinValue
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.familyRepo.WithTx(tx)
		activities := s.activityRepo.WithTx(tx)

		// Taken first so that every later read in this transaction sees
		// proposals committed by whoever held the lock before us.
		assignee, err := families.LockMembership(ctx, in.FamilyID, in.AssignedTo)
		if err != nil {
			return err
		}

		creator, err := families.GetMembership(ctx, in.FamilyID, in.CreatedBy)
		if err != nil {
			return err
		}
		if creator == nil {
			return reject(ErrForbidden, "Not a family member.")
		}
		if assignee == nil {
			return reject(ErrInvalidInput, "Assignee is not a family member.")
		}
		if coinValue < 0 {
			return reject(ErrInvalidInput, "coinValue must not be negative.")
		}

		overlap, err := activities.HasOverlap(ctx, in.FamilyID, in.AssignedTo, schedule.StartsAt, schedule.EndsAt)
		if err != nil {
			return err
		}
		if overlap {
			return reject(ErrScheduleConflict, "Time-slot overlaps with an existing activity.")
		}

		id, err := activities.CreateActivity(ctx, &models.Activity{
			FamilyID:        in.FamilyID,
			CreatedBy:       in.CreatedBy,
			AssignedTo:      in.AssignedTo,
			Title:           title,
			Category:        in.Category,
			StartsAt:        schedule.StartsAt,
			EndsAt:          schedule.EndsAt,
			DurationMinutes: schedule.DurationMinutes,
			CoinValue:       coinValue,
		})
		if err != nil {
			return err
		}

		activity, err = activities.GetActivityByID(ctx, id)
		return err
	})
	if database.IsExclusionViolation(err) {
		return nil, &Rejection{Kind: ErrScheduleConflict, Message: "Time-slot overlaps with an existing activity.", Err: err}
	}
	if err != nil {
		return nil, storeError(err)
	}
	return activity, nil
}

// List returns a family's activities ordered by start time. Only members
// may list.
func (s *ActivityService) List(ctx context.Context, familyID, userID int64) ([]models.Activity, error) {
	if familyID == 0 {
		return nil, reject(ErrInvalidInput, "familyId query param is required.")
	}

	membership, err := s.familyRepo.GetMembership(ctx, familyID, userID)
	if err != nil {
		return nil, storeError(err)
	}
	if membership == nil {
		return nil, reject(ErrForbidden, "Not a family member.")
	}

	activities, err := s.activityRepo.GetFamilyActivities(ctx, familyID)
	if err != nil {
		return nil, storeError(err)
	}
	return activities, nil
}

// Approve moves a pending activity to approved, credits the assignee and
// appends the ledger entry, all in one transaction
func (s *ActivityService) Approve(ctx context.Context, activityID, approverID int64) (result *ApprovalResult, err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "ActivityService.Approve",
		attribute.Int64("activity.id", activityID),
		attribute.Int64("approver.id", approverID),
	)
	defer func() {
		metrics.RecordOperation("approve", outcome(err), time.Since(start))
		tracing.End(span, err)
	}()

	if activityID <= 0 {
		return nil, reject(ErrInvalidInput, "Invalid activityId.")
	}

	var approved *models.Activity
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.familyRepo.WithTx(tx)
		activities := s.activityRepo.WithTx(tx)

		activity, err := activities.LockActivity(ctx, activityID)
		if err != nil {
			return err
		}
		if activity == nil {
			return reject(ErrNotFound, "Activity not found.")
		}
		if !activity.Status.CanApprove() {
			return reject(ErrInvalidTransition, "Only pending activities can be approved.")
		}

		approver, err := families.GetMembership(ctx, activity.FamilyID, approverID)
		if err != nil {
			return err
		}
		if approver == nil || approver.Role != models.RoleMainCaregiver {
			return reject(ErrForbidden, "Only main caregivers can approve activities.")
		}

		approvedAt := validation.NormalizeTime(s.now())
		changed, err := activities.MarkApproved(ctx, activity.ID, approverID, approvedAt)
		if err != nil {
			return err
		}
		if changed == 0 {
			return reject(ErrInvalidTransition, "Only pending activities can be approved.")
		}

		credited, err := families.CreditBalance(ctx, activity.FamilyID, activity.AssignedTo, activity.CoinValue)
		if err != nil {
			return err
		}
		if credited == 0 {
			return fmt.Errorf("failed to credit balance: assignee %d has no membership in family %d", activity.AssignedTo, activity.FamilyID)
		}

		if _, err := s.ledgerRepo.WithTx(tx).AppendEntry(ctx, &models.LedgerEntry{
			FamilyID:   activity.FamilyID,
			UserID:     activity.AssignedTo,
			ActivityID: activity.ID,
			Amount:     activity.CoinValue,
			Reason:     models.ReasonActivityApproved,
		}); err != nil {
			return err
		}

		assignee, err := families.GetMembership(ctx, activity.FamilyID, activity.AssignedTo)
		if err != nil {
			return err
		}
		if assignee == nil {
			return errors.New("assignee membership disappeared during approval")
		}

		activity.Status = models.StatusApproved
		activity.ApprovedBy = &approverID
		activity.ApprovedAt = &approvedAt
		approved = activity

		result = &ApprovalResult{
			Approved:   true,
			ActivityID: activity.ID,
			AssigneeID: activity.AssignedTo,
			CoinValue:  activity.CoinValue,
			Balance:    assignee.CoinBalance,
			ApprovedAt: approvedAt,
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	metrics.RecordCoinsCredited(result.CoinValue)
	s.notifyApproval(ctx, approved, result.Balance)
	return result, nil
}

// notifyApproval runs after commit; failures are logged and dropped
func (s *ActivityService) notifyApproval(ctx context.Context, activity *models.Activity, balance int64) {
	if s.notifier == nil {
		return
	}
	entry := s.log.WithFields(logrus.Fields{
		"activity_id": activity.ID,
		"assignee_id": activity.AssignedTo,
	})

	recipient, err := s.userRepo.GetByID(ctx, activity.AssignedTo)
	if err != nil {
		entry.WithError(err).Warn("Failed to load approval notification recipient")
		return
	}
	if recipient == nil {
		return
	}
	if err := s.notifier.NotifyApproval(ctx, recipient, activity, balance); err != nil {
		entry.WithError(err).Warn("Failed to send approval notification")
	}
}
