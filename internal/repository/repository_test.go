package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carecoins/internal/database"
	"carecoins/internal/models"
)

func newMock(t *testing.T, dialect database.Dialect) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		sqlDB.Close()
	})
	return database.New(sqlDB, dialect, time.Second), mock
}

var (
	userCols     = []string{"id", "external_subject_id", "email", "display_name", "created_at", "updated_at"}
	activityCols = []string{"id", "family_id", "created_by", "assigned_to", "title", "category", "starts_at", "ends_at",
		"duration_minutes", "coin_value", "status", "approved_by", "approved_at", "created_at"}
)

func TestUpsertBySubjectStoresEmptyAsNull(t *testing.T) {
	db, mock := newMock(t, database.NewSQLiteDialect())
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO users .* ON CONFLICT \\(external_subject_id\\)").
		WithArgs("sub-1", "a@example.com", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT .* FROM users WHERE external_subject_id = \\?").
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "sub-1", "a@example.com", nil, now, now))

	user, err := NewUserRepository(db).UpsertBySubject(context.Background(), "sub-1", "a@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "a@example.com", user.Email)
	assert.Empty(t, user.DisplayName)
}

func TestUpsertBySubjectMySQL(t *testing.T) {
	db, mock := newMock(t, database.NewMySQLDialect())
	now := time.Now().UTC()

	mock.ExpectExec("ON DUPLICATE KEY UPDATE email = VALUES\\(email\\)").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery("SELECT .* FROM users").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(7, "sub-7", nil, "Sam", now, now))

	user, err := NewUserRepository(db).UpsertBySubject(context.Background(), "sub-7", "", "Sam")
	require.NoError(t, err)
	assert.Equal(t, "Sam", user.DisplayName)
}

func TestGetMembershipMissing(t *testing.T) {
	db, mock := newMock(t, database.NewSQLiteDialect())

	mock.ExpectQuery("SELECT .* FROM family_members WHERE family_id = \\? AND user_id = \\?$").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"family_id", "user_id", "role", "coin_balance", "joined_at"}))

	m, err := NewFamilyRepository(db).GetMembership(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestLockMembershipPostgres(t *testing.T) {
	db, mock := newMock(t, database.NewPostgresDialect())

	mock.ExpectQuery(regexp.QuoteMeta("FROM family_members WHERE family_id = $1 AND user_id = $2 FOR UPDATE")).
		WithArgs(int64(3), int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"family_id", "user_id", "role", "coin_balance", "joined_at"}).
			AddRow(3, 4, "member", 0, time.Now()))

	m, err := NewFamilyRepository(db).LockMembership(context.Background(), 3, 4)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, models.RoleMember, m.Role)
}

func TestCreditBalanceReportsRows(t *testing.T) {
	db, mock := newMock(t, database.NewSQLiteDialect())

	mock.ExpectExec(regexp.QuoteMeta("UPDATE family_members SET coin_balance = coin_balance + ?")).
		WithArgs(int64(30), int64(1), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := NewFamilyRepository(db).CreditBalance(context.Background(), 1, 9, 30)
	require.NoError(t, err)
	assert.Zero(t, affected)
}

func TestHasOverlapUsesHalfOpenBounds(t *testing.T) {
	db, mock := newMock(t, database.NewSQLiteDialect())
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	// starts_at < proposed end AND proposed start < ends_at
	mock.ExpectQuery("SELECT COUNT\\(\\*\\)\\s+FROM activities").
		WithArgs(int64(1), int64(2), end, start).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	overlap, err := NewActivityRepository(db).HasOverlap(context.Background(), 1, 2, start, end)
	require.NoError(t, err)
	assert.True(t, overlap)
}

func TestLockActivityScansApproval(t *testing.T) {
	db, mock := newMock(t, database.NewMySQLDialect())
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	approvedAt := start.Add(2 * time.Hour)

	mock.ExpectQuery("FROM activities WHERE id = \\? FOR UPDATE").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(activityCols).AddRow(
			5, 1, 2, 3, "Dishes", "household", start, start.Add(30*time.Minute),
			30, 30, "approved", 2, approvedAt, start))

	a, err := NewActivityRepository(db).LockActivity(context.Background(), 5)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, models.StatusApproved, a.Status)
	require.NotNil(t, a.ApprovedBy)
	assert.Equal(t, int64(2), *a.ApprovedBy)
	require.NotNil(t, a.ApprovedAt)
	assert.True(t, a.ApprovedAt.Equal(approvedAt))
}

func TestMarkApprovedOnlyFromPending(t *testing.T) {
	db, mock := newMock(t, database.NewPostgresDialect())
	at := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $4 AND status = $5")).
		WithArgs("approved", int64(2), at, int64(5), "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := NewActivityRepository(db).MarkApproved(context.Background(), 5, 2, at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
}

func TestCreateActivityPostgresReturning(t *testing.T) {
	db, mock := newMock(t, database.NewPostgresDialect())
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO activities .* RETURNING id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	id, err := NewActivityRepository(db).CreateActivity(context.Background(), &models.Activity{
		FamilyID: 1, CreatedBy: 2, AssignedTo: 3, Title: "Walk", Category: models.CategoryCare,
		StartsAt: start, EndsAt: start.Add(time.Hour), DurationMinutes: 60, CoinValue: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
}

func TestGetBalanceChecksFilter(t *testing.T) {
	t.Run("one family", func(t *testing.T) {
		db, mock := newMock(t, database.NewSQLiteDialect())
		mock.ExpectQuery("WHERE fm.family_id = \\? GROUP BY").
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"family_id", "user_id", "coin_balance", "total"}).
				AddRow(4, 1, 30, 30).
				AddRow(4, 2, 10, 0))

		checks, err := NewLedgerRepository(db).GetBalanceChecks(context.Background(), 4)
		require.NoError(t, err)
		require.Len(t, checks, 2)
		assert.True(t, checks[0].Consistent())
		assert.False(t, checks[1].Consistent())
	})

	t.Run("all families", func(t *testing.T) {
		db, mock := newMock(t, database.NewSQLiteDialect())
		mock.ExpectQuery("LEFT JOIN coin_ledger cl .*\\s+GROUP BY").
			WithArgs().
			WillReturnRows(sqlmock.NewRows([]string{"family_id", "user_id", "coin_balance", "total"}))

		checks, err := NewLedgerRepository(db).GetBalanceChecks(context.Background(), 0)
		require.NoError(t, err)
		assert.Empty(t, checks)
	})
}

func TestGetFamilyEntriesNewestFirst(t *testing.T) {
	db, mock := newMock(t, database.NewSQLiteDialect())
	now := time.Now().UTC()

	mock.ExpectQuery("FROM coin_ledger WHERE family_id = \\? ORDER BY created_at DESC, id DESC").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "family_id", "user_id", "activity_id", "amount", "reason", "created_at"}).
			AddRow(2, 1, 3, 8, 45, models.ReasonActivityApproved, now).
			AddRow(1, 1, 3, 7, 30, models.ReasonActivityApproved, now.Add(-time.Hour)))

	entries, err := NewLedgerRepository(db).GetFamilyEntries(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].ID)
}
