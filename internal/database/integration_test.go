package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"carecoins/migrations"
)

func openMigrated(t *testing.T) *DB {
	t.Helper()

	db, err := Initialize(filepath.Join(t.TempDir(), "carecoins.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// TestDatabaseIntegration tests the complete database lifecycle
func TestDatabaseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openMigrated(t)
	ctx := context.Background()

	tables := []string{"users", "families", "family_members", "activities", "coin_ledger", "migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	// A second run applies nothing
	applied, err := db.RunMigrations(ctx, migrations.FS)
	if err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("Expected no migrations on second run, got %v", applied)
	}
}

// TestWithTxCommitAndRollback tests transaction support
func TestWithTxCommitAndRollback(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openMigrated(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecReturningID(ctx, "INSERT INTO users (external_subject_id, email) VALUES (?, ?)", "sub-1", "one@example.com")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	errAbort := errors.New("abort")
	err = db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.Exec(ctx, "INSERT INTO users (external_subject_id) VALUES (?)", "sub-2"); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("Expected abort error, got %v", err)
	}

	var count int
	if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		t.Fatalf("Failed to count users: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 user after rollback, got %d", count)
	}
}

func TestUniqueSubjectIsConflict(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openMigrated(t)
	ctx := context.Background()

	if _, err := db.Exec(ctx, "INSERT INTO users (external_subject_id) VALUES (?)", "dup"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	_, err := db.Exec(ctx, "INSERT INTO users (external_subject_id) VALUES (?)", "dup")
	if !errors.Is(Classify(err), ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
}

func TestLedgerIsAppendOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openMigrated(t)
	ctx := context.Background()

	userID, err := db.ExecReturningID(ctx, "INSERT INTO users (external_subject_id) VALUES (?)", "ledger-user")
	if err != nil {
		t.Fatal(err)
	}
	familyID, err := db.ExecReturningID(ctx, "INSERT INTO families (name, created_by) VALUES (?, ?)", "Ledger", userID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(ctx, "INSERT INTO family_members (family_id, user_id, role) VALUES (?, ?, 'member')", familyID, userID); err != nil {
		t.Fatal(err)
	}
	activityID, err := db.ExecReturningID(ctx, `
		INSERT INTO activities (family_id, created_by, assigned_to, title, category, starts_at, ends_at, duration_minutes, coin_value)
		VALUES (?, ?, ?, 'Dishes', 'household', '2026-01-01 10:00:00+00:00', '2026-01-01 10:30:00+00:00', 30, 30)`,
		familyID, userID, userID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(ctx, "INSERT INTO coin_ledger (family_id, user_id, activity_id, amount, reason) VALUES (?, ?, ?, 30, 'activity_approved')",
		familyID, userID, activityID); err != nil {
		t.Fatal(err)
	}

	if _, err := db.Exec(ctx, "UPDATE coin_ledger SET amount = 100"); err == nil {
		t.Error("Expected ledger update to be rejected")
	}
	if _, err := db.Exec(ctx, "DELETE FROM coin_ledger"); err == nil {
		t.Error("Expected ledger delete to be rejected")
	}
	_, err = db.Exec(ctx, "INSERT INTO coin_ledger (family_id, user_id, activity_id, amount, reason) VALUES (?, ?, ?, 30, 'activity_approved')",
		familyID, userID, activityID)
	if !errors.Is(Classify(err), ErrConflict) {
		t.Errorf("Expected duplicate approval entry to conflict, got %v", err)
	}
}

// TestConcurrentAccess tests concurrent database access
func TestConcurrentAccess(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openMigrated(t)
	ctx := context.Background()

	if _, err := db.Exec(ctx, "INSERT INTO users (external_subject_id, display_name) VALUES (?, ?)", "concurrent", "Concurrent"); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var name string
			err := db.QueryRow(ctx, "SELECT display_name FROM users WHERE external_subject_id = ?", "concurrent").Scan(&name)
			if err != nil {
				t.Errorf("Concurrent read failed: %v", err)
				return
			}
			if name != "Concurrent" {
				t.Errorf("Expected display name 'Concurrent', got '%s'", name)
			}
		}()
	}
	wg.Wait()
}
