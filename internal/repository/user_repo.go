package repository

import (
	"context"
	"database/sql"
	"fmt"

	"carecoins/internal/database"
	"carecoins/internal/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *UserRepository) WithTx(tx database.DBTX) *UserRepository {
	return &UserRepository{db: tx}
}

const userColumns = "id, external_subject_id, email, display_name, created_at, updated_at"

// UpsertBySubject inserts the user or refreshes email and display name,
// keyed by the identity provider's subject, and returns the stored row
func (r *UserRepository) UpsertBySubject(ctx context.Context, subject, email, displayName string) (*models.User, error) {
	query := r.db.GetDialect().UpsertUserQuery()
	if _, err := r.db.Exec(ctx, query, subject, nullString(email), nullString(displayName)); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	user, err := r.GetBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("failed to upsert user: no row for subject after write")
	}
	return user, nil
}

// GetBySubject retrieves a user by external subject id
func (r *UserRepository) GetBySubject(ctx context.Context, subject string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE external_subject_id = ?"
	user, err := scanUser(r.db.QueryRow(ctx, query, subject))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	var email, displayName sql.NullString
	err := row.Scan(
		&user.ID,
		&user.ExternalSubjectID,
		&email,
		&displayName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Email = email.String
	user.DisplayName = displayName.String
	return user, nil
}
