package database

import (
	"database/sql"
	"regexp"
	"strconv"
	"time"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// SupportsLastInsertId returns true if the driver supports LastInsertId()
	SupportsLastInsertId() bool

	// ConfigureConnection applies any database-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// CreateMigrationsTableQuery returns the SQL to create the migrations tracking table
	CreateMigrationsTableQuery() string

	// ForUpdate returns the row-locking suffix for SELECT statements, or "" when
	// the engine serialises writers on its own
	ForUpdate() string

	// TxPrelude returns statements run at the start of every transaction
	TxPrelude(lockTimeout time.Duration) []string

	// UpsertUserQuery inserts a user or refreshes email/display_name by external subject
	UpsertUserQuery() string

	// UpsertMembershipQuery inserts a membership or overwrites its role
	UpsertMembershipQuery() string
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

// placeholderRegexp matches ? placeholders not inside quotes
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

// ON CONFLICT upserts shared by postgres and sqlite
const (
	onConflictUpsertUser = `
		INSERT INTO users (external_subject_id, email, display_name)
		VALUES (?, ?, ?)
		ON CONFLICT (external_subject_id)
		DO UPDATE SET email = excluded.email, display_name = excluded.display_name, updated_at = CURRENT_TIMESTAMP
	`
	onConflictUpsertMembership = `
		INSERT INTO family_members (family_id, user_id, role)
		VALUES (?, ?, ?)
		ON CONFLICT (family_id, user_id)
		DO UPDATE SET role = excluded.role
	`
)
