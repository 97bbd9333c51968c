package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLDialect implements Dialect for MySQL
type MySQLDialect struct{}

// NewMySQLDialect creates a new MySQL dialect
func NewMySQLDialect() *MySQLDialect {
	return &MySQLDialect{}
}

func (d *MySQLDialect) DriverName() string {
	return "mysql"
}

// DSN forces the options the repositories depend on: DATETIME columns scanned
// as time.Time in UTC, multi-statement migration files, and RowsAffected
// counting matched rows even when an UPDATE leaves them unchanged.
func (d *MySQLDialect) DSN(config DialectConfig) string {
	cfg, err := mysql.ParseDSN(config.URL)
	if err != nil {
		return config.URL
	}
	cfg.ParseTime = true
	cfg.MultiStatements = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	return cfg.FormatDSN()
}

func (d *MySQLDialect) RewriteQuery(query string) string {
	// MySQL uses ? placeholders like SQLite, no rewrite needed
	return query
}

func (d *MySQLDialect) SupportsLastInsertId() bool {
	return true
}

func (d *MySQLDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Ensure foreign key checks are enabled
	if _, err := db.Exec("SET FOREIGN_KEY_CHECKS = 1;"); err != nil {
		return err
	}

	return nil
}

func (d *MySQLDialect) MigrationsSubdir() string {
	return "mysql"
}

func (d *MySQLDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS migrations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			filename VARCHAR(255) UNIQUE NOT NULL,
			executed_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6)
		);
	`
}

func (d *MySQLDialect) ForUpdate() string {
	return " FOR UPDATE"
}

func (d *MySQLDialect) TxPrelude(lockTimeout time.Duration) []string {
	seconds := int64(lockTimeout / time.Second)
	if seconds < 1 {
		return nil
	}
	return []string{fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", seconds)}
}

func (d *MySQLDialect) UpsertUserQuery() string {
	return `
		INSERT INTO users (external_subject_id, email, display_name)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE email = VALUES(email), display_name = VALUES(display_name), updated_at = CURRENT_TIMESTAMP(6)
	`
}

func (d *MySQLDialect) UpsertMembershipQuery() string {
	return `
		INSERT INTO family_members (family_id, user_id, role)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE role = VALUES(role)
	`
}
