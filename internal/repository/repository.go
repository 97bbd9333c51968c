package repository

import "database/sql"

// nullString stores empty strings as NULL
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type scanner interface {
	Scan(dest ...interface{}) error
}
