// Package migrations embeds the schema for every supported dialect.
package migrations

import "embed"

// FS holds postgres/, mysql/ and sqlite/ migration files
//
//go:embed postgres/*.sql mysql/*.sql sqlite/*.sql
var FS embed.FS
