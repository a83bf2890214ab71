// Package migrations embeds the schema for each supported SQL dialect.
package migrations

import "embed"

// FS holds <dialect>/NNN_name.up.sql files.
//
//go:embed sqlite/*.sql mysql/*.sql
var FS embed.FS
