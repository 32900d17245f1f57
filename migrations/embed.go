// Package migrations embeds the PostgreSQL schema.
package migrations

import "embed"

// FS holds the forward-only SQL migrations applied at startup.
//
//go:embed *.sql
var FS embed.FS
