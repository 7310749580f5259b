// Package migrations embeds the SQL schema of the messages table, applied by
// the database package at start-up.
package migrations

import "embed"

// FS holds the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
