package migrations

import "embed"

// Files holds the users, sessions and status_checks schema.
//
//go:embed *.sql
var Files embed.FS
