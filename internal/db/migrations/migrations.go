package migrations

import "embed"

// FS holds the SQL migrations applied at process start.
//
//go:embed *.sql
var FS embed.FS
