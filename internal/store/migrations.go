package store

import "embed"

// MigrationsFS embeds the schema migrations compiled into the binary so
// deployment never depends on a separate migrations directory on disk.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
