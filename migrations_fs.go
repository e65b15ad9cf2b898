package oidcstore

import (
	"embed"
	"io/fs"
)

// migrationsFS contains the SQL migration tree, including the sqlite
// alternative under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the full embedded migration tree.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}
