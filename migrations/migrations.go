// Package migrations embeds the SQL schema of the meta database and of every
// tenant database.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed meta/*.sql tenant/*.sql
var files embed.FS

// Meta returns the migrations of the tenant registry database.
func Meta() fs.FS {
	sub, _ := fs.Sub(files, "meta")
	return sub
}

// Tenant returns the migrations applied to each business-unit database.
func Tenant() fs.FS {
	sub, _ := fs.Sub(files, "tenant")
	return sub
}
