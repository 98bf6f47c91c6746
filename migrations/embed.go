// Package migrations embeds the SQL files that create the fixed tables.
// Resource tables are generated from the SKU schema registry instead.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var Files embed.FS

// FS returns the migrations filesystem
func FS() fs.FS {
	return Files
}
