// Package migrations holds the ordered SQL files applied by cmd/migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
