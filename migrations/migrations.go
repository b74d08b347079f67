// Package migrations embeds the postgres schema applied by cmd/migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
