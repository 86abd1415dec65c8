// Package migrations embeds the Postgres schema. Every statement is idempotent
// so the full set can be replayed on startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
