// Package migrations embeds the versioned schema migration scripts.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
