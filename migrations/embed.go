// Package migrations embeds the goose SQL migrations so commands and
// integration tests run the same schema regardless of working directory.
package migrations

import "embed"

// FS holds every *.sql migration in this directory.
//
//go:embed *.sql
var FS embed.FS
