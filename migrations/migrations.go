// Package migrations embeds the goose SQL migrations of the item service.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
