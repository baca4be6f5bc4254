// Package migrations embeds the ledger schema migrations so that the server,
// the migrate CLI and integration tests apply the same files.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql files
//
//go:embed *.sql
var FS embed.FS
