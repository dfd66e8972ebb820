// Package migrations embeds the SQL schema for the PostgreSQL replica store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
