// Package db holds the SQL schema migrations compiled into the binary.
package db

import "embed"

// Migrations contains migrations/NNNN_name.{up,down}.sql.
//
//go:embed migrations/*.sql
var Migrations embed.FS
