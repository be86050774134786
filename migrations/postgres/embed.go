// Package migrations embebe el esquema SQL del keystore Postgres.
package migrations

import "embed"

// FS contiene las migraciones, aplicadas en orden de nombre.
//
//go:embed *.sql
var FS embed.FS
