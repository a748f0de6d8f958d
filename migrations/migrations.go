// Package migrations embeds the database schema.
package migrations

import _ "embed"

// Schema is the full DDL for the orders database.
//
//go:embed schema.sql
var Schema string
