// Package db embeds the database schema applied on service startup.
package db

import _ "embed"

// Schema contains the idempotent DDL for the order service tables.
//
//go:embed migrations/001_schema.sql
var Schema string
