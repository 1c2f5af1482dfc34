// Package migrations embeds the SQL schema files applied by the
// postgres and clickhouse helpers.
package migrations

import "embed"

// PostgresFS holds the PostgreSQL schema for runs and results.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the ClickHouse schema for snapshot series.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
