package postgres

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// RenderMigration fills the {{table}} and {{geom_index}} placeholders of a
// migration file with sanitized identifiers for table. An empty table means
// DefaultTable.
func RenderMigration(sql, table string) string {
	if table == "" {
		table = DefaultTable
	}
	return strings.NewReplacer(
		"{{table}}", pgx.Identifier{table}.Sanitize(),
		"{{geom_index}}", pgx.Identifier{table + "_geom_idx"}.Sanitize(),
	).Replace(sql)
}
