package postgres

import (
	"strconv"
	"strings"

	"github.com/pratik-mahalle/skuprice/internal/domain/sku"
)

// Dialect is the SQL flavour of the connected store
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DialectFor maps a configured driver name to its dialect
func DialectFor(driver string) Dialect {
	if driver == "postgres" {
		return DialectPostgres
	}
	return DialectSQLite
}

// Rebind rewrites ? placeholders to $n for PostgreSQL. Question marks inside
// quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ColumnType returns the column type used for a field type
func (d Dialect) ColumnType(t sku.FieldType) string {
	switch t {
	case sku.FieldInteger:
		return "BIGINT"
	case sku.FieldDecimal:
		return "NUMERIC"
	case sku.FieldBoolean:
		return "BOOLEAN"
	case sku.FieldDate:
		return "DATE"
	case sku.FieldTimestamp:
		return "TIMESTAMP"
	case sku.FieldJSON:
		if d == DialectPostgres {
			return "JSONB"
		}
		return "TEXT"
	default:
		return "TEXT"
	}
}

// Quote quotes an identifier
func (d Dialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// SerialPrimaryKey is the surrogate key column definition
func (d Dialect) SerialPrimaryKey() string {
	if d == DialectPostgres {
		return "id BIGSERIAL PRIMARY KEY"
	}
	return "id INTEGER PRIMARY KEY AUTOINCREMENT"
}
