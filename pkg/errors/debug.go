package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// LogFields flattens err into structured log fields: the coded error, the
// unwrap chain and any database driver diagnostics. Empty values are omitted.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.code)
	}

	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	var pgErr *pgconn.PgError
	var liteErr sqlite3.Error
	switch {
	case stdErrors.As(err, &pgErr):
		put(fields, "pg_code", pgErr.Code)
		put(fields, "pg_constraint", pgErr.ConstraintName)
		put(fields, "pg_table", pgErr.TableName)
		put(fields, "pg_column", pgErr.ColumnName)
		put(fields, "pg_detail", pgErr.Detail)
	case stdErrors.As(err, &liteErr):
		fields["sqlite_code"] = int(liteErr.Code)
		fields["sqlite_extended_code"] = int(liteErr.ExtendedCode)
	}
	return fields
}

func put(fields map[string]any, key, value string) {
	if value != "" {
		fields[key] = value
	}
}
