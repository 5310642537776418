package sqlgraph

import (
	"fmt"
	"strconv"
	"time"

	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/key"
)

// Row is one entity record keyed by column name. The runtime works on
// dynamic rows; generated entity structs decode from them.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// toInt64 coerces the integer shapes drivers hand back.
func toInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case []byte:
		i, err := strconv.ParseInt(string(v), 10, 64)
		return i, err == nil
	}
	return 0, false
}

// Int64 returns the column as int64, coercing the integer shapes drivers
// hand back.
func (r Row) Int64(column string) (int64, bool) {
	switch v := r[column].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case []byte:
		i, err := strconv.ParseInt(string(v), 10, 64)
		return i, err == nil
	}
	return 0, false
}

// Float64 returns the column as float64.
func (r Row) Float64(column string) (float64, bool) {
	switch v := r[column].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	}
	return 0, false
}

// String returns the column as string.
func (r Row) String(column string) (string, bool) {
	switch v := r[column].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return "", false
}

// Bool returns the column as bool, accepting the 0/1 integers SQLite and
// MySQL store booleans as.
func (r Row) Bool(column string) (bool, bool) {
	switch v := r[column].(type) {
	case bool:
		return v, true
	case int64:
		return v != 0, true
	case []byte:
		b, err := strconv.ParseBool(string(v))
		return b, err == nil
	}
	return false, false
}

// Time returns the column as time.Time.
func (r Row) Time(column string) (time.Time, bool) {
	switch v := r[column].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		return t, err == nil
	case []byte:
		t, err := time.Parse(time.RFC3339, string(v))
		return t, err == nil
	}
	return time.Time{}, false
}

// Null reports whether the column is present and NULL.
func (r Row) Null(column string) bool {
	v, ok := r[column]
	return ok && v == nil
}

// Key returns the column as a polymorphic key of the given kind.
func (r Row) Key(column string, kind key.Kind) (key.Key, error) {
	v, ok := r[column]
	if !ok || v == nil {
		return key.Key{}, fmt.Errorf("sqlgraph: column %q has no key value", column)
	}
	return key.FromBackend(kind, v)
}

// scanRows drains a result set into dynamic rows. Column order follows the
// statement; values keep the driver's types, with []byte left as returned.
func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, c := range columns {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
