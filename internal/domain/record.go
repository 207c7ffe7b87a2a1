package domain

import (
	"fmt"
	"strconv"
)

// Record is a row that can be projected onto named columns. Columns and
// Values are parallel: Values()[i] belongs to Columns()[i]. A nil value is a
// SQL NULL.
type Record interface {
	Columns() []string
	Values() []any
}

// Project returns the record's values for the requested columns, keyed by
// column name. Unknown columns are an error.
func Project(r Record, columns []string) (map[string]any, error) {
	cols := r.Columns()
	vals := r.Values()
	byName := make(map[string]any, len(cols))
	for i, c := range cols {
		byName[c] = vals[i]
	}

	out := make(map[string]any, len(columns))
	for _, c := range columns {
		v, ok := byName[c]
		if !ok {
			return nil, fmt.Errorf("column %q not in record", c)
		}
		out[c] = v
	}
	return out, nil
}

// FormatValue renders a record value for flat-file export. NULL renders as
// an empty cell.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}

func stringOrNil(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatOrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func intOrNil(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
