package dbclient

import (
	"database/sql"
	"fmt"
)

// ScanValues reads the current row into one value per column. Driver byte
// slices are turned into strings since text columns come back as []byte.
func ScanValues(rows *sql.Rows, numCols int) ([]any, error) {
	values := make([]any, numCols)
	ptrs := make([]any, numCols)
	for j := range values {
		ptrs[j] = &values[j]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	for j, v := range values {
		values[j] = normalizeValue(v)
	}
	return values, nil
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return val
	}
}
