package database

import (
	"context"
	"fmt"
	"slices"
)

// AuditTableNames are dumped, in this order, into the monthly workbook.
var AuditTableNames = []string{
	"rooms",
	"equipment",
	"room_equipment",
	"instructors",
	"students",
	"bookings",
}

func (db *DB) GetTableNames(context.Context) ([]string, error) {
	return slices.Clone(AuditTableNames), nil
}

// GetTableData returns every row of table, soft-deleted rows included, keyed
// by column name. Only tables listed in AuditTableNames may be read.
func (db *DB) GetTableData(ctx context.Context, table string) ([]map[string]interface{}, []string, error) {
	if !slices.Contains(AuditTableNames, table) {
		return nil, nil, fmt.Errorf("invalid table name: %s", table)
	}

	// table is allow-listed.
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY id", table))
	if err != nil {
		return nil, nil, fmt.Errorf("dump %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var data []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err = rows.Scan(dest...); err != nil {
			return nil, nil, fmt.Errorf("scan %s: %w", table, err)
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		data = append(data, row)
	}
	return data, columns, rows.Err()
}
