package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// BulkInsert writes a batch of mapped records in one statement, skipping
// any record whose primary key is already present. Re-running a sync over
// an already-seen window is therefore a no-op. Returns the number of rows
// actually persisted.
//
// Callers must not submit empty batches.
func BulkInsert(ctx context.Context, db *sql.DB, kind *RecordKind, records []map[string]any) (int64, error) {
	if len(records) == 0 {
		return 0, fmt.Errorf("wallet: empty %s batch submitted", kind.Name)
	}

	cols := kind.Columns
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = `"` + c + `"`
	}

	var (
		valueRows = make([]string, 0, len(records))
		args      = make([]any, 0, len(records)*len(cols))
		n         = 1
	)
	for _, record := range records {
		holders := make([]string, len(cols))
		for i, col := range cols {
			holders[i] = fmt.Sprintf("$%d", n)
			n++
			args = append(args, record[col])
		}
		valueRows = append(valueRows, "("+strings.Join(holders, ", ")+")")
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES %s ON CONFLICT (%q) DO NOTHING`,
		kind.Table,
		strings.Join(quoted, ", "),
		strings.Join(valueRows, ", "),
		kind.PKColumn,
	)

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk insert into %s: %w", kind.Table, err)
	}
	persisted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk insert into %s: %w", kind.Table, err)
	}
	return persisted, nil
}
