package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// querier is the subset of [sql.DB] and [sql.Tx] used for sequence allocation.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// NextSequence increments and returns the counter for table.
//
// The counter lives in "<table>_sequence", a single-row table seeded by the table's migration.
// Pass a transaction to tie the allocation to an insert so a failed insert does not consume a number.
func NextSequence(q querier, table string) (int, error) {
	sequenceTable := table + "_sequence"

	var sequence int
	err := q.QueryRow(fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1 RETURNING value", sequenceTable)).Scan(&sequence)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sequence table %s is not seeded", sequenceTable)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}
