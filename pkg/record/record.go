// Package record holds the tabular shape of one query execution: an ordered
// column list plus a forward-only row sequence.
package record

import (
	"fmt"
	"io"
)

// RecordSet is the result of one query execution. Rows are consumed exactly
// once, in the order the server produced them; restarting requires
// re-executing the query.
type RecordSet struct {
	Columns []string

	next func() ([]any, error)
	done bool
}

// New wraps a row-producing function. next returns io.EOF when the sequence
// is exhausted.
func New(columns []string, next func() ([]any, error)) *RecordSet {
	return &RecordSet{Columns: columns, next: next}
}

// FromRows builds a RecordSet over an already-materialized row slice.
func FromRows(columns []string, rows [][]any) *RecordSet {
	i := 0
	return New(columns, func() ([]any, error) {
		if i >= len(rows) {
			return nil, io.EOF
		}
		row := rows[i]
		i++
		return row, nil
	})
}

// Next returns the next row, or io.EOF once the sequence is exhausted. A row
// whose width differs from the column list is a contract violation by the
// producer and fails immediately.
func (rs *RecordSet) Next() ([]any, error) {
	if rs.done {
		return nil, io.EOF
	}
	row, err := rs.next()
	if err != nil {
		rs.done = true
		return nil, err
	}
	if len(row) != len(rs.Columns) {
		rs.done = true
		return nil, fmt.Errorf("row has %d fields, expected %d", len(row), len(rs.Columns))
	}
	return row, nil
}
