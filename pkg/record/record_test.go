package record

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRows_SinglePass(t *testing.T) {
	rs := FromRows([]string{"a", "b"}, [][]any{
		{1, 2},
		{3, 4},
	})

	row, err := rs.Next()
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, row)

	row, err = rs.Next()
	require.NoError(t, err)
	assert.Equal(t, []any{3, 4}, row)

	_, err = rs.Next()
	assert.Equal(t, io.EOF, err)

	// Exhausted stays exhausted.
	_, err = rs.Next()
	assert.Equal(t, io.EOF, err)
}

func TestNext_WidthMismatchFailsFast(t *testing.T) {
	rs := FromRows([]string{"a", "b"}, [][]any{
		{1, 2},
		{3},
	})

	_, err := rs.Next()
	require.NoError(t, err)

	_, err = rs.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 fields, expected 2")

	// A contract violation terminates the sequence.
	_, err = rs.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFromRows_Empty(t *testing.T) {
	rs := FromRows([]string{"a"}, nil)
	_, err := rs.Next()
	assert.Equal(t, io.EOF, err)
}
