package sqlchat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRowSetJSONRoundTrip(t *testing.T) {
	rs := &RowSet{
		Columns: []string{"id", "price", "name"},
		Rows: [][]any{
			{json.Number("1"), json.Number("0.30000000000000004"), "widget"},
			{json.Number("2"), json.Number("99999999999999999999.01"), "gadget"},
		},
	}

	data, err := json.Marshal(rs)
	require.NoError(t, err)

	var got RowSet
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, rs.Columns, got.Columns)
	require.Equal(t, rs.Rows, got.Rows, "numbers must survive without precision loss")
}

func TestRowSetUnmarshalEmpty(t *testing.T) {
	var got RowSet
	require.NoError(t, json.Unmarshal([]byte(`{"columns":["a"]}`), &got))
	require.Equal(t, []string{"a"}, got.Columns)
	require.Nil(t, got.Rows)
}

func TestRowSetLen(t *testing.T) {
	var rs *RowSet
	require.Zero(t, rs.Len())
	require.Equal(t, 1, (&RowSet{Rows: [][]any{{1}}}).Len())
}
