package sqlchat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSerializeRows(t *testing.T) {
	placed := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	rs := &RowSet{
		Columns: []string{"id", "total", "placed_at", "note"},
		Rows: [][]any{
			{json.Number("1"), json.Number("19.90"), placed, "first order"},
			{json.Number("2"), json.Number("100.00"), placed, nil},
		},
	}

	text, err := SerializeRows(rs)
	require.NoError(t, err)
	require.Contains(t, text, `"id": 1`)
	require.Contains(t, text, `"total": 19.90`, "fixed-point values keep their exact text")
	require.Contains(t, text, `"placed_at": "2025-03-14T15:09:26Z"`)
	require.Contains(t, text, `"note": null`)

	// Output is valid JSON with fields in column order
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))
	require.Len(t, decoded, 2)
	require.Equal(t, "first order", decoded[0]["note"])
}

func TestSerializeRowsEmpty(t *testing.T) {
	text, err := SerializeRows(&RowSet{Columns: []string{"id"}})
	require.NoError(t, err)
	require.Equal(t, "[]", text)

	text, err = SerializeRows(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", text)
}

func TestSerializeRowsScalarKinds(t *testing.T) {
	rs := &RowSet{
		Columns: []string{"b", "s", "i", "i64", "f", "raw"},
		Rows:    [][]any{{true, "text", 3, int64(4), 2.5, []byte("bytes")}},
	}
	text, err := SerializeRows(rs)
	require.NoError(t, err)
	require.Contains(t, text, `"b": true`)
	require.Contains(t, text, `"s": "text"`)
	require.Contains(t, text, `"i": 3`)
	require.Contains(t, text, `"i64": 4`)
	require.Contains(t, text, `"f": 2.5`)
	require.Contains(t, text, `"raw": "bytes"`)
}

func TestSerializeRowsUnsupportedType(t *testing.T) {
	rs := &RowSet{
		Columns: []string{"bad"},
		Rows:    [][]any{{struct{ X int }{1}}},
	}
	_, err := SerializeRows(rs)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not serializable")
}

func TestSerializeRowsColumnMismatch(t *testing.T) {
	rs := &RowSet{
		Columns: []string{"a", "b"},
		Rows:    [][]any{{"only one"}},
	}
	_, err := SerializeRows(rs)
	require.Error(t, err)
}
