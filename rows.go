package sqlchat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RowSet is an ordered result set returned by a query executor. Column order
// is the order the engine returned, and every row holds its values in that
// same order. Cell values are restricted to the scalar kinds the serializer
// understands; executors are expected to canonicalize driver values before
// building a RowSet.
type RowSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Len returns the number of rows.
func (rs *RowSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// UnmarshalJSON decodes cell values with json.Number so that numeric values
// round-trip through the session store without losing precision.
func (rs *RowSet) UnmarshalJSON(data []byte) error {
	var aux struct {
		Columns []string        `json:"columns"`
		Rows    json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal row set: %w", err)
	}
	rs.Columns = aux.Columns
	rs.Rows = nil
	if len(aux.Rows) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(aux.Rows))
	dec.UseNumber()
	if err := dec.Decode(&rs.Rows); err != nil {
		return fmt.Errorf("failed to unmarshal rows: %w", err)
	}
	return nil
}
