package sqlchat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// SerializeRows renders a row set as indented JSON text for the answer
// renderer. Rows keep the executor's row order and fields keep the
// executor's column order. Timestamps are rendered in RFC 3339 form and
// fixed-point numerics keep their exact text; any other cell type is an
// error rather than a silent approximation.
func SerializeRows(rs *RowSet) (string, error) {
	if rs == nil {
		return "[]", nil
	}
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, row := range rs.Rows {
		if len(row) != len(rs.Columns) {
			return "", fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(rs.Columns))
		}
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  {")
		for j, col := range rs.Columns {
			if j > 0 {
				buf.WriteString(",")
			}
			buf.WriteString("\n    ")
			name, err := json.Marshal(col)
			if err != nil {
				return "", fmt.Errorf("failed to encode column name %q: %w", col, err)
			}
			buf.Write(name)
			buf.WriteString(": ")
			encoded, err := encodeCell(row[j])
			if err != nil {
				return "", fmt.Errorf("column %q in row %d: %w", col, i, err)
			}
			buf.WriteString(encoded)
		}
		buf.WriteString("\n  }")
	}
	if len(rs.Rows) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("]")
	return buf.String(), nil
}

// encodeCell encodes one scalar cell value as JSON text.
func encodeCell(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "null", nil
	case bool:
		return strconv.FormatBool(v), nil
	case string:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	case json.Number:
		return v.String(), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case time.Time:
		return strconv.Quote(v.Format(time.RFC3339Nano)), nil
	case []byte:
		encoded, err := json.Marshal(string(v))
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	default:
		return "", fmt.Errorf("value of type %T is not serializable", value)
	}
}
