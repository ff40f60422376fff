// Package reporting serializes tables to transfer formats.
package reporting

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"validator-queue-etl/internal/domain"
)

// RenderCSV renders the table as CSV text: a header row in table column
// order followed by one row per record, no index column. Missing values
// render as empty fields.
func RenderCSV(t *domain.Table) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	_ = w.Write(t.Columns)
	row := make([]string, len(t.Columns))
	for _, rec := range t.Rows {
		for i, col := range t.Columns {
			row[i] = formatValue(rec[col])
		}
		_ = w.Write(row)
	}
	w.Flush()
	return sb.String()
}

// formatValue renders a single cell.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
