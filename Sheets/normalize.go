package Sheets

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"Anvil/Models"
)

var gvizDate = regexp.MustCompile(`^Date\((\d+),(\d+),(\d+)(?:,(\d+),(\d+),(\d+))?\)$`)

// Normalize turns a columnar table into one record per row, keyed by column
// label. Missing cells become empty strings and rows without a single
// populated cell are dropped. It never fails: a table without columns yields
// an empty slice.
func Normalize(t Table) []Models.TaskRecord {
	records := []Models.TaskRecord{}
	if !t.HasColumns() {
		return records
	}

	labels := make([]string, len(t.Cols))
	for i, col := range t.Cols {
		label := strings.TrimSpace(col.Label)
		if label == "" {
			label = strings.TrimSpace(col.ID)
		}
		labels[i] = label
	}

	for _, row := range t.Rows {
		fields := make([]Models.Field, 0, len(labels))
		populated := 0
		for i, label := range labels {
			if label == "" {
				continue
			}
			value := ""
			if i < len(row.C) {
				value = CellString(row.C[i])
			}
			if strings.TrimSpace(value) != "" {
				populated++
			}
			fields = append(fields, Models.Field{Label: label, Value: value})
		}
		if populated == 0 {
			continue
		}
		records = append(records, Models.NewTaskRecord(fields))
	}
	return records
}

// CellString renders a cell value as text. Date literals of the form
// Date(2024,0,15) are rewritten to 2024-01-15 (months are zero based).
func CellString(c *Cell) string {
	if c == nil {
		return ""
	}
	switch v := c.V.(type) {
	case nil:
		return c.F
	case string:
		if m := gvizDate.FindStringSubmatch(v); m != nil {
			return formatGvizDate(m)
		}
		return v
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func formatGvizDate(m []string) string {
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	date := fmt.Sprintf("%04d-%02d-%02d", year, month+1, day)
	if m[4] == "" {
		return date
	}
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second, _ := strconv.Atoi(m[6])
	if hour == 0 && minute == 0 && second == 0 {
		return date
	}
	return fmt.Sprintf("%s %02d:%02d:%02d", date, hour, minute, second)
}
