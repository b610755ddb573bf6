package Sheets

import (
	"strings"
)

// Column is one declared column of a remote table
type Column struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
}

// Cell holds a raw value and, for dates and numbers, the formatted text.
type Cell struct {
	V interface{} `json:"v"`
	F string      `json:"f,omitempty"`
}

type Row struct {
	C []*Cell `json:"c"`
}

// Table is the columnar {cols, rows} payload returned by the query endpoint.
type Table struct {
	Cols []Column `json:"cols"`
	Rows []Row    `json:"rows"`
}

// HasColumns reports whether at least one column carries a usable label.
func (t *Table) HasColumns() bool {
	if t == nil {
		return false
	}
	for _, col := range t.Cols {
		if strings.TrimSpace(col.Label) != "" || strings.TrimSpace(col.ID) != "" {
			return true
		}
	}
	return false
}

// QueryResponse is the envelope of both the primary and the fallback query.
// Success is a pointer because the fallback endpoint omits it.
type QueryResponse struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	Table   *Table `json:"table"`
}

// Valid is the schema predicate that decides whether the next query strategy runs.
func (r *QueryResponse) Valid() bool {
	if r == nil {
		return false
	}
	if r.Success != nil && !*r.Success {
		return false
	}
	return r.Table.HasColumns()
}

// WriteResponse is returned by the update and upload actions.
type WriteResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	FileURL string `json:"fileUrl,omitempty"`
}
