package core

import "slices"

// Perspective is a named, scoped window onto one database. Sessions query
// through a perspective; tables outside Tables are invisible to them.
// An empty Tables list exposes the whole database.
type Perspective struct {
	Name     string   `json:"name"`
	Database string   `json:"database"`
	Tables   []string `json:"tables,omitempty"`
	ReadOnly bool     `json:"readOnly,omitempty"`
}

// Visible reports whether table can be seen through the perspective.
func (p Perspective) Visible(table string) bool {
	if len(p.Tables) == 0 {
		return true
	}
	return slices.Contains(p.Tables, table)
}
