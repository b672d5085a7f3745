// Package manual stores the operator's reference manuals and derives the
// keyword and size lookup tables from them.
package manual

import "time"

// Type is the kind of manual entry.
type Type string

const (
	TypeKeyword   Type = "keyword"
	TypeSizeChart Type = "sizechart"
	TypeFile      Type = "file"
	TypeText      Type = "text"
)

// Valid reports whether t is a known manual type.
func (t Type) Valid() bool {
	switch t {
	case TypeKeyword, TypeSizeChart, TypeFile, TypeText:
		return true
	}
	return false
}

// Entry is one manual.
type Entry struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      Type      `json:"type"`
	SizeData  string    `json:"size_data,omitempty"`
	FileName  string    `json:"file_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
