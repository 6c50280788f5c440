package core

import "strings"

type ColumnType int

const (
	StringType ColumnType = iota
	IntType
	FloatType
	BoolType
	TextType
	DateType
	TimestampType
	JsonType
	UUIDType
	BlobType
	// PrimaryKeyType is an auto-assigned integer key.
	PrimaryKeyType
)

var columnTags = map[ColumnType]string{
	StringType:     "string",
	IntType:        "integer",
	FloatType:      "float",
	BoolType:       "boolean",
	TextType:       "text",
	DateType:       "date",
	TimestampType:  "datetime",
	JsonType:       "json",
	UUIDType:       "uuid",
	BlobType:       "blob",
	PrimaryKeyType: "pk",
}

// Tag returns the native type tag reported by DESCRIBE.
func (t ColumnType) Tag() string {
	if tag, ok := columnTags[t]; ok {
		return tag
	}
	return "string"
}

func (t ColumnType) String() string {
	return strings.ToUpper(t.Tag())
}

// IsInteger reports whether values of the type are stored as integers.
func (t ColumnType) IsInteger() bool {
	return t == IntType || t == PrimaryKeyType
}

// ParseColumnType resolves a type name as written in DDL.
func ParseColumnType(name string) (ColumnType, bool) {
	switch strings.ToUpper(name) {
	case "STRING", "VARCHAR", "CHAR":
		return StringType, true
	case "INT", "INTEGER", "BIGINT":
		return IntType, true
	case "FLOAT", "DOUBLE", "REAL", "DECIMAL":
		return FloatType, true
	case "BOOL", "BOOLEAN":
		return BoolType, true
	case "TEXT":
		return TextType, true
	case "DATE":
		return DateType, true
	case "TIMESTAMP", "DATETIME":
		return TimestampType, true
	case "JSON":
		return JsonType, true
	case "UUID":
		return UUIDType, true
	case "BLOB", "BINARY", "BYTES":
		return BlobType, true
	case "PK", "SERIAL":
		return PrimaryKeyType, true
	default:
		return StringType, false
	}
}

type Column struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	PrimaryKey bool       `json:"primaryKey"`
}

type Table struct {
	Database string   `json:"database"`
	Name     string   `json:"name"`
	Columns  []Column `json:"columns"`
}

// Column looks up a column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// PrimaryKey returns the key column. A PK-typed column counts as the key
// even when PRIMARY KEY was not spelled out.
func (t Table) PrimaryKey() (Column, bool) {
	for _, col := range t.Columns {
		if col.PrimaryKey {
			return col, true
		}
	}
	for _, col := range t.Columns {
		if col.Type == PrimaryKeyType {
			return col, true
		}
	}
	return Column{}, false
}
