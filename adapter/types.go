package adapter

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LogicalType is the column type as the ORM sees it.
type LogicalType string

const (
	LogicalPrimaryKey LogicalType = "primary_key"
	LogicalString     LogicalType = "string"
	LogicalText       LogicalType = "text"
	LogicalInteger    LogicalType = "integer"
	LogicalFloat      LogicalType = "float"
	LogicalBoolean    LogicalType = "boolean"
	LogicalDate       LogicalType = "date"
	LogicalDatetime   LogicalType = "datetime"
	LogicalBinary     LogicalType = "binary"
	LogicalUUID       LogicalType = "uuid"
	LogicalJSON       LogicalType = "json"
)

// NativeTypes maps logical types to the store type names used in DDL.
var NativeTypes = map[LogicalType]string{
	LogicalPrimaryKey: "pk",
	LogicalString:     "string",
	LogicalText:       "text",
	LogicalInteger:    "integer",
	LogicalFloat:      "float",
	LogicalBoolean:    "boolean",
	LogicalDate:       "date",
	LogicalDatetime:   "datetime",
	LogicalBinary:     "blob",
	LogicalUUID:       "uuid",
	LogicalJSON:       "json",
}

// logicalTypes maps native type tags back. The pk tag is an integer key.
var logicalTypes = map[string]LogicalType{
	"pk":       LogicalInteger,
	"string":   LogicalString,
	"text":     LogicalText,
	"integer":  LogicalInteger,
	"float":    LogicalFloat,
	"boolean":  LogicalBoolean,
	"date":     LogicalDate,
	"datetime": LogicalDatetime,
	"blob":     LogicalBinary,
	"uuid":     LogicalUUID,
	"json":     LogicalJSON,
}

// LogicalTypeOf resolves a native type tag. Unknown tags are strings.
func LogicalTypeOf(native string) LogicalType {
	if t, ok := logicalTypes[native]; ok {
		return t
	}
	return LogicalString
}

// ColumnDescriptor describes one column of a table.
type ColumnDescriptor struct {
	Name       string
	NativeType string
	Type       LogicalType
	PrimaryKey bool
}

// Bind is one positional bind value with the column it is compared to or
// assigned to. Column may be nil.
type Bind struct {
	Column *ColumnDescriptor
	Value  any
}

// Binds wraps plain values as binds without column metadata.
func Binds(values ...any) []Bind {
	binds := make([]Bind, len(values))
	for i, v := range values {
		binds[i] = Bind{Value: v}
	}
	return binds
}

// Coercion converts a bind value for columns of one logical type.
type Coercion func(v any) (any, error)

// TypeRegistry holds the coercions applied to bind values.
type TypeRegistry struct {
	coercions map[LogicalType]Coercion
}

// NewTypeRegistry returns a registry with the uuid, datetime and date
// coercions registered.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{coercions: make(map[LogicalType]Coercion)}
	r.Register(LogicalUUID, coerceUUID)
	r.Register(LogicalDatetime, coerceDatetime)
	r.Register(LogicalDate, coerceDate)
	return r
}

// Register sets the coercion for t, replacing any earlier one.
func (r *TypeRegistry) Register(t LogicalType, coercion Coercion) {
	r.coercions[t] = coercion
}

// Coerce applies, in order: UUIDs become canonical strings, byte slices
// pass through, the column type's coercion applies, anything else passes
// through.
func (r *TypeRegistry) Coerce(column *ColumnDescriptor, v any) (any, error) {
	switch val := v.(type) {
	case uuid.UUID:
		return val.String(), nil
	case *uuid.UUID:
		if val == nil {
			return nil, nil
		}
		return val.String(), nil
	case []byte:
		return val, nil
	}

	if column != nil && v != nil {
		if coercion, ok := r.coercions[column.Type]; ok {
			return coercion(v)
		}
	}
	return v, nil
}

// BindParams coerces binds into the 0-based positional map statements
// execute with.
func (r *TypeRegistry) BindParams(binds []Bind) (map[int]any, error) {
	params := make(map[int]any, len(binds))
	for i, bind := range binds {
		v, err := r.Coerce(bind.Column, bind.Value)
		if err != nil {
			name := "?"
			if bind.Column != nil {
				name = bind.Column.Name
			}
			return nil, fmt.Errorf("bind %d (%s): %w", i, name, err)
		}
		params[i] = v
	}
	return params, nil
}

func coerceUUID(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%q is not a uuid: %w", s, err)
	}
	return id.String(), nil
}

func coerceDatetime(v any) (any, error) {
	if ts, ok := v.(time.Time); ok {
		return ts.UTC().Format(time.RFC3339Nano), nil
	}
	return v, nil
}

func coerceDate(v any) (any, error) {
	if ts, ok := v.(time.Time); ok {
		return ts.Format(time.DateOnly), nil
	}
	return v, nil
}
