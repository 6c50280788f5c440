package wire

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

var ErrUnsupportedValue = errors.New("unsupported value type")

type Kind string

const (
	KindNull   Kind = "null"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindString Kind = "string"
	KindTime   Kind = "time"
	KindBytes  Kind = "bytes"
)

// Value is one tagged scalar.
type Value struct {
	K Kind    `json:"k"`
	I int64   `json:"i,omitempty"`
	F float64 `json:"f,omitempty"`
	B bool    `json:"b,omitempty"`
	S string  `json:"s,omitempty"`
	X []byte  `json:"x,omitempty"`
}

// Encode tags a Go value. Types implementing fmt.Stringer, such as
// uuid.UUID, travel as strings.
func Encode(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Value{K: KindNull}, nil
	case int:
		return Value{K: KindInt, I: int64(val)}, nil
	case int8:
		return Value{K: KindInt, I: int64(val)}, nil
	case int16:
		return Value{K: KindInt, I: int64(val)}, nil
	case int32:
		return Value{K: KindInt, I: int64(val)}, nil
	case int64:
		return Value{K: KindInt, I: val}, nil
	case uint:
		return encodeUint(uint64(val)), nil
	case uint64:
		return encodeUint(val), nil
	case uint8:
		return Value{K: KindInt, I: int64(val)}, nil
	case uint16:
		return Value{K: KindInt, I: int64(val)}, nil
	case uint32:
		return Value{K: KindInt, I: int64(val)}, nil
	case float32:
		return Value{K: KindFloat, F: float64(val)}, nil
	case float64:
		return Value{K: KindFloat, F: val}, nil
	case bool:
		return Value{K: KindBool, B: val}, nil
	case string:
		return Value{K: KindString, S: val}, nil
	case []byte:
		return Value{K: KindBytes, X: val}, nil
	case time.Time:
		return Value{K: KindTime, S: val.UTC().Format(time.RFC3339Nano)}, nil
	case fmt.Stringer:
		return Value{K: KindString, S: val.String()}, nil
	}
	return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

// encodeUint falls back to the decimal string when n overflows int64.
func encodeUint(n uint64) Value {
	if n > math.MaxInt64 {
		return Value{K: KindString, S: strconv.FormatUint(n, 10)}
	}
	return Value{K: KindInt, I: int64(n)}
}

// Decode returns the Go value carried by v.
func (v Value) Decode() (any, error) {
	switch v.K {
	case KindNull, "":
		return nil, nil
	case KindInt:
		return v.I, nil
	case KindFloat:
		return v.F, nil
	case KindBool:
		return v.B, nil
	case KindString:
		return v.S, nil
	case KindBytes:
		if v.X == nil {
			return []byte{}, nil
		}
		return v.X, nil
	case KindTime:
		ts, err := time.Parse(time.RFC3339Nano, v.S)
		if err != nil {
			return nil, fmt.Errorf("bad time value %q: %w", v.S, err)
		}
		return ts.UTC(), nil
	}
	return nil, fmt.Errorf("%w: kind %q", ErrUnsupportedValue, v.K)
}

// EncodeBinds tags a positional bind map.
func EncodeBinds(binds map[int]any) (map[int]Value, error) {
	if len(binds) == 0 {
		return nil, nil
	}
	encoded := make(map[int]Value, len(binds))
	for i, v := range binds {
		value, err := Encode(v)
		if err != nil {
			return nil, fmt.Errorf("bind %d: %w", i, err)
		}
		encoded[i] = value
	}
	return encoded, nil
}

func DecodeBinds(binds map[int]Value) (map[int]any, error) {
	decoded := make(map[int]any, len(binds))
	for i, v := range binds {
		value, err := v.Decode()
		if err != nil {
			return nil, fmt.Errorf("bind %d: %w", i, err)
		}
		decoded[i] = value
	}
	return decoded, nil
}

func EncodeRows(rows [][]any) ([][]Value, error) {
	encoded := make([][]Value, len(rows))
	for r, row := range rows {
		encoded[r] = make([]Value, len(row))
		for c, v := range row {
			value, err := Encode(v)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", r, c, err)
			}
			encoded[r][c] = value
		}
	}
	return encoded, nil
}

func DecodeRows(rows [][]Value) ([][]any, error) {
	decoded := make([][]any, len(rows))
	for r, row := range rows {
		decoded[r] = make([]any, len(row))
		for c, v := range row {
			value, err := v.Decode()
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", r, c, err)
			}
			decoded[r][c] = value
		}
	}
	return decoded, nil
}
