package op

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nickyhof/storeadapter/core"
)

var ErrTypeMismatch = errors.New("type mismatch")

const dateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	dateLayout,
}

func mismatch(t core.ColumnType, v any) error {
	return fmt.Errorf("%w: cannot store %T as %s", ErrTypeMismatch, v, t)
}

// Coerce converts v to the Go type that columns of type t hold:
// int64 for integers, float64, bool, time.Time for timestamps, []byte for
// blobs and string for everything else. nil is kept as nil.
func Coerce(t core.ColumnType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case core.IntType, core.PrimaryKeyType:
		return coerceInt(t, v)
	case core.FloatType:
		return coerceFloat(t, v)
	case core.BoolType:
		return coerceBool(t, v)
	case core.TimestampType:
		return coerceTime(t, v)
	case core.DateType:
		ts, err := coerceTime(t, v)
		if err != nil {
			return nil, err
		}
		return ts.Format(dateLayout), nil
	case core.BlobType:
		switch val := v.(type) {
		case []byte:
			return val, nil
		case string:
			return []byte(val), nil
		}
		return nil, mismatch(t, v)
	case core.UUIDType:
		s, err := coerceString(t, v)
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a uuid", ErrTypeMismatch, s)
		}
		return id.String(), nil
	case core.JsonType:
		switch v.(type) {
		case string, []byte:
			s, _ := coerceString(t, v)
			if !json.Valid([]byte(s)) {
				return nil, fmt.Errorf("%w: invalid json", ErrTypeMismatch)
			}
			return s, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, mismatch(t, v)
		}
		return string(data), nil
	default:
		return coerceString(t, v)
	}
}

func coerceInt(t core.ColumnType, v any) (int64, error) {
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case uint:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return 0, mismatch(t, v)
		}
		return int64(val), nil
	case float64:
		if val != math.Trunc(val) {
			return 0, mismatch(t, v)
		}
		return int64(val), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrTypeMismatch, val)
		}
		return n, nil
	}
	return 0, mismatch(t, v)
}

func coerceFloat(t core.ColumnType, v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrTypeMismatch, val)
		}
		return f, nil
	}
	n, err := coerceInt(t, v)
	return float64(n), err
}

func coerceBool(t core.ColumnType, v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", ErrTypeMismatch, val)
		}
		return b, nil
	}
	n, err := coerceInt(t, v)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

func coerceTime(t core.ColumnType, v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), nil
	case string:
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, strings.TrimSpace(val)); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q is not a timestamp", ErrTypeMismatch, val)
	}
	return time.Time{}, mismatch(t, v)
}

func coerceString(t core.ColumnType, v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case fmt.Stringer:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), nil
	}
	if n, err := coerceInt(t, v); err == nil {
		return strconv.FormatInt(n, 10), nil
	}
	return "", mismatch(t, v)
}

// Encode converts v to its stored text form.
func Encode(t core.ColumnType, v any) (*string, error) {
	coerced, err := Coerce(t, v)
	if err != nil || coerced == nil {
		return nil, err
	}

	var s string
	switch val := coerced.(type) {
	case int64:
		s = strconv.FormatInt(val, 10)
	case float64:
		s = strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		s = strconv.FormatBool(val)
	case time.Time:
		s = val.Format(time.RFC3339Nano)
	case []byte:
		s = base64.StdEncoding.EncodeToString(val)
	case string:
		s = val
	}
	return &s, nil
}

// Decode turns a stored text value back into its typed form.
func Decode(t core.ColumnType, raw *string) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if t == core.BlobType {
		data, err := base64.StdEncoding.DecodeString(*raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt blob value: %w", err)
		}
		return data, nil
	}
	return Coerce(t, *raw)
}

// FormatKey renders a primary key value as the record key.
func FormatKey(t core.ColumnType, v any) (string, error) {
	if v == nil {
		return "", fmt.Errorf("%w: primary key cannot be null", ErrTypeMismatch)
	}
	if t == core.BlobType {
		return "", fmt.Errorf("%w: blob primary keys are not supported", ErrTypeMismatch)
	}
	encoded, err := Encode(t, v)
	if err != nil {
		return "", err
	}
	return *encoded, nil
}
