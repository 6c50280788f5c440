package adapter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrBindCount = errors.New("bind count does not match placeholders")

// QuoteIdentifier quotes a table or column name, doubling embedded quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteAssignmentTarget quotes the left side of a SET assignment. The
// store rejects table-qualified targets, so the table is not used.
func QuoteAssignmentTarget(table, column string) string {
	return QuoteIdentifier(column)
}

// QuoteLiteral renders v as a SQL literal.
func QuoteLiteral(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return quoteString(val), nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.FormatInt(int64(val), 10), nil
	case int8:
		return strconv.FormatInt(int64(val), 10), nil
	case int16:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float32:
		return quoteFloat(float64(val))
	case float64:
		return quoteFloat(val)
	case []byte:
		return quoteString(string(val)), nil
	case uuid.UUID:
		return quoteString(val.String()), nil
	case time.Time:
		return quoteString(val.UTC().Format(time.RFC3339Nano)), nil
	case fmt.Stringer:
		return quoteString(val.String()), nil
	}
	return "", fmt.Errorf("cannot quote %T", v)
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("cannot quote %v", f)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// InterpolateBinds replaces each ? placeholder outside quoted strings and
// identifiers with the literal of the bind at its position.
func InterpolateBinds(sql string, binds map[int]any) (string, error) {
	var out strings.Builder
	out.Grow(len(sql))

	position := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case quote != 0:
			// A doubled quote toggles out and straight back in.
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '?':
			v, ok := binds[position]
			if !ok {
				return "", fmt.Errorf("%w: no bind at position %d", ErrBindCount, position)
			}
			literal, err := QuoteLiteral(v)
			if err != nil {
				return "", fmt.Errorf("bind %d: %w", position, err)
			}
			out.WriteString(literal)
			position++
			continue
		}
		out.WriteByte(ch)
	}

	if position != len(binds) {
		return "", fmt.Errorf("%w: %d placeholders, %d binds", ErrBindCount, position, len(binds))
	}
	return out.String(), nil
}

// blankQuoted replaces quoted identifiers and strings with spaces, keeping
// offsets, so keyword checks only see statement text.
func blankQuoted(sql string) string {
	out := []byte(sql)
	var quote byte
	for i, ch := range out {
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
			out[i] = ' '
		case ch == '\'' || ch == '"':
			quote = ch
			out[i] = ' '
		}
	}
	return string(out)
}
