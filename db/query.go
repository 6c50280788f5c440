package db

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nickyhof/storeadapter/core"
	"github.com/nickyhof/storeadapter/op"
	"github.com/nickyhof/storeadapter/sql"
)

// value is a resolved operand. Column values carry their column type so
// that the other side of a comparison can be coerced to it.
type value struct {
	v       any
	colType core.ColumnType
	typed   bool
}

type evaluator struct {
	table core.Table
	binds map[int]any
}

func (e evaluator) resolve(operand sql.Operand, row op.Record) (value, error) {
	switch operand.Kind {
	case sql.ColumnOperand:
		col, ok := e.table.Column(operand.Value)
		if !ok {
			return value{}, fmt.Errorf("%w: %s.%s", op.ErrUnknownColumn, e.table.Name, operand.Value)
		}
		return value{v: row[col.Name], colType: col.Type, typed: true}, nil
	case sql.PlaceholderOperand:
		bound, ok := e.binds[operand.Index]
		if !ok {
			return value{}, fmt.Errorf("%w at position %d", ErrMissingBind, operand.Index)
		}
		return value{v: bound}, nil
	case sql.NullOperand:
		return value{}, nil
	default:
		return value{v: operand.Value}, nil
	}
}

// bind resolves an operand that carries no column reference.
func (e evaluator) bind(operand sql.Operand) (any, error) {
	if operand.Kind == sql.ColumnOperand {
		return nil, fmt.Errorf("column %s is not allowed here", operand.Value)
	}
	resolved, err := e.resolve(operand, nil)
	return resolved.v, err
}

// align coerces an untyped side to the column type of the other side.
func align(a, b value) (any, any, error) {
	var err error
	switch {
	case a.typed && !b.typed:
		b.v, err = op.Coerce(a.colType, b.v)
	case b.typed && !a.typed:
		a.v, err = op.Coerce(b.colType, a.v)
	case !a.typed && !b.typed:
		a.v, b.v = loose(a.v), loose(b.v)
	}
	return a.v, b.v, err
}

// loose gives untyped values a comparable form: numbers become int64 or
// float64, numeric strings are parsed.
func loose(v any) any {
	switch val := v.(type) {
	case string:
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
		return val
	case float32:
		return float64(val)
	case float64, bool, time.Time, []byte, nil:
		return val
	case fmt.Stringer:
		return val.String()
	}
	if n, err := op.Coerce(core.IntType, v); err == nil {
		return n
	}
	return fmt.Sprint(v)
}

// compareValues orders two non-nil values of the same kind. Mixed numbers
// compare as floats; anything else falls back to comparing string forms.
func compareValues(a, b any) int {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return compareOrdered(x, y)
		case float64:
			return compareOrdered(float64(x), y)
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return compareOrdered(x, y)
		case int64:
			return compareOrdered(x, float64(y))
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			if x == y {
				return 0
			}
			if !x {
				return -1
			}
			return 1
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func compareOrdered[T int64 | float64](a, b T) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func (e evaluator) matches(row op.Record, where sql.WhereClause) (bool, error) {
	if len(where.Conditions) == 0 {
		return true, nil
	}

	result, err := e.evaluateCondition(row, where.Conditions[0])
	if err != nil {
		return false, err
	}

	for i := 1; i < len(where.Conditions); i++ {
		condResult, err := e.evaluateCondition(row, where.Conditions[i])
		if err != nil {
			return false, err
		}

		if i-1 < len(where.LogicalOps) && where.LogicalOps[i-1] == sql.LogicalOr {
			result = result || condResult
		} else {
			result = result && condResult
		}
	}
	return result, nil
}

// evaluateCondition evaluates a single WHERE condition. Comparisons
// involving NULL never hold.
func (e evaluator) evaluateCondition(row op.Record, cond sql.WhereCondition) (bool, error) {
	left, err := e.resolve(cond.Left, row)
	if err != nil {
		return false, err
	}

	var result bool
	switch cond.Operator {
	case sql.IsNullOperator:
		result = left.v == nil
	case sql.IsNotNullOperator:
		result = left.v != nil
	case sql.InOperator:
		for _, operand := range cond.InValues {
			candidate, err := e.resolve(operand, row)
			if err != nil {
				return false, err
			}
			a, b, err := align(left, candidate)
			if err != nil {
				return false, err
			}
			if a != nil && b != nil && compareValues(a, b) == 0 {
				result = true
				break
			}
		}
	case sql.LikeOperator:
		pattern, err := e.resolve(cond.Right, row)
		if err != nil {
			return false, err
		}
		if left.v != nil && pattern.v != nil {
			result = matchLike(fmt.Sprint(left.v), fmt.Sprint(pattern.v))
		}
	default:
		right, err := e.resolve(cond.Right, row)
		if err != nil {
			return false, err
		}
		a, b, err := align(left, right)
		if err != nil {
			return false, err
		}
		if a == nil || b == nil {
			break
		}

		cmp := compareValues(a, b)
		switch cond.Operator {
		case sql.EqualsOperator:
			result = cmp == 0
		case sql.NotEqualsOperator:
			result = cmp != 0
		case sql.LessThanOperator:
			result = cmp < 0
		case sql.GreaterThanOperator:
			result = cmp > 0
		case sql.LessThanOrEqualOperator:
			result = cmp <= 0
		case sql.GreaterThanOrEqualOperator:
			result = cmp >= 0
		}
	}

	if cond.Negated {
		result = !result
	}
	return result, nil
}

// matchLike matches case-insensitively; % spans any run and _ one character.
func matchLike(value, pattern string) bool {
	value, pattern = strings.ToLower(value), strings.ToLower(pattern)

	// backtracking over the last % seen
	v, p := 0, 0
	starP, starV := -1, 0
	for v < len(value) {
		if p < len(pattern) {
			switch pattern[p] {
			case '%':
				starP, starV = p, v
				p++
				continue
			case '_':
				_, size := utf8.DecodeRuneInString(value[v:])
				v += size
				p++
				continue
			default:
				if pattern[p] == value[v] {
					v++
					p++
					continue
				}
			}
		}
		if starP < 0 {
			return false
		}
		_, size := utf8.DecodeRuneInString(value[starV:])
		starV += size
		p, v = starP+1, starV
	}
	for p < len(pattern) && pattern[p] == '%' {
		p++
	}
	return p == len(pattern)
}

// filter returns the records of a table matching the WHERE clause.
func (e evaluator) filter(tableOp *op.TableOp, where sql.WhereClause) ([]op.Record, int, error) {
	var rows []op.Record
	scanned := 0
	for record, err := range tableOp.Scan() {
		if err != nil {
			return nil, scanned, err
		}
		scanned++

		ok, err := e.matches(record, where)
		if err != nil {
			return nil, scanned, err
		}
		if ok {
			rows = append(rows, record)
		}
	}
	return rows, scanned, nil
}

// sortResults sorts records by the ORDER BY clauses. NULL sorts first.
func sortResults(rows []op.Record, orderBy []sql.OrderByClause) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, clause := range orderBy {
			valI, valJ := rows[i][clause.Column], rows[j][clause.Column]

			var cmp int
			switch {
			case valI == nil && valJ == nil:
				cmp = 0
			case valI == nil:
				cmp = -1
			case valJ == nil:
				cmp = 1
			default:
				cmp = compareValues(valI, valJ)
			}

			if cmp != 0 {
				if clause.Descending {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return false
	})
}

// applyDistinct removes duplicate projected rows, keeping first occurrences.
func applyDistinct(rows [][]any) [][]any {
	seen := make(map[string]bool)
	var distinct [][]any

	for _, row := range rows {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = fmt.Sprintf("%T:%v", v, v)
		}
		key := strings.Join(parts, "\x00")

		if !seen[key] {
			seen[key] = true
			distinct = append(distinct, row)
		}
	}
	return distinct
}

func (e evaluator) count(operand *sql.Operand, clause string) (int, bool, error) {
	if operand == nil {
		return 0, false, nil
	}

	raw, err := e.bind(*operand)
	if err != nil {
		return 0, false, err
	}
	n, err := op.Coerce(core.IntType, raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", clause, err)
	}
	if n == nil || n.(int64) < 0 {
		return 0, false, fmt.Errorf("%s must be a non-negative integer", clause)
	}
	return int(n.(int64)), true, nil
}

func (engine *Engine) executeSelectStatement(statement sql.SelectStatement, binds map[int]any) (QueryResult, error) {
	startTime := time.Now()

	tableOp, err := engine.table(statement.Database, statement.Table)
	if err != nil {
		return QueryResult{}, err
	}
	e := evaluator{table: tableOp.Table, binds: binds}

	rows, scanned, err := e.filter(tableOp, statement.Where)
	if err != nil {
		return QueryResult{}, err
	}

	if statement.CountAll {
		columns, _ := engine.Columns(statement)
		return QueryResult{
			Transaction:      engine.Persistence.LatestTransaction(),
			ColumnNames:      columns,
			Data:             [][]any{{int64(len(rows))}},
			RecordsRead:      len(rows),
			ExecutionTimeSec: time.Since(startTime).Seconds(),
			ExecutionOps:     scanned,
		}, nil
	}

	for _, clause := range statement.OrderBy {
		if _, ok := tableOp.Table.Column(clause.Column); !ok {
			return QueryResult{}, fmt.Errorf("ORDER BY: %w: %s", op.ErrUnknownColumn, clause.Column)
		}
	}
	if len(statement.OrderBy) > 0 {
		sortResults(rows, statement.OrderBy)
	}

	items := statement.Items
	if len(items) == 0 {
		for _, col := range tableOp.Table.Columns {
			items = append(items, sql.SelectItem{Expr: sql.Column(col.Name)})
		}
	}

	columns := make([]string, len(items))
	for i, item := range items {
		columns[i] = item.Name()
	}

	data := make([][]any, 0, len(rows))
	for _, row := range rows {
		projected := make([]any, len(items))
		for i, item := range items {
			resolved, err := e.resolve(item.Expr, row)
			if err != nil {
				return QueryResult{}, err
			}
			if resolved.typed {
				projected[i] = resolved.v
			} else {
				projected[i] = loose(resolved.v)
			}
		}
		data = append(data, projected)
	}

	if statement.Distinct {
		data = applyDistinct(data)
	}

	offset, _, err := e.count(statement.Offset, "OFFSET")
	if err != nil {
		return QueryResult{}, err
	}
	if offset >= len(data) {
		data = data[:0]
	} else {
		data = data[offset:]
	}

	limit, hasLimit, err := e.count(statement.Limit, "LIMIT")
	if err != nil {
		return QueryResult{}, err
	}
	if hasLimit && len(data) > limit {
		data = data[:limit]
	}

	return QueryResult{
		Transaction:      engine.Persistence.LatestTransaction(),
		ColumnNames:      columns,
		Data:             data,
		RecordsRead:      len(data),
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     scanned,
	}, nil
}
