package adapter

import (
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nickyhof/storeadapter/store"
)

var (
	deletePattern = regexp.MustCompile(`(?i)^\s*DELETE\b`)
	wherePattern  = regexp.MustCompile(`(?i)\bWHERE\b`)
)

// guardDelete appends a tautology to a DELETE without WHERE, which the
// store refuses otherwise.
func guardDelete(sql string) string {
	if !deletePattern.MatchString(sql) || wherePattern.MatchString(blankQuoted(sql)) {
		return sql
	}
	return strings.TrimRight(strings.TrimSpace(sql), ";") + " WHERE 1=1"
}

// ExecQuery runs a statement returning rows.
func (a *Adapter) ExecQuery(sql string, binds []Bind) (*Result, error) {
	return a.run(sql, binds)
}

// ExecMutate runs a statement changing rows and returns the affected
// count.
func (a *Adapter) ExecMutate(sql string, binds []Bind) (int64, error) {
	result, err := a.run(guardDelete(sql), binds)
	if err != nil {
		return 0, err
	}
	return result.Affected(), nil
}

// ExecInsert runs an INSERT and returns idValue when given, the key the
// store assigned otherwise.
func (a *Adapter) ExecInsert(sql string, binds []Bind, idValue any) (any, error) {
	if _, err := a.run(sql, binds); err != nil {
		return nil, err
	}
	if idValue != nil {
		return idValue, nil
	}
	return a.LastInsertedID()
}

func (a *Adapter) ExecUpdate(sql string, binds []Bind) (int64, error) {
	return a.ExecMutate(sql, binds)
}

func (a *Adapter) ExecDelete(sql string, binds []Bind) (int64, error) {
	return a.ExecMutate(sql, binds)
}

// Execute runs sql without binds and returns its rows.
func (a *Adapter) Execute(sql string) ([][]any, error) {
	result, err := a.run(sql, nil)
	if err != nil {
		return nil, err
	}
	return result.Rows(), nil
}

// SelectRows runs a query without binds and returns its rows.
func (a *Adapter) SelectRows(sql string) ([][]any, error) {
	return a.Execute(sql)
}

// LastInsertedID returns the key assigned by the insert that produced the
// current result.
func (a *Adapter) LastInsertedID() (any, error) {
	if a.current == nil || a.current.Closed() {
		return nil, &IllegalStateError{Reason: "no current insert result", Err: ErrNothingInserted}
	}
	id, ok := a.current.LastInsertedID()
	if !ok {
		return nil, &IllegalStateError{Reason: "current result is not from an insert", Err: ErrNothingInserted}
	}
	return id, nil
}

func (a *Adapter) BeginTransaction() error {
	_, err := a.run("BEGIN", nil)
	return err
}

func (a *Adapter) CommitTransaction() error {
	_, err := a.run("COMMIT", nil)
	return err
}

func (a *Adapter) RollbackTransaction() error {
	_, err := a.run("ROLLBACK", nil)
	return err
}

// run takes sql through prepare, bind, execute and materialize. The
// current result is disposed up front, so a failed call leaves no stale
// insert id behind.
func (a *Adapter) run(sql string, binds []Bind) (*Result, error) {
	if a.perspective == nil {
		return nil, &ConnectionError{URL: a.config.URL, Err: ErrNotConnected}
	}
	a.disposeCurrent()
	start := time.Now()

	params, err := a.types.BindParams(binds)
	if err != nil {
		return nil, &StatementError{SQL: sql, Phase: PhaseBound, Err: err}
	}

	var result *Result
	switch {
	case !a.config.PreparedStatements:
		literal, err := InterpolateBinds(sql, params)
		if err != nil {
			return nil, &StatementError{SQL: sql, Phase: PhaseBound, Err: err}
		}
		result, err = a.runOnce(literal, nil)
		if err != nil {
			return nil, err
		}
	case len(params) == 0 || !a.pool.Enabled():
		result, err = a.runOnce(sql, params)
		if err != nil {
			return nil, err
		}
	default:
		prepared, err := a.pool.GetOrPrepare(sql, a.perspective.Prepare)
		if err != nil {
			return nil, &StatementError{SQL: sql, Phase: PhasePrepared, Err: err}
		}
		if err := checkArity(prepared.Statement(), params); err != nil {
			return nil, &StatementError{SQL: sql, Phase: PhaseBound, Err: err}
		}
		result, err = a.execute(prepared.Statement(), prepared.Columns, params)
		if err != nil {
			return nil, err
		}
	}

	a.logger.Debug("executed statement",
		zap.String("sql", sql),
		zap.Int("binds", len(params)),
		zap.Int("rows", result.Len()),
		zap.Int64("affected", result.Affected()),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// runOnce prepares a statement outside the pool and disposes it after
// execution.
func (a *Adapter) runOnce(sql string, params map[int]any) (*Result, error) {
	statement, err := a.perspective.Prepare(sql)
	if err != nil {
		return nil, &StatementError{SQL: sql, Phase: PhasePrepared, Err: err}
	}
	defer dispose(statement, a.logger)

	if err := checkArity(statement, params); err != nil {
		return nil, &StatementError{SQL: sql, Phase: PhaseBound, Err: err}
	}
	return a.execute(statement, statement.Columns, params)
}

func checkArity(statement store.Statement, params map[int]any) error {
	if statement.Params() != len(params) {
		return ErrBindCount
	}
	return nil
}

// execute replaces the current result and materializes the new one with
// the statement's resolved column names. Store errors are returned
// unchanged.
func (a *Adapter) execute(statement store.Statement, columns func() ([]string, error), params map[int]any) (*Result, error) {
	a.disposeCurrent()

	handle, err := statement.Execute(params)
	if err != nil {
		return nil, err
	}
	a.current = handle

	rows, err := handle.Rows()
	if err != nil {
		return nil, err
	}
	names, err := columns()
	if err != nil || names == nil {
		names = handle.Columns()
	}
	return newResult(names, rows, handle.AffectedCount()), nil
}
