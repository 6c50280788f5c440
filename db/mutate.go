package db

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nickyhof/storeadapter/core"
	"github.com/nickyhof/storeadapter/op"
	"github.com/nickyhof/storeadapter/ps"
	"github.com/nickyhof/storeadapter/sql"
)

// batch collects the row writes of one statement. On success they are
// committed, or handed to the open transaction when there is one, so a
// failing statement never leaves half its writes behind.
type batch struct {
	engine *Engine
	tb     *ps.TransactionBuilder
}

func (engine *Engine) batch() (*batch, error) {
	tb, err := engine.Persistence.BeginTransaction()
	if err != nil {
		return nil, err
	}
	return &batch{engine: engine, tb: tb}, nil
}

func (b *batch) commit() (ps.Transaction, error) {
	if b.engine.txn != nil {
		return ps.Transaction{}, b.engine.txn.Merge(b.tb)
	}
	return b.tb.Commit(b.engine.Identity)
}

func (b *batch) discard() {
	b.tb.Rollback()
}

// pendingKeys tracks keys staged in the open transaction per table.
func (engine *Engine) pendingKeys(table core.Table) map[string]bool {
	if engine.pending == nil {
		return nil
	}
	path := table.Database + "/" + table.Name
	if engine.pending[path] == nil {
		engine.pending[path] = make(map[string]bool)
	}
	return engine.pending[path]
}

// keyTaken reports whether a key exists in the table or in staged writes.
func (engine *Engine) keyTaken(tableOp *op.TableOp, key string, staged map[string]bool) bool {
	if staged[key] || engine.pendingKeys(tableOp.Table)[key] {
		return true
	}
	_, exists := engine.Persistence.GetRecord(tableOp.Table.Database, tableOp.Table.Name, key)
	return exists
}

// nextID returns the next free integer key, counting keys staged so far.
func (engine *Engine) nextID(tableOp *op.TableOp, staged map[string]bool) int64 {
	next := tableOp.NextID()
	for _, keys := range []map[string]bool{staged, engine.pendingKeys(tableOp.Table)} {
		for key := range keys {
			if n, err := strconv.ParseInt(key, 10, 64); err == nil && n >= next {
				next = n + 1
			}
		}
	}
	return next
}

// assignKey fills in a missing primary key: integer keys count up from
// the largest existing one, UUID keys are generated.
func (engine *Engine) assignKey(tableOp *op.TableOp, record op.Record, staged map[string]bool) error {
	pk, err := tableOp.PrimaryKey()
	if err != nil {
		return err
	}
	if record[pk.Name] != nil {
		return nil
	}

	switch pk.Type {
	case core.PrimaryKeyType, core.IntType:
		record[pk.Name] = engine.nextID(tableOp, staged)
	case core.UUIDType:
		record[pk.Name] = uuid.NewString()
	default:
		return fmt.Errorf("column %s: primary key value required", pk.Name)
	}
	return nil
}

func (engine *Engine) executeInsertStatement(statement sql.InsertStatement, binds map[int]any) (CommitResult, error) {
	startTime := time.Now()

	if err := engine.writable(); err != nil {
		return CommitResult{}, err
	}
	tableOp, err := engine.table(statement.Database, statement.Table)
	if err != nil {
		return CommitResult{}, err
	}
	pk, err := tableOp.PrimaryKey()
	if err != nil {
		return CommitResult{}, err
	}

	columns := statement.Columns
	if len(columns) == 0 {
		columns = columnNames(tableOp.Table)
	}

	e := evaluator{table: tableOp.Table, binds: binds}
	staged := make(map[string]bool)
	var lastID any

	b, err := engine.batch()
	if err != nil {
		return CommitResult{}, err
	}

	for _, row := range statement.Rows {
		if len(row) != len(columns) {
			b.discard()
			return CommitResult{}, fmt.Errorf("INSERT has %d columns but %d values", len(columns), len(row))
		}

		record := make(op.Record, len(columns))
		for i, column := range columns {
			v, err := e.bind(row[i])
			if err != nil {
				b.discard()
				return CommitResult{}, err
			}
			record[column] = v
		}

		if err := engine.assignKey(tableOp, record, staged); err != nil {
			b.discard()
			return CommitResult{}, err
		}
		key, err := tableOp.Key(record)
		if err != nil {
			b.discard()
			return CommitResult{}, err
		}
		if engine.keyTaken(tableOp, key, staged) {
			b.discard()
			return CommitResult{}, fmt.Errorf("%s.%s key %s: %w", tableOp.Table.Database, tableOp.Table.Name, key, ErrDuplicateKey)
		}

		if err := tableOp.StageWrite(b.tb, record); err != nil {
			b.discard()
			return CommitResult{}, err
		}
		staged[key] = true
		lastID, _ = op.Coerce(pk.Type, record[pk.Name])
	}

	txn, err := b.commit()
	if err != nil {
		return CommitResult{}, err
	}
	engine.markPending(tableOp.Table, staged)

	return CommitResult{
		Transaction:      txn,
		RecordsWritten:   len(statement.Rows),
		LastInsertedID:   lastID,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     len(statement.Rows),
	}, nil
}

func (engine *Engine) markPending(table core.Table, keys map[string]bool) {
	pending := engine.pendingKeys(table)
	if pending == nil {
		return
	}
	for key := range keys {
		pending[key] = true
	}
}

// executeUpdateStatement rewrites every matching record in one batch. A
// changed primary key moves the record to its new key.
func (engine *Engine) executeUpdateStatement(statement sql.UpdateStatement, binds map[int]any) (CommitResult, error) {
	startTime := time.Now()

	if err := engine.writable(); err != nil {
		return CommitResult{}, err
	}
	tableOp, err := engine.table(statement.Database, statement.Table)
	if err != nil {
		return CommitResult{}, err
	}

	e := evaluator{table: tableOp.Table, binds: binds}
	updates := make(op.Record, len(statement.Updates))
	for _, update := range statement.Updates {
		if _, ok := tableOp.Table.Column(update.Column); !ok {
			return CommitResult{}, fmt.Errorf("%w: %s.%s", op.ErrUnknownColumn, tableOp.Table.Name, update.Column)
		}
		v, err := e.bind(update.Value)
		if err != nil {
			return CommitResult{}, err
		}
		updates[update.Column] = v
	}

	rows, scanned, err := e.filter(tableOp, statement.Where)
	if err != nil {
		return CommitResult{}, err
	}
	if len(rows) == 0 {
		return CommitResult{Transaction: engine.Persistence.LatestTransaction(), ExecutionOps: scanned}, nil
	}

	b, err := engine.batch()
	if err != nil {
		return CommitResult{}, err
	}

	staged := make(map[string]bool)
	for _, row := range rows {
		oldKey, err := tableOp.Key(row)
		if err != nil {
			b.discard()
			return CommitResult{}, err
		}
		for column, v := range updates {
			row[column] = v
		}
		newKey, err := tableOp.Key(row)
		if err != nil {
			b.discard()
			return CommitResult{}, err
		}

		if newKey != oldKey {
			if engine.keyTaken(tableOp, newKey, staged) {
				b.discard()
				return CommitResult{}, fmt.Errorf("%s.%s key %s: %w", tableOp.Table.Database, tableOp.Table.Name, newKey, ErrDuplicateKey)
			}
			if err := tableOp.StageDelete(b.tb, oldKey); err != nil {
				b.discard()
				return CommitResult{}, err
			}
		}
		if err := tableOp.StageWrite(b.tb, row); err != nil {
			b.discard()
			return CommitResult{}, err
		}
		staged[newKey] = true
	}

	txn, err := b.commit()
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      txn,
		RecordsWritten:   len(rows),
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     scanned + len(rows),
	}, nil
}

// executeDeleteStatement refuses to run without a WHERE clause; callers
// that mean every row say so with a tautology such as WHERE 1=1.
func (engine *Engine) executeDeleteStatement(statement sql.DeleteStatement, binds map[int]any) (CommitResult, error) {
	startTime := time.Now()

	if !statement.Where.Present() {
		return CommitResult{}, ErrUnfilteredDelete
	}
	if err := engine.writable(); err != nil {
		return CommitResult{}, err
	}
	tableOp, err := engine.table(statement.Database, statement.Table)
	if err != nil {
		return CommitResult{}, err
	}

	e := evaluator{table: tableOp.Table, binds: binds}
	rows, scanned, err := e.filter(tableOp, statement.Where)
	if err != nil {
		return CommitResult{}, err
	}
	if len(rows) == 0 {
		return CommitResult{Transaction: engine.Persistence.LatestTransaction(), ExecutionOps: scanned}, nil
	}

	b, err := engine.batch()
	if err != nil {
		return CommitResult{}, err
	}
	for _, row := range rows {
		key, err := tableOp.Key(row)
		if err != nil {
			b.discard()
			return CommitResult{}, err
		}
		if err := tableOp.StageDelete(b.tb, key); err != nil {
			b.discard()
			return CommitResult{}, err
		}
	}

	txn, err := b.commit()
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      txn,
		RecordsDeleted:   len(rows),
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     scanned + len(rows),
	}, nil
}
