package op

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/nickyhof/storeadapter/core"
	"github.com/nickyhof/storeadapter/ps"
)

var (
	ErrNoPrimaryKey  = errors.New("no primary key found")
	ErrUnknownColumn = errors.New("unknown column")
	ErrInvalidKey    = errors.New("invalid record key")
)

// Record holds typed column values keyed by column name.
type Record map[string]any

type TableOp struct {
	Table       core.Table
	Persistence *ps.Persistence
}

func CreateTable(table core.Table, persistence *ps.Persistence, identity core.Identity) (*ps.Transaction, *TableOp, error) {
	if _, ok := table.PrimaryKey(); !ok {
		return nil, nil, fmt.Errorf("table %s: %w", table.Name, ErrNoPrimaryKey)
	}

	txn, err := persistence.CreateTable(table, identity)
	if err != nil {
		return nil, nil, err
	}

	return &txn, &TableOp{
		Table:       table,
		Persistence: persistence,
	}, nil
}

func GetTable(database string, tableName string, persistence *ps.Persistence) (*TableOp, error) {
	table, err := persistence.GetTable(database, tableName)
	if err != nil {
		return nil, err
	}

	return &TableOp{
		Table:       *table,
		Persistence: persistence,
	}, nil
}

func (op *TableOp) PrimaryKey() (core.Column, error) {
	col, ok := op.Table.PrimaryKey()
	if !ok {
		return core.Column{}, ErrNoPrimaryKey
	}
	return col, nil
}

func (op *TableOp) DropTable(identity core.Identity) (ps.Transaction, error) {
	return op.Persistence.DropTable(op.Table.Database, op.Table.Name, identity)
}

// Key derives the record key from the record's primary key value.
func (op *TableOp) Key(record Record) (string, error) {
	pk, err := op.PrimaryKey()
	if err != nil {
		return "", err
	}

	key, err := FormatKey(pk.Type, record[pk.Name])
	if err != nil {
		return "", fmt.Errorf("column %s: %w", pk.Name, err)
	}
	if key == "" || strings.ContainsAny(key, "/\x00") || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return key, nil
}

// Encode validates a record against the schema and serializes it.
// Columns missing from the record are stored as null.
func (op *TableOp) Encode(record Record) ([]byte, error) {
	for name := range record {
		if _, ok := op.Table.Column(name); !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, op.Table.Name, name)
		}
	}

	stored := make(map[string]*string, len(op.Table.Columns))
	for _, col := range op.Table.Columns {
		value, err := Encode(col.Type, record[col.Name])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		stored[col.Name] = value
	}
	return json.Marshal(stored)
}

func (op *TableOp) Decode(data []byte) (Record, error) {
	var stored map[string]*string
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("corrupt record in %s: %w", op.Table.Name, err)
	}

	record := make(Record, len(op.Table.Columns))
	for _, col := range op.Table.Columns {
		value, err := Decode(col.Type, stored[col.Name])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		record[col.Name] = value
	}
	return record, nil
}

func (op *TableOp) Get(key string) (Record, bool, error) {
	data, exists := op.Persistence.GetRecord(op.Table.Database, op.Table.Name, key)
	if !exists {
		return nil, false, nil
	}

	record, err := op.Decode(data)
	if err != nil {
		return nil, true, err
	}
	return record, true, nil
}

func (op *TableOp) Put(record Record, identity core.Identity) (ps.Transaction, error) {
	return op.PutAll([]Record{record}, identity)
}

func (op *TableOp) PutAll(records []Record, identity core.Identity) (ps.Transaction, error) {
	encoded := make(map[string][]byte, len(records))
	for _, record := range records {
		key, data, err := op.encodeWithKey(record)
		if err != nil {
			return ps.Transaction{}, err
		}
		encoded[key] = data
	}
	return op.Persistence.SaveRecords(op.Table.Database, op.Table.Name, encoded, identity)
}

func (op *TableOp) encodeWithKey(record Record) (string, []byte, error) {
	key, err := op.Key(record)
	if err != nil {
		return "", nil, err
	}
	data, err := op.Encode(record)
	if err != nil {
		return "", nil, err
	}
	return key, data, nil
}

func (op *TableOp) Delete(keys []string, identity core.Identity) (ps.Transaction, error) {
	return op.Persistence.DeleteRecords(op.Table.Database, op.Table.Name, keys, identity)
}

// StageWrite queues a record write on a batch. A changed primary key
// is the caller's business: the old key is not removed.
func (op *TableOp) StageWrite(tb *ps.TransactionBuilder, record Record) error {
	key, data, err := op.encodeWithKey(record)
	if err != nil {
		return err
	}
	return tb.AddWrite(op.Table.Database, op.Table.Name, key, data)
}

func (op *TableOp) StageDelete(tb *ps.TransactionBuilder, key string) error {
	return tb.AddDelete(op.Table.Database, op.Table.Name, key)
}

func (op *TableOp) Count() int {
	return len(op.Keys())
}

func (op *TableOp) Keys() []string {
	return op.Persistence.ListRecordKeys(op.Table.Database, op.Table.Name)
}

// Scan yields every record with its key. Decoding stops at the first
// corrupt record, which is yielded as an error.
func (op *TableOp) Scan() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for _, data := range op.Persistence.Scan(op.Table.Database, op.Table.Name) {
			record, err := op.Decode(data)
			if !yield(record, err) || err != nil {
				return
			}
		}
	}
}

// NextID returns one past the largest integer key in the table.
func (op *TableOp) NextID() int64 {
	var maxID int64
	for _, key := range op.Keys() {
		if n, err := strconv.ParseInt(key, 10, 64); err == nil && n > maxID {
			maxID = n
		}
	}
	return maxID + 1
}
