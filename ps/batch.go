package ps

import (
	"errors"
	"fmt"
	"path"

	"github.com/nickyhof/storeadapter/core"
)

var ErrTransactionClosed = errors.New("transaction not started")

// Operation represents a single write operation in a transaction
type Operation struct {
	Type     OperationType
	Database string
	Table    string
	Key      string
	Data     []byte
}

type OperationType int

const (
	WriteOp OperationType = iota
	DeleteOp
)

// TransactionBuilder collects writes and deletes and commits them together.
// Nothing reaches the repository before Commit.
type TransactionBuilder struct {
	persistence *Persistence
	operations  []Operation
	started     bool
}

func (persistence *Persistence) BeginTransaction() (*TransactionBuilder, error) {
	if err := persistence.ensureInitialized(); err != nil {
		return nil, err
	}

	return &TransactionBuilder{persistence: persistence, started: true}, nil
}

func (tb *TransactionBuilder) AddWrite(database, table, key string, data []byte) error {
	if !tb.started {
		return ErrTransactionClosed
	}

	tb.operations = append(tb.operations, Operation{
		Type:     WriteOp,
		Database: database,
		Table:    table,
		Key:      key,
		Data:     data,
	})
	return nil
}

func (tb *TransactionBuilder) AddDelete(database, table, key string) error {
	if !tb.started {
		return ErrTransactionClosed
	}

	tb.operations = append(tb.operations, Operation{
		Type:     DeleteOp,
		Database: database,
		Table:    table,
		Key:      key,
	})
	return nil
}

// Commit applies all batched operations as one commit. An empty batch
// commits nothing and returns a zero Transaction.
func (tb *TransactionBuilder) Commit(identity core.Identity) (Transaction, error) {
	if !tb.started {
		return Transaction{}, ErrTransactionClosed
	}
	defer tb.Rollback()

	if len(tb.operations) == 0 {
		return Transaction{}, nil
	}

	changes := make([]TreeChange, 0, len(tb.operations))
	for _, op := range tb.operations {
		opPath := path.Join(op.Database, op.Table, op.Key)

		switch op.Type {
		case WriteOp:
			blobHash, err := tb.persistence.createBlob(op.Data)
			if err != nil {
				return Transaction{}, fmt.Errorf("failed to create blob for %s: %w", opPath, err)
			}
			changes = append(changes, TreeChange{Path: opPath, BlobHash: blobHash})
		case DeleteOp:
			changes = append(changes, TreeChange{Path: opPath, IsDelete: true})
		}
	}

	message := fmt.Sprintf("Batch transaction: %d operation(s)", len(tb.operations))
	return tb.persistence.applyChanges(changes, identity, message)
}

// Rollback discards all batched operations without committing
func (tb *TransactionBuilder) Rollback() {
	tb.started = false
	tb.operations = nil
}

func (tb *TransactionBuilder) OperationCount() int {
	return len(tb.operations)
}

// Merge moves the operations of other into tb, leaving other closed.
func (tb *TransactionBuilder) Merge(other *TransactionBuilder) error {
	if !tb.started {
		return ErrTransactionClosed
	}
	tb.operations = append(tb.operations, other.operations...)
	other.Rollback()
	return nil
}
