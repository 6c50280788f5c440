package ps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionBuilder(t *testing.T) {
	persistence := newTestPersistence(t)

	txn, err := persistence.BeginTransaction()
	require.NoError(t, err)

	require.NoError(t, txn.AddWrite("testdb", "users", "1", []byte(`{"name":"alice"}`)))
	require.NoError(t, txn.AddWrite("testdb", "users", "2", []byte(`{"name":"bob"}`)))
	require.NoError(t, txn.AddWrite("testdb", "orders", "1", []byte(`{"total":5}`)))
	assert.Equal(t, 3, txn.OperationCount())

	result, err := txn.Commit(testIdentity)
	require.NoError(t, err)
	assert.Equal(t, "Batch transaction: 3 operation(s)", result.Message)

	history, err := persistence.History(0)
	require.NoError(t, err)
	assert.Len(t, history, 1, "a batch is a single commit")

	assert.Len(t, persistence.ListRecordKeys("testdb", "users"), 2)
	assert.Len(t, persistence.ListRecordKeys("testdb", "orders"), 1)
}

func TestTransactionBuilderRollback(t *testing.T) {
	persistence := newTestPersistence(t)

	txn, err := persistence.BeginTransaction()
	require.NoError(t, err)
	require.NoError(t, txn.AddWrite("testdb", "users", "1", []byte(`{}`)))

	txn.Rollback()

	assert.Zero(t, txn.OperationCount())
	assert.Empty(t, persistence.ListRecordKeys("testdb", "users"))
	assert.Empty(t, persistence.LatestTransaction().Id)
}

func TestTransactionBuilderDelete(t *testing.T) {
	persistence := newTestPersistence(t)

	_, err := persistence.SaveRecords("testdb", "users", map[string][]byte{
		"1": []byte(`{}`),
		"2": []byte(`{}`),
	}, testIdentity)
	require.NoError(t, err)

	txn, err := persistence.BeginTransaction()
	require.NoError(t, err)
	require.NoError(t, txn.AddDelete("testdb", "users", "1"))
	require.NoError(t, txn.AddWrite("testdb", "users", "3", []byte(`{}`)))

	_, err = txn.Commit(testIdentity)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"2", "3"}, persistence.ListRecordKeys("testdb", "users"))
}

func TestTransactionBuilderEmptyCommit(t *testing.T) {
	persistence := newTestPersistence(t)

	txn, err := persistence.BeginTransaction()
	require.NoError(t, err)

	result, err := txn.Commit(testIdentity)
	require.NoError(t, err)
	assert.Empty(t, result.Id)
	assert.Empty(t, persistence.LatestTransaction().Id)
}

func TestTransactionBuilderNotStarted(t *testing.T) {
	persistence := newTestPersistence(t)

	txn, err := persistence.BeginTransaction()
	require.NoError(t, err)
	_, err = txn.Commit(testIdentity)
	require.NoError(t, err)

	assert.ErrorIs(t, txn.AddWrite("db", "t", "k", nil), ErrTransactionClosed)
	assert.ErrorIs(t, txn.AddDelete("db", "t", "k"), ErrTransactionClosed)
	_, err = txn.Commit(testIdentity)
	assert.ErrorIs(t, err, ErrTransactionClosed)
}

func TestTransactionBuilderMerge(t *testing.T) {
	persistence := newTestPersistence(t)

	outer, err := persistence.BeginTransaction()
	require.NoError(t, err)
	inner, err := persistence.BeginTransaction()
	require.NoError(t, err)

	require.NoError(t, inner.AddWrite("db", "t", "1", []byte("{}")))
	require.NoError(t, outer.Merge(inner))
	assert.Equal(t, 1, outer.OperationCount())
	assert.Zero(t, inner.OperationCount())

	_, err = outer.Commit(testIdentity)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, persistence.ListRecordKeys("db", "t"))
	assert.ErrorIs(t, outer.Merge(inner), ErrTransactionClosed)
}
