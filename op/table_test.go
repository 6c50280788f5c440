package op

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/storeadapter/core"
	"github.com/nickyhof/storeadapter/ps"
)

var testIdentity = core.Identity{Name: "test", Email: "test@test.com"}

func newUsers(t *testing.T) *TableOp {
	t.Helper()
	persistence, err := ps.NewMemoryPersistence()
	require.NoError(t, err)

	_, err = EnsureDatabase("shop", persistence, testIdentity)
	require.NoError(t, err)

	_, tableOp, err := CreateTable(core.Table{
		Database: "shop",
		Name:     "users",
		Columns: []core.Column{
			{Name: "id", Type: core.PrimaryKeyType, PrimaryKey: true},
			{Name: "name", Type: core.StringType},
			{Name: "avatar", Type: core.BlobType},
		},
	}, persistence, testIdentity)
	require.NoError(t, err)
	return tableOp
}

func TestCreateTableRequiresPrimaryKey(t *testing.T) {
	persistence, err := ps.NewMemoryPersistence()
	require.NoError(t, err)

	_, _, err = CreateTable(core.Table{
		Database: "shop",
		Name:     "loose",
		Columns:  []core.Column{{Name: "a", Type: core.StringType}},
	}, persistence, testIdentity)
	assert.ErrorIs(t, err, ErrNoPrimaryKey)
}

func TestTablePutGet(t *testing.T) {
	users := newUsers(t)

	_, err := users.Put(Record{"id": 1, "name": "alice", "avatar": []byte{1, 2}}, testIdentity)
	require.NoError(t, err)

	record, exists, err := users.Get("1")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, Record{"id": int64(1), "name": "alice", "avatar": []byte{1, 2}}, record)

	_, exists, err = users.Get("2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTablePutRejectsBadRecords(t *testing.T) {
	users := newUsers(t)

	_, err := users.Put(Record{"id": 1, "nickname": "al"}, testIdentity)
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = users.Put(Record{"name": "no key"}, testIdentity)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = users.Put(Record{"id": "x"}, testIdentity)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestTableScanDeleteNextID(t *testing.T) {
	users := newUsers(t)
	assert.Equal(t, int64(1), users.NextID())

	_, err := users.PutAll([]Record{
		{"id": 1, "name": "alice"},
		{"id": 9, "name": "bob"},
	}, testIdentity)
	require.NoError(t, err)

	assert.Equal(t, 2, users.Count())
	assert.Equal(t, int64(10), users.NextID())

	var names []any
	for record, err := range users.Scan() {
		require.NoError(t, err)
		names = append(names, record["name"])
	}
	assert.ElementsMatch(t, []any{"alice", "bob"}, names)

	_, err = users.Delete([]string{"9"}, testIdentity)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, users.Keys())
}

func TestTableStagedWrites(t *testing.T) {
	users := newUsers(t)

	tb, err := users.Persistence.BeginTransaction()
	require.NoError(t, err)
	require.NoError(t, users.StageWrite(tb, Record{"id": 1, "name": "alice"}))
	require.NoError(t, users.StageWrite(tb, Record{"id": 2, "name": "bob"}))
	require.NoError(t, users.StageDelete(tb, "2"))

	_, err = tb.Commit(testIdentity)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, users.Keys())
}

func TestDatabaseOp(t *testing.T) {
	persistence, err := ps.NewMemoryPersistence()
	require.NoError(t, err)

	_, err = GetDatabase("shop", persistence)
	assert.ErrorIs(t, err, ps.ErrNotFound)

	dbOp, err := EnsureDatabase("shop", persistence, testIdentity)
	require.NoError(t, err)
	again, err := EnsureDatabase("shop", persistence, testIdentity)
	require.NoError(t, err)
	assert.Equal(t, dbOp.Database, again.Database)

	_, err = persistence.CreateTable(core.Table{Database: "shop", Name: "orders"}, testIdentity)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, dbOp.TableNames())

	_, err = dbOp.DropDatabase(testIdentity)
	require.NoError(t, err)
	assert.Empty(t, persistence.ListDatabases())
}
