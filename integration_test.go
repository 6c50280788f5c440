package storeadapter

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nickyhof/storeadapter/adapter"
	"github.com/nickyhof/storeadapter/core"
	"github.com/nickyhof/storeadapter/ps"
	"github.com/nickyhof/storeadapter/server"
)

// TestFunc is the signature for tests that run against every store kind.
type TestFunc func(t *testing.T, a *adapter.Adapter)

func connect(t *testing.T, url string) *adapter.Adapter {
	t.Helper()
	a, err := Open(adapter.Config{
		URL:                url,
		App:                "shop",
		PreparedStatements: true,
		StatementLimit:     adapter.DefaultStatementLimit,
	}, adapter.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(a.Disconnect)
	return a
}

// runWithEveryStore runs testFunc against an in-memory store, a file store
// and a store served over TCP.
func runWithEveryStore(t *testing.T, testFunc TestFunc) {
	t.Run("Memory", func(t *testing.T) {
		testFunc(t, connect(t, "memory://"+uuid.NewString()))
	})

	t.Run("File", func(t *testing.T) {
		testFunc(t, connect(t, "file://"+t.TempDir()))
	})

	t.Run("TCP", func(t *testing.T) {
		persistence, err := ps.NewMemoryPersistence()
		require.NoError(t, err)
		srv := server.NewServer(persistence, core.Identity{Name: "test", Email: "test@test.com"},
			server.WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, srv.Start("127.0.0.1:0"))
		t.Cleanup(func() { _ = srv.Stop() })

		testFunc(t, connect(t, "tcp://"+srv.Addr()))
	})
}

func createItems(t *testing.T, a *adapter.Adapter) {
	t.Helper()
	_, err := a.Execute(`CREATE TABLE "items" ("id" PK, "name" STRING, "price" FLOAT, "stock" INT)`)
	require.NoError(t, err)
}

func TestIntegrationWorkflow(t *testing.T) {
	runWithEveryStore(t, func(t *testing.T, a *adapter.Adapter) {
		createItems(t, a)

		insert := `INSERT INTO "items" ("name", "price", "stock") VALUES (?, ?, ?)`
		for i, item := range []struct {
			name  string
			price float64
			stock int
		}{{"lamp", 19.5, 3}, {"desk", 120, 1}, {"chair", 45.25, 8}} {
			id, err := a.ExecInsert(insert, adapter.Binds(item.name, item.price, item.stock), nil)
			require.NoError(t, err)
			assert.Equal(t, int64(i+1), id)
		}

		result, err := a.ExecQuery(`SELECT "name", "price" FROM "items" WHERE "stock" > ? ORDER BY "price" DESC`, adapter.Binds(2))
		require.NoError(t, err)
		assert.Equal(t, [][]any{{"chair", 45.25}, {"lamp", 19.5}}, result.Rows())

		affected, err := a.ExecUpdate(`UPDATE "items" SET "stock" = ? WHERE "name" = ?`, adapter.Binds(0, "desk"))
		require.NoError(t, err)
		assert.Equal(t, int64(1), affected)

		affected, err = a.ExecDelete(`DELETE FROM "items" WHERE "stock" = ?`, adapter.Binds(0))
		require.NoError(t, err)
		assert.Equal(t, int64(1), affected)

		rows, err := a.SelectRows(`SELECT COUNT(*) FROM "items"`)
		require.NoError(t, err)
		assert.Equal(t, [][]any{{int64(2)}}, rows)

		affected, err = a.ExecDelete(`DELETE FROM "items"`, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), affected)
	})
}

func TestIntegrationSchema(t *testing.T) {
	runWithEveryStore(t, func(t *testing.T, a *adapter.Adapter) {
		createItems(t, a)

		tables, err := a.Tables()
		require.NoError(t, err)
		assert.Equal(t, []string{"items"}, tables)

		columns, err := a.Columns("items")
		require.NoError(t, err)
		require.Len(t, columns, 4)
		assert.Equal(t, adapter.ColumnDescriptor{Name: "id", NativeType: "pk", Type: adapter.LogicalInteger, PrimaryKey: true}, columns[0])
		assert.Equal(t, adapter.LogicalFloat, columns[2].Type)
		assert.Equal(t, "id", a.PrimaryKey("items"))
	})
}

func TestIntegrationDistinctAndPaging(t *testing.T) {
	runWithEveryStore(t, func(t *testing.T, a *adapter.Adapter) {
		createItems(t, a)
		for i := 0; i < 10; i++ {
			_, err := a.ExecMutate(`INSERT INTO "items" ("name", "stock") VALUES (?, ?)`, adapter.Binds("item", i%3))
			require.NoError(t, err)
		}

		rows, err := a.SelectRows(`SELECT DISTINCT "stock" FROM "items" ORDER BY "stock"`)
		require.NoError(t, err)
		assert.Equal(t, [][]any{{int64(0)}, {int64(1)}, {int64(2)}}, rows)

		result, err := a.ExecQuery(`SELECT "id" FROM "items" ORDER BY "id" LIMIT ? OFFSET ?`, adapter.Binds(3, 4))
		require.NoError(t, err)
		assert.Equal(t, [][]any{{int64(5)}, {int64(6)}, {int64(7)}}, result.Rows())
	})
}

func TestIntegrationErrorHandling(t *testing.T) {
	runWithEveryStore(t, func(t *testing.T, a *adapter.Adapter) {
		createItems(t, a)

		_, err := a.ExecQuery(`SELECT * FROM "missing" WHERE "id" = ?`, adapter.Binds(1))
		var statementErr *adapter.StatementError
		require.ErrorAs(t, err, &statementErr)
		assert.Equal(t, adapter.PhasePrepared, statementErr.Phase)

		_, err = a.ExecMutate(`INSERT INTO "items" ("id", "name") VALUES (?, ?)`, adapter.Binds(1, "a"))
		require.NoError(t, err)
		_, err = a.ExecMutate(`INSERT INTO "items" ("id", "name") VALUES (?, ?)`, adapter.Binds(1, "b"))
		assert.Error(t, err)

		_, err = a.LastInsertedID()
		var stateErr *adapter.IllegalStateError
		assert.ErrorAs(t, err, &stateErr)
	})
}

func TestIntegrationUnsignedBinds(t *testing.T) {
	runWithEveryStore(t, func(t *testing.T, a *adapter.Adapter) {
		createItems(t, a)

		_, err := a.ExecMutate(`INSERT INTO "items" ("name", "stock") VALUES (?, ?)`, adapter.Binds("lamp", uint(5)))
		require.NoError(t, err)
		_, err = a.ExecMutate(`INSERT INTO "items" ("name", "stock") VALUES (?, ?)`, adapter.Binds("desk", uint64(1)))
		require.NoError(t, err)

		result, err := a.ExecQuery(`SELECT "name" FROM "items" WHERE "stock" = ?`, adapter.Binds(uint64(5)))
		require.NoError(t, err)
		assert.Equal(t, [][]any{{"lamp"}}, result.Rows())
	})
}

func TestIntegrationFailedStatementClearsInsertID(t *testing.T) {
	runWithEveryStore(t, func(t *testing.T, a *adapter.Adapter) {
		createItems(t, a)

		_, err := a.ExecMutate(`INSERT INTO "items" ("name") VALUES (?)`, adapter.Binds("lamp"))
		require.NoError(t, err)
		id, err := a.LastInsertedID()
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)

		_, err = a.ExecQuery("SELECT FROM WHERE ?", adapter.Binds(1))
		require.Error(t, err)

		_, err = a.LastInsertedID()
		var stateErr *adapter.IllegalStateError
		assert.ErrorAs(t, err, &stateErr)
	})
}

func TestIntegrationTransactions(t *testing.T) {
	runWithEveryStore(t, func(t *testing.T, a *adapter.Adapter) {
		createItems(t, a)

		require.NoError(t, a.BeginTransaction())
		for _, name := range []string{"a", "b", "c"} {
			_, err := a.ExecMutate(`INSERT INTO "items" ("name") VALUES (?)`, adapter.Binds(name))
			require.NoError(t, err)
		}
		require.NoError(t, a.CommitTransaction())

		rows, err := a.SelectRows(`SELECT COUNT(*) FROM "items"`)
		require.NoError(t, err)
		assert.Equal(t, [][]any{{int64(3)}}, rows)
	})
}

func TestIntegrationReconnect(t *testing.T) {
	runWithEveryStore(t, func(t *testing.T, a *adapter.Adapter) {
		createItems(t, a)
		_, err := a.ExecMutate(`INSERT INTO "items" ("name") VALUES (?)`, adapter.Binds("kept"))
		require.NoError(t, err)

		require.NoError(t, a.Reconnect())
		assert.True(t, a.Active())
		assert.Zero(t, a.Pool().Len())

		rows, err := a.SelectRows(`SELECT "name" FROM "items"`)
		require.NoError(t, err)
		assert.Equal(t, [][]any{{"kept"}}, rows)
	})
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")

	first := connect(t, "file://"+dir)
	createItems(t, first)
	_, err := first.ExecMutate(`INSERT INTO "items" ("name") VALUES (?)`, adapter.Binds("persisted"))
	require.NoError(t, err)
	first.Disconnect()

	second := connect(t, "file://"+dir)
	rows, err := second.SelectRows(`SELECT "name" FROM "items"`)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"persisted"}}, rows)
}

func TestOpenFailures(t *testing.T) {
	_, err := Open(adapter.Config{App: "shop"})
	var configErr *adapter.ConfigurationError
	assert.ErrorAs(t, err, &configErr)

	_, err = Open(adapter.Config{URL: "tcp://127.0.0.1:1", App: "shop"})
	var connErr *adapter.ConnectionError
	assert.ErrorAs(t, err, &connErr)

	assert.ElementsMatch(t, []string{"memory", "file", "tcp", "tls"}, DefaultRegistry().Schemes())
}
