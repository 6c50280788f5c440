package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nickyhof/storeadapter/core"
	"github.com/nickyhof/storeadapter/op"
	"github.com/nickyhof/storeadapter/ps"
)

var testIdentity = core.Identity{Name: "test", Email: "test@test.com"}

func setupTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	persistence, err := ps.NewMemoryPersistence()
	require.NoError(t, err)

	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	engine := NewEngine(persistence, testIdentity, opts...)

	mustExec(t, engine, "CREATE DATABASE testdb")
	mustExec(t, engine, "CREATE TABLE testdb.users (id INT PRIMARY KEY, name STRING, age INT)")
	return engine
}

func mustExec(t *testing.T, engine *Engine, query string, binds ...any) Result {
	t.Helper()
	result, err := engine.Execute(query, bindMap(binds))
	require.NoError(t, err, query)
	return result
}

func bindMap(values []any) map[int]any {
	binds := make(map[int]any, len(values))
	for i, v := range values {
		binds[i] = v
	}
	return binds
}

func insertTestData(t *testing.T, engine *Engine) {
	mustExec(t, engine, "INSERT INTO testdb.users (id, name, age) VALUES (1, 'Alice', 30)")
	mustExec(t, engine, "INSERT INTO testdb.users (id, name, age) VALUES (2, 'Bob', 25)")
	mustExec(t, engine, "INSERT INTO testdb.users (id, name, age) VALUES (3, 'Charlie', 35)")
}

func TestEngineSelect(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	qr := mustExec(t, engine, "SELECT * FROM testdb.users").(QueryResult)
	assert.Equal(t, 3, qr.RecordsRead)
	assert.Equal(t, []string{"id", "name", "age"}, qr.Columns())
}

func TestEngineSelectWithWhere(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	tests := []struct {
		query    string
		binds    []any
		expected int
	}{
		{"SELECT * FROM testdb.users WHERE age > 28", nil, 2},
		{"SELECT * FROM testdb.users WHERE age > ?", []any{28}, 2},
		{"SELECT * FROM testdb.users WHERE ? < age", []any{"28"}, 2},
		{"SELECT * FROM testdb.users WHERE name = ? AND age = ?", []any{"Bob", int64(25)}, 1},
		{"SELECT * FROM testdb.users WHERE name = 'Bob' OR name = 'Alice'", nil, 2},
		{"SELECT * FROM testdb.users WHERE id IN (1, ?)", []any{3}, 2},
		{"SELECT * FROM testdb.users WHERE id NOT IN (1)", nil, 2},
		{"SELECT * FROM testdb.users WHERE name LIKE 'a%'", nil, 1},
		{"SELECT * FROM testdb.users WHERE name LIKE '_ob'", nil, 1},
		{"SELECT * FROM testdb.users WHERE 1 = 1", nil, 3},
		{"SELECT * FROM testdb.users WHERE age IS NULL", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			qr := mustExec(t, engine, tt.query, tt.binds...).(QueryResult)
			assert.Len(t, qr.Data, tt.expected)
		})
	}
}

func TestEngineSelectOrderByLimitOffset(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	qr := mustExec(t, engine, "SELECT name FROM testdb.users ORDER BY age DESC").(QueryResult)
	assert.Equal(t, [][]any{{"Charlie"}, {"Alice"}, {"Bob"}}, qr.Data)

	qr = mustExec(t, engine, "SELECT name FROM testdb.users ORDER BY id LIMIT ? OFFSET 1", 1).(QueryResult)
	assert.Equal(t, [][]any{{"Bob"}}, qr.Data)

	qr = mustExec(t, engine, "SELECT name FROM testdb.users OFFSET 5").(QueryResult)
	assert.Empty(t, qr.Data)
}

func TestEngineSelectLiteralProbe(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	qr := mustExec(t, engine, "SELECT 1 AS one FROM testdb.users WHERE name = ? LIMIT 1", "Alice").(QueryResult)
	assert.Equal(t, []string{"one"}, qr.Columns())
	assert.Equal(t, [][]any{{int64(1)}}, qr.Data)
}

func TestEngineCount(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	qr := mustExec(t, engine, "SELECT COUNT(*) FROM testdb.users").(QueryResult)
	assert.Equal(t, [][]any{{int64(3)}}, qr.Data)
	assert.Equal(t, []string{"COUNT(*)"}, qr.Columns())

	qr = mustExec(t, engine, "SELECT COUNT(*) AS n FROM testdb.users WHERE age < 30").(QueryResult)
	assert.Equal(t, [][]any{{int64(1)}}, qr.Data)
	assert.Equal(t, []string{"n"}, qr.Columns())
}

func TestEngineDistinct(t *testing.T) {
	engine := setupTestEngine(t)

	mustExec(t, engine, "INSERT INTO testdb.users (id, name, age) VALUES (1, 'Alice', 30), (2, 'Alice', 30), (3, 'Bob', 25)")

	qr := mustExec(t, engine, "SELECT DISTINCT name FROM testdb.users").(QueryResult)
	assert.Len(t, qr.Data, 2)
}

func TestEngineInsert(t *testing.T) {
	engine := setupTestEngine(t)

	cr := mustExec(t, engine, "INSERT INTO testdb.users (name, age) VALUES (?, ?), ('Bob', NULL)", "Alice", 30).(CommitResult)
	assert.Equal(t, int64(2), cr.AffectedCount())
	assert.Equal(t, int64(2), cr.LastInsertedID)
	assert.NotEmpty(t, cr.Transaction.Id)

	qr := mustExec(t, engine, "SELECT id, age FROM testdb.users ORDER BY id").(QueryResult)
	assert.Equal(t, [][]any{{int64(1), int64(30)}, {int64(2), nil}}, qr.Data)

	_, err := engine.Execute("INSERT INTO testdb.users (id, name) VALUES (1, 'dup')", nil)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = engine.Execute("INSERT INTO testdb.users (id, age) VALUES (9, 'old')", nil)
	assert.ErrorIs(t, err, op.ErrTypeMismatch)

	_, err = engine.Execute("INSERT INTO testdb.users (id, name) VALUES (?, ?)", map[int]any{0: 9})
	assert.ErrorIs(t, err, ErrMissingBind)

	qr = mustExec(t, engine, "SELECT COUNT(*) FROM testdb.users").(QueryResult)
	assert.Equal(t, [][]any{{int64(2)}}, qr.Data, "failed inserts leave nothing behind")
}

func TestEngineInsertTypedColumns(t *testing.T) {
	engine := setupTestEngine(t)
	mustExec(t, engine, `CREATE TABLE testdb.docs (id UUID PRIMARY KEY, body BLOB, seen TIMESTAMP, score FLOAT, ok BOOL)`)

	seen := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cr := mustExec(t, engine, "INSERT INTO testdb.docs (body, seen, score, ok) VALUES (?, ?, ?, ?)",
		[]byte{0xff, 0x00}, seen, 1.5, true).(CommitResult)

	id, ok := cr.LastInsertedID.(string)
	require.True(t, ok)
	assert.Len(t, id, 36)

	qr := mustExec(t, engine, "SELECT body, seen, score, ok FROM testdb.docs WHERE id = ?", id).(QueryResult)
	assert.Equal(t, [][]any{{[]byte{0xff, 0x00}, seen, 1.5, true}}, qr.Data)
}

func TestEngineUpdate(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	cr := mustExec(t, engine, "UPDATE testdb.users SET age = ? WHERE age >= 30", 40).(CommitResult)
	assert.Equal(t, int64(2), cr.AffectedCount())

	qr := mustExec(t, engine, "SELECT name FROM testdb.users WHERE age = 40 ORDER BY name").(QueryResult)
	assert.Equal(t, [][]any{{"Alice"}, {"Charlie"}}, qr.Data)

	cr = mustExec(t, engine, "UPDATE testdb.users SET age = 1 WHERE id = 99").(CommitResult)
	assert.Zero(t, cr.AffectedCount())

	cr = mustExec(t, engine, "UPDATE testdb.users SET name = 'X'").(CommitResult)
	assert.Equal(t, int64(3), cr.AffectedCount())
}

func TestEngineUpdateMovesKey(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	mustExec(t, engine, "UPDATE testdb.users SET id = 10 WHERE id = 1")

	qr := mustExec(t, engine, "SELECT id FROM testdb.users ORDER BY id").(QueryResult)
	assert.Equal(t, [][]any{{int64(2)}, {int64(3)}, {int64(10)}}, qr.Data)

	_, err := engine.Execute("UPDATE testdb.users SET id = 2 WHERE id = 3", nil)
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestEngineDelete(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	cr := mustExec(t, engine, "DELETE FROM testdb.users WHERE id = ?", 2).(CommitResult)
	assert.Equal(t, int64(1), cr.AffectedCount())

	_, err := engine.Execute("DELETE FROM testdb.users", nil)
	assert.ErrorIs(t, err, ErrUnfilteredDelete)

	cr = mustExec(t, engine, "DELETE FROM testdb.users WHERE 1=1").(CommitResult)
	assert.Equal(t, int64(2), cr.AffectedCount())

	qr := mustExec(t, engine, "SELECT COUNT(*) FROM testdb.users").(QueryResult)
	assert.Equal(t, [][]any{{int64(0)}}, qr.Data)
}

func TestEngineDDL(t *testing.T) {
	engine := setupTestEngine(t)

	_, err := engine.Execute("CREATE TABLE testdb.users (id PK)", nil)
	assert.ErrorIs(t, err, ErrTableExists)
	mustExec(t, engine, "CREATE TABLE IF NOT EXISTS testdb.users (id PK)")

	_, err = engine.Execute("CREATE DATABASE testdb", nil)
	assert.ErrorIs(t, err, ErrDatabaseExists)

	_, err = engine.Execute("CREATE TABLE testdb.loose (name STRING)", nil)
	assert.ErrorIs(t, err, op.ErrNoPrimaryKey)

	mustExec(t, engine, "DROP TABLE testdb.users")
	_, err = engine.Execute("DROP TABLE testdb.users", nil)
	assert.ErrorIs(t, err, ErrTableNotFound)
	mustExec(t, engine, "DROP TABLE IF EXISTS testdb.users")

	mustExec(t, engine, "DROP DATABASE testdb")
	mustExec(t, engine, "DROP DATABASE IF EXISTS testdb")
	qr := mustExec(t, engine, "SHOW DATABASES").(QueryResult)
	assert.Empty(t, qr.Data)
}

func TestEngineShowAndDescribe(t *testing.T) {
	engine := setupTestEngine(t)

	qr := mustExec(t, engine, "SHOW DATABASES").(QueryResult)
	assert.Equal(t, [][]any{{"testdb"}}, qr.Data)

	qr = mustExec(t, engine, "SHOW TABLES IN testdb").(QueryResult)
	assert.Equal(t, [][]any{{"users"}}, qr.Data)

	qr = mustExec(t, engine, "DESCRIBE testdb.users").(QueryResult)
	assert.Equal(t, []string{"name", "type", "primary_key"}, qr.Columns())
	assert.Equal(t, [][]any{
		{"id", "integer", "YES"},
		{"name", "string", "NO"},
		{"age", "integer", "NO"},
	}, qr.Data)

	_, err := engine.Execute("SHOW TABLES", nil)
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestEngineTransaction(t *testing.T) {
	engine := setupTestEngine(t)

	mustExec(t, engine, "BEGIN")
	assert.True(t, engine.InTransaction())
	_, err := engine.Execute("BEGIN", nil)
	assert.ErrorIs(t, err, ErrTransactionInProgress)

	mustExec(t, engine, "INSERT INTO testdb.users (name) VALUES ('a')")
	cr := mustExec(t, engine, "INSERT INTO testdb.users (name) VALUES ('b')").(CommitResult)
	assert.Equal(t, int64(2), cr.LastInsertedID, "ids count staged rows")

	qr := mustExec(t, engine, "SELECT COUNT(*) FROM testdb.users").(QueryResult)
	assert.Equal(t, [][]any{{int64(0)}}, qr.Data, "reads see committed data")

	_, err = engine.Execute("INSERT INTO testdb.users (id, name) VALUES (1, 'dup')", nil)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	before := engine.Persistence.LatestTransaction().Id
	cr = mustExec(t, engine, "COMMIT").(CommitResult)
	assert.NotEqual(t, before, cr.Transaction.Id)
	assert.False(t, engine.InTransaction())

	qr = mustExec(t, engine, "SELECT COUNT(*) FROM testdb.users").(QueryResult)
	assert.Equal(t, [][]any{{int64(2)}}, qr.Data)
}

func TestEngineRollback(t *testing.T) {
	engine := setupTestEngine(t)

	mustExec(t, engine, "ROLLBACK")
	mustExec(t, engine, "COMMIT")

	mustExec(t, engine, "BEGIN TRANSACTION")
	mustExec(t, engine, "INSERT INTO testdb.users (name) VALUES ('a')")
	mustExec(t, engine, "ROLLBACK")

	qr := mustExec(t, engine, "SELECT COUNT(*) FROM testdb.users").(QueryResult)
	assert.Equal(t, [][]any{{int64(0)}}, qr.Data)
}

func TestEnginePerspective(t *testing.T) {
	engine := setupTestEngine(t)
	mustExec(t, engine, "CREATE TABLE testdb.secrets (id PK)")
	insertTestData(t, engine)

	scoped := NewEngine(engine.Persistence, testIdentity, WithPerspective(core.Perspective{
		Name:     "public",
		Database: "testdb",
		Tables:   []string{"users"},
		ReadOnly: true,
	}))

	qr := mustExec(t, scoped, "SELECT COUNT(*) FROM users").(QueryResult)
	assert.Equal(t, [][]any{{int64(3)}}, qr.Data)

	qr = mustExec(t, scoped, "SHOW TABLES").(QueryResult)
	assert.Equal(t, [][]any{{"users"}}, qr.Data)

	_, err := scoped.Execute("SELECT * FROM secrets", nil)
	assert.ErrorIs(t, err, ErrOutsidePerspective)
	_, err = scoped.Execute("SELECT * FROM other.users", nil)
	assert.ErrorIs(t, err, ErrOutsidePerspective)
	_, err = scoped.Execute("CREATE DATABASE more", nil)
	assert.ErrorIs(t, err, ErrOutsidePerspective)
	_, err = scoped.Execute("DELETE FROM users WHERE id = 1", nil)
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestEngineLazyDatabase(t *testing.T) {
	persistence, err := ps.NewMemoryPersistence()
	require.NoError(t, err)
	engine := NewEngine(persistence, testIdentity, WithPerspective(core.Perspective{Name: "app", Database: "app"}))

	qr := mustExec(t, engine, "SHOW TABLES").(QueryResult)
	assert.Empty(t, qr.Data)

	mustExec(t, engine, `CREATE TABLE "things" ("id" PK, "name" STRING)`)
	assert.Equal(t, []string{"app"}, persistence.ListDatabases())
}

func TestMatchLike(t *testing.T) {
	tests := []struct {
		value, pattern string
		expected       bool
	}{
		{"Alice", "%", true},
		{"Alice", "al%", true},
		{"Alice", "%CE", true},
		{"Alice", "%li%", true},
		{"Alice", "A_ice", true},
		{"Alice", "A_ce", false},
		{"Alice", "alice", true},
		{"Alice", "Bob%", false},
		{"", "%", true},
		{"", "_", false},
		{"a%b", "a%b", true},
	}

	for _, tt := range tests {
		t.Run(tt.value+"/"+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.expected, matchLike(tt.value, tt.pattern))
		})
	}
}
