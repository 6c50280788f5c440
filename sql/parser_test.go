package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/storeadapter/core"
)

func operandPtr(o Operand) *Operand { return &o }

func TestParser(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected Statement
		params   int
	}{
		{
			"select wildcard",
			"SELECT * FROM db.test",
			SelectStatement{Database: "db", Table: "test"},
			0,
		},
		{
			"select unqualified table",
			"SELECT col_1, col_2 FROM test",
			SelectStatement{
				Table: "test",
				Items: []SelectItem{{Expr: Column("col_1")}, {Expr: Column("col_2")}},
			},
			0,
		},
		{
			"select quoted identifiers with placeholders",
			`SELECT "users".* FROM "users" WHERE "users"."id" = ? LIMIT ?`,
			SelectStatement{
				Table: "users",
				Where: WhereClause{Conditions: []WhereCondition{
					{Left: Column("id"), Operator: EqualsOperator, Right: Param(0)},
				}},
				Limit: operandPtr(Param(1)),
			},
			2,
		},
		{
			"select with where string and int",
			"SELECT col_1 FROM db.test WHERE col_1 = 'green' AND col_2 = 5",
			SelectStatement{
				Database: "db",
				Table:    "test",
				Items:    []SelectItem{{Expr: Column("col_1")}},
				Where: WhereClause{
					Conditions: []WhereCondition{
						{Left: Column("col_1"), Operator: EqualsOperator, Right: Literal("green")},
						{Left: Column("col_2"), Operator: EqualsOperator, Right: Literal("5")},
					},
					LogicalOps: []LogicalOperator{LogicalAnd},
				},
			},
			0,
		},
		{
			"select exists probe",
			`SELECT 1 AS one FROM "users" WHERE "name" = ? LIMIT 1`,
			SelectStatement{
				Table: "users",
				Items: []SelectItem{{Expr: Literal("1"), Alias: "one"}},
				Where: WhereClause{Conditions: []WhereCondition{
					{Left: Column("name"), Operator: EqualsOperator, Right: Param(0)},
				}},
				Limit: operandPtr(Literal("1")),
			},
			1,
		},
		{
			"select count order offset",
			"SELECT COUNT(*) FROM t WHERE a IS NOT NULL ORDER BY a DESC, b OFFSET 3",
			SelectStatement{
				Table:    "t",
				CountAll: true,
				Where: WhereClause{Conditions: []WhereCondition{
					{Left: Column("a"), Operator: IsNotNullOperator},
				}},
				OrderBy: []OrderByClause{{Column: "a", Descending: true}, {Column: "b"}},
				Offset:  operandPtr(Literal("3")),
			},
			0,
		},
		{
			"select not in with binds",
			"SELECT * FROM t WHERE id NOT IN (?, ?, 7) OR name LIKE 'a%'",
			SelectStatement{
				Table: "t",
				Where: WhereClause{
					Conditions: []WhereCondition{
						{Left: Column("id"), Operator: InOperator, InValues: []Operand{Param(0), Param(1), Literal("7")}, Negated: true},
						{Left: Column("name"), Operator: LikeOperator, Right: Literal("a%")},
					},
					LogicalOps: []LogicalOperator{LogicalOr},
				},
			},
			2,
		},
		{
			"create table",
			"CREATE TABLE db.test (id PK, name VARCHAR(255) NOT NULL, token UUID, payload BLOB)",
			CreateTableStatement{
				Database: "db",
				Table:    "test",
				Columns: []core.Column{
					{Name: "id", Type: core.PrimaryKeyType},
					{Name: "name", Type: core.StringType},
					{Name: "token", Type: core.UUIDType},
					{Name: "payload", Type: core.BlobType},
				},
			},
			0,
		},
		{
			"create table with primary key",
			`CREATE TABLE IF NOT EXISTS "test" ("col_1" STRING PRIMARY KEY, col_2 INT)`,
			CreateTableStatement{
				Table:       "test",
				IfNotExists: true,
				Columns: []core.Column{
					{Name: "col_1", Type: core.StringType, PrimaryKey: true},
					{Name: "col_2", Type: core.IntType},
				},
			},
			0,
		},
		{
			"drop table",
			"DROP TABLE IF EXISTS db.test",
			DropTableStatement{Database: "db", Table: "test", IfExists: true},
			0,
		},
		{
			"insert",
			`INSERT INTO "test" ("col_1", "col_2") VALUES (?, 'it''s'), (NULL, ?)`,
			InsertStatement{
				Table:   "test",
				Columns: []string{"col_1", "col_2"},
				Rows: [][]Operand{
					{Param(0), Literal("it's")},
					{{Kind: NullOperand}, Param(1)},
				},
			},
			2,
		},
		{
			"update",
			`UPDATE "test" SET "col_1" = ?, col_3 = TRUE WHERE "col_2" = ?`,
			UpdateStatement{
				Table: "test",
				Updates: []SetClause{
					{Column: "col_1", Value: Param(0)},
					{Column: "col_3", Value: Literal("true")},
				},
				Where: WhereClause{Conditions: []WhereCondition{
					{Left: Column("col_2"), Operator: EqualsOperator, Right: Param(1)},
				}},
			},
			2,
		},
		{
			"delete with tautology",
			"DELETE FROM t WHERE 1=1",
			DeleteStatement{
				Table: "t",
				Where: WhereClause{Conditions: []WhereCondition{
					{Left: Literal("1"), Operator: EqualsOperator, Right: Literal("1")},
				}},
			},
			0,
		},
		{
			"delete without where",
			"DELETE FROM db.t;",
			DeleteStatement{Database: "db", Table: "t"},
			0,
		},
		{
			"create database",
			"CREATE DATABASE test",
			CreateDatabaseStatement{Database: "test"},
			0,
		},
		{
			"drop database",
			"DROP DATABASE test",
			DropDatabaseStatement{Database: "test"},
			0,
		},
		{"show databases", "SHOW DATABASES", ShowDatabasesStatement{}, 0},
		{"show tables", "SHOW TABLES", ShowTablesStatement{}, 0},
		{"show tables in database", "SHOW TABLES IN test", ShowTablesStatement{Database: "test"}, 0},
		{"describe", `DESCRIBE "my ""odd"" table"`, DescribeStatement{Table: `my "odd" table`}, 0},
		{"begin", "BEGIN TRANSACTION", BeginStatement{}, 0},
		{"commit", "COMMIT", CommitStatement{}, 0},
		{"rollback", "ROLLBACK", RollbackStatement{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statement, params, err := Parse(tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, statement)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"empty", "   "},
		{"unknown statement", "MERGE INTO t"},
		{"missing from", "SELECT a b"},
		{"trailing tokens", "SELECT * FROM t garbage"},
		{"unterminated string", "SELECT * FROM t WHERE a = 'oops"},
		{"unterminated identifier", `SELECT * FROM "t`},
		{"value count mismatch", "INSERT INTO t (a, b) VALUES (1)"},
		{"column as insert value", "INSERT INTO t (a) VALUES (b)"},
		{"unknown column type", "CREATE TABLE t (a WIDGET)"},
		{"composite key", "CREATE TABLE t (a INT PRIMARY KEY, b INT PRIMARY KEY)"},
		{"bad limit", "SELECT * FROM t LIMIT 'x'"},
		{"missing operator", "SELECT * FROM t WHERE a 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(tt.sql)
			assert.Error(t, err)
		})
	}
}

func TestParseEmptyStatement(t *testing.T) {
	_, _, err := Parse(";")
	assert.ErrorIs(t, err, ErrEmptyStatement)
}

func TestLexerTokens(t *testing.T) {
	tokens := tokenize(`select "a""b", 'it''s', -4.5 <> ? ;`)

	expected := []Token{
		{Type: Select, Value: "select"},
		{Type: Identifier, Value: `a"b`, Quoted: true},
		{Type: Comma, Value: ","},
		{Type: String, Value: "it's"},
		{Type: Comma, Value: ","},
		{Type: Float, Value: "-4.5"},
		{Type: NotEquals, Value: "<>"},
		{Type: Placeholder, Value: "?"},
		{Type: Semicolon, Value: ";"},
		{Type: EOF},
	}
	assert.Equal(t, expected, tokens)
}

func TestQuotedIdentifierIsNotKeyword(t *testing.T) {
	statement, _, err := Parse(`SELECT "select" FROM "from"`)
	require.NoError(t, err)

	selectStatement := statement.(SelectStatement)
	assert.Equal(t, "from", selectStatement.Table)
	assert.Equal(t, "select", selectStatement.Items[0].Name())
}
