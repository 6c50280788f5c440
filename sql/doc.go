// Package sql provides SQL lexing and parsing for the store dialect.
//
// The dialect is what an ORM emits for a single-table store: quoted
// identifiers, positional "?" bind parameters and optional database
// qualification. Table qualifiers on column references are accepted and
// dropped.
//
// # Lexer Usage
//
//	lexer := sql.NewLexer(`SELECT * FROM "users" WHERE "users"."id" = ?`)
//	for {
//	    token := lexer.NextToken()
//	    if token.Type == sql.EOF {
//	        break
//	    }
//	    fmt.Println(token)
//	}
//
// # Parser Usage
//
//	statement, params, err := sql.Parse(`DELETE FROM "users" WHERE "id" = ?`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// params == 1
//
// # Supported Statements
//
//   - SelectStatement (columns, *, COUNT(*), DISTINCT, WHERE, ORDER BY, LIMIT, OFFSET)
//   - InsertStatement (one or more VALUES rows)
//   - UpdateStatement, DeleteStatement
//   - CreateTableStatement, DropTableStatement
//   - CreateDatabaseStatement, DropDatabaseStatement
//   - BeginStatement, CommitStatement, RollbackStatement
//   - DescribeStatement
//   - ShowDatabasesStatement, ShowTablesStatement
package sql
