// Package db is the local store: a SQL engine over the ps persistence
// layer and the memory:// and file:// driver that exposes it through the
// store interfaces.
//
// # Engine Usage
//
//	engine := db.NewEngine(persistence, identity, db.WithDatabase("shop"))
//	result, err := engine.Execute("SELECT * FROM users WHERE id = ?", map[int]any{0: int64(1)})
//
// # Result Types
//
//   - QueryResult: SELECT, SHOW and DESCRIBE
//   - CommitResult: INSERT, UPDATE, DELETE, DDL and transaction statements
//
// CommitResult.AffectedCount counts the records the statement wrote or
// deleted; after INSERT, LastInsertedID holds the key of the last row.
//
// # Keys
//
// Every table has one primary key. An INSERT that leaves it out gets the
// next integer for PK and INT keys and a random UUID for UUID keys.
//
// # Transactions
//
// BEGIN collects row writes of subsequent statements into one commit made
// by COMMIT. Reads see committed data only. DDL commits immediately.
//
// # Driver
//
//	driver := db.NewDriver()
//	session, _ := driver.Open("memory://scratch", store.Credentials{})
//	view, _ := session.Perspective("shop")
//	stmt, _ := view.Prepare(`SELECT "name" FROM "users" WHERE "id" = ?`)
//	result, _ := stmt.Execute(map[int]any{0: 1})
package db
