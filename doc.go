// Package storeadapter connects ORMs to a git-backed SQL store.
//
// Every write to the store is a git commit, so the data carries its own
// history. Applications reach the store through an adapter.Adapter, which
// manages the session, caches prepared statements and coerces bind values.
//
// # Quick Start
//
// Connect to an in-memory store:
//
//	a, err := storeadapter.Open(adapter.Config{
//		URL:                "memory://dev",
//		App:                "shop",
//		PreparedStatements: true,
//		StatementLimit:     adapter.DefaultStatementLimit,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer a.Disconnect()
//
//	a.Execute(`CREATE TABLE "items" ("id" PK, "name" STRING)`)
//	id, _ := a.ExecInsert(`INSERT INTO "items" ("name") VALUES (?)`, adapter.Binds("lamp"), nil)
//	rows, _ := a.SelectRows(`SELECT * FROM "items"`)
//
// # Store URLs
//
//   - memory://name keeps the store in process, shared by name
//   - file:///path opens a repository on disk; ?remote=url clones it and
//     &push=true pushes on close
//   - tcp://host:port and tls://host:port reach a store served by
//     cmd/server
//
// # Packages
//
//   - adapter: the connection adapter used by ORMs
//   - store: the driver interfaces every store implements
//   - db: the local engine and the memory and file driver
//   - client, server, wire: the network driver, its server and protocol
//   - sql, core, op, ps: parser, schema types, table operations and git
//     persistence
package storeadapter
