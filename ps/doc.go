// Package ps is the persistence layer behind the store.
//
// Storage is a Git repository driven through go-git's plumbing API. Every
// write becomes one commit whose tree holds databases, tables and records:
//
//	<db>.database
//	<db>/<table>.table
//	<db>/<table>/<key>
//	.storeadapter/perspectives/<name>.json
//
// # Memory Persistence
//
//	persistence, err := ps.NewMemoryPersistence()
//
// # File Persistence
//
// A directory without a repository is initialized, or cloned when clone
// options are given:
//
//	persistence, err := ps.NewFilePersistence("/path/to/data", &ps.CloneOptions{
//	    URL:  "https://example.com/data.git",
//	    Auth: ps.TokenAuth(token),
//	})
//
// # Transaction Batching
//
//	txn, _ := persistence.BeginTransaction()
//	txn.AddWrite("db", "table", "key1", data1)
//	txn.AddDelete("db", "table", "key2")
//	result, _ := txn.Commit(identity)
//
// Persistence does not lock internally. Callers hold Lock for writes and
// RLock for reads.
package ps
