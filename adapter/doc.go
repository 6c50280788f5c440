// Package adapter connects an ORM to a store through the store package
// interfaces.
//
// An Adapter owns one session and one perspective, the app's view of the
// store. Statements with binds are compiled once and kept in a bounded
// StatementPool partitioned per worker; statements without binds are
// compiled, executed and closed. Bind values pass through a TypeRegistry
// before execution.
//
// Basic usage:
//
//	registry := store.NewRegistry()
//	registry.Register("memory", db.NewDriver())
//
//	a, err := adapter.New(adapter.Config{
//		URL:                "memory://dev",
//		App:                "shop",
//		PreparedStatements: true,
//		StatementLimit:     adapter.DefaultStatementLimit,
//	}, registry)
//	if err != nil {
//		return err
//	}
//	if err := a.Connect(); err != nil {
//		return err
//	}
//	defer a.Disconnect()
//
//	id, err := a.ExecInsert(`INSERT INTO "items" ("name") VALUES (?)`, adapter.Binds("lamp"), nil)
//
// Errors are typed: ConfigurationError before connecting, ConnectionError
// for session failures, StatementError for prepare and bind failures and
// IllegalStateError for reading a last inserted id that is not there.
// Errors from the store itself are returned unchanged.
package adapter
