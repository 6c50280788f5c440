// Package store declares the handles a backing store exposes to the adapter:
// a Driver opens a Session, a Session is bound to a Perspective, a
// Perspective prepares Statements and a Statement executes into a Result.
//
// Every handle with a Close method must tolerate being closed twice; the
// second call returns nil.
//
// Drivers are looked up by URL scheme through a Registry:
//
//	registry := store.NewRegistry()
//	registry.Register("memory", db.NewDriver())
//	session, err := registry.Open("memory://scratch", store.Credentials{})
package store
