// Package server serves a store over TCP, optionally with TLS, speaking the
// wire protocol.
//
// A connection opens a perspective, prepares statements and executes them
// with positional binds. Results are materialized on the server and sent
// whole. With authentication enabled the first request must be
//
//	{"op":"auth","token":"<jwt>"}
//
// and the token's name and email claims become the commit author of every
// write on that connection.
package server
