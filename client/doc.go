// Package client is the store driver for remote servers:
//
//	tcp://host:port
//	tls://host:port                 verified against the system roots
//	tls://host:port?insecure=true   certificate not verified
//
// A session is one connection. The credential token is sent with AUTH
// before anything else; statements are prepared on the server and results
// arrive fully materialized.
package client
