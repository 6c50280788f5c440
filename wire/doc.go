// Package wire is the JSON-lines protocol spoken between the store server
// and its clients. Every message is one JSON object followed by a newline.
//
// # Requests
//
//	{"op":"auth","token":"<jwt>"}
//	{"op":"open","perspective":"shop"}
//	{"op":"prepare","sql":"SELECT * FROM \"items\" WHERE \"id\" = ?"}
//	{"op":"execute","statement":1,"binds":{"0":{"k":"int","i":7}}}
//	{"op":"close","statement":1}
//	{"op":"query","sql":"SHOW TABLES"}
//	{"op":"ping"}
//	{"op":"quit"}
//
// # Values
//
// Bind and row values travel as tagged objects so that integers, blobs and
// timestamps survive the round trip:
//
//	{"k":"null"} {"k":"int","i":1} {"k":"float","f":1.5} {"k":"bool","b":true}
//	{"k":"string","s":"x"} {"k":"time","s":"2024-01-02T03:04:05Z"} {"k":"bytes","x":"AAE="}
package wire
