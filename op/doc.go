// Package op provides typed table and database operations on top of ps.
//
// Records are stored as JSON objects mapping column names to text values
// (or null). TableOp converts between that form and typed Go values using
// the table schema:
//
//	tableOp, err := op.GetTable("shop", "users", persistence)
//	tableOp.Put(op.Record{"id": int64(1), "name": "alice"}, identity)
//	record, exists, err := tableOp.Get("1")
//	for record, err := range tableOp.Scan() {
//	    // ...
//	}
//
// Column types map onto Go types as follows: integer and pk to int64,
// float to float64, boolean to bool, datetime to time.Time, blob to []byte
// and the rest to string.
package op
