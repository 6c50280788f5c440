// Package core provides the types shared by the store packages.
//
// # Identity
//
// Identity identifies the author of transactions (Git commit author):
//
//	identity := core.Identity{
//	    Name:  "John Doe",
//	    Email: "john@example.com",
//	}
//
// # Column Types
//
// Every column type has a native tag, which is what DESCRIBE reports and
// what adapters map onto their logical types:
//   - StringType "string", TextType "text"
//   - IntType "integer", FloatType "float", BoolType "boolean"
//   - DateType "date", TimestampType "datetime", JsonType "json"
//   - UUIDType "uuid", BlobType "blob"
//   - PrimaryKeyType "pk": an integer key assigned on insert
//
// # Perspectives
//
// A Perspective names a scoped view of a database. Sessions are always bound
// to one:
//
//	p := core.Perspective{Name: "billing", Database: "shop", Tables: []string{"invoices"}}
//	p.Visible("invoices") // true
//	p.Visible("users")    // false
package core
