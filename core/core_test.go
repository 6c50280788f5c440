package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseColumnType(t *testing.T) {
	tests := []struct {
		name     string
		expected ColumnType
		tag      string
	}{
		{"varchar", StringType, "string"},
		{"BIGINT", IntType, "integer"},
		{"double", FloatType, "float"},
		{"BOOL", BoolType, "boolean"},
		{"text", TextType, "text"},
		{"DATE", DateType, "date"},
		{"datetime", TimestampType, "datetime"},
		{"JSON", JsonType, "json"},
		{"uuid", UUIDType, "uuid"},
		{"BYTES", BlobType, "blob"},
		{"serial", PrimaryKeyType, "pk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			columnType, ok := ParseColumnType(tt.name)
			assert.True(t, ok)
			assert.Equal(t, tt.expected, columnType)
			assert.Equal(t, tt.tag, columnType.Tag())
		})
	}

	_, ok := ParseColumnType("WIDGET")
	assert.False(t, ok)
	assert.Equal(t, "string", ColumnType(99).Tag())
	assert.Equal(t, "DATETIME", TimestampType.String())
	assert.True(t, PrimaryKeyType.IsInteger())
	assert.False(t, UUIDType.IsInteger())
}

func TestTablePrimaryKey(t *testing.T) {
	explicit := Table{Name: "t", Columns: []Column{
		{Name: "code", Type: StringType, PrimaryKey: true},
		{Name: "n", Type: PrimaryKeyType},
	}}
	pk, ok := explicit.PrimaryKey()
	assert.True(t, ok)
	assert.Equal(t, "code", pk.Name)

	implicit := Table{Name: "t", Columns: []Column{{Name: "name"}, {Name: "id", Type: PrimaryKeyType}}}
	pk, ok = implicit.PrimaryKey()
	assert.True(t, ok)
	assert.Equal(t, "id", pk.Name)

	_, ok = Table{Columns: []Column{{Name: "a"}}}.PrimaryKey()
	assert.False(t, ok)

	col, ok := implicit.Column("name")
	assert.True(t, ok)
	assert.Equal(t, StringType, col.Type)
	_, ok = implicit.Column("missing")
	assert.False(t, ok)
}

func TestPerspectiveVisible(t *testing.T) {
	all := Perspective{Name: "app", Database: "app"}
	assert.True(t, all.Visible("anything"))

	scoped := Perspective{Name: "storefront", Database: "shop", Tables: []string{"items"}}
	assert.True(t, scoped.Visible("items"))
	assert.False(t, scoped.Visible("audit"))
}

func TestIdentityString(t *testing.T) {
	assert.Equal(t, "Alice <alice@example.com>", Identity{Name: "Alice", Email: "alice@example.com"}.String())
}
