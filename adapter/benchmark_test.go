package adapter

import (
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/storeadapter/db"
	"github.com/nickyhof/storeadapter/store"
)

// setupBenchmarkAdapter connects to a memory store holding 1000 users.
func setupBenchmarkAdapter(b *testing.B, mutate ...func(*Config)) *Adapter {
	b.Helper()
	registry := store.NewRegistry()
	registry.Register("memory", db.NewDriver())

	config := DefaultConfig()
	config.URL = "memory://" + uuid.NewString()
	config.App = "bench"
	for _, m := range mutate {
		m(&config)
	}

	a, err := New(config, registry)
	require.NoError(b, err)
	require.NoError(b, a.Connect())
	b.Cleanup(a.Disconnect)

	_, err = a.Execute(`CREATE TABLE "users" ("id" INT PRIMARY KEY, "name" STRING, "age" INT, "city" STRING)`)
	require.NoError(b, err)

	require.NoError(b, a.BeginTransaction())
	for i := 1; i <= 1000; i++ {
		_, err := a.ExecMutate(`INSERT INTO "users" ("id", "name", "age", "city") VALUES (?, ?, ?, ?)`,
			Binds(i, "User"+strconv.Itoa(i), 20+i%50, "City"+strconv.Itoa(i%10)))
		require.NoError(b, err)
	}
	require.NoError(b, a.CommitTransaction())
	return a
}

func BenchmarkSelectAll(b *testing.B) {
	a := setupBenchmarkAdapter(b)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := a.SelectRows(`SELECT * FROM "users"`); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSelectPooled(b *testing.B) {
	a := setupBenchmarkAdapter(b)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := a.ExecQuery(`SELECT * FROM "users" WHERE "age" > ?`, Binds(40)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSelectUnpooled(b *testing.B) {
	a := setupBenchmarkAdapter(b, func(c *Config) { c.StatementLimit = 0 })
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := a.ExecQuery(`SELECT * FROM "users" WHERE "age" > ?`, Binds(40)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSelectUnprepared(b *testing.B) {
	a := setupBenchmarkAdapter(b, func(c *Config) { c.PreparedStatements = false })
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := a.ExecQuery(`SELECT * FROM "users" WHERE "age" > ?`, Binds(40)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkInsert(b *testing.B) {
	a := setupBenchmarkAdapter(b)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := a.ExecInsert(`INSERT INTO "users" ("name", "age") VALUES (?, ?)`, Binds("bench", i%90), nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkInterpolateBinds(b *testing.B) {
	binds := map[int]any{0: "it's", 1: 42, 2: 1.5, 3: nil}
	for i := 0; i < b.N; i++ {
		if _, err := InterpolateBinds(`SELECT * FROM "t" WHERE a = ? AND b = ? AND c = ? AND d = ?`, binds); err != nil {
			b.Fatal(err)
		}
	}
}
