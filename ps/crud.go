package ps

import (
	"encoding/json"
	"fmt"
	"iter"
	"path"
	"sort"
	"strings"

	"github.com/nickyhof/storeadapter/core"
)

// metaDir holds store-internal documents; it is never listed as a database.
const metaDir = ".storeadapter"

func databasePath(name string) string {
	return name + ".database"
}

func tablePath(database, table string) string {
	return path.Join(database, table+".table")
}

func (persistence *Persistence) CreateDatabase(database core.Database, identity core.Identity) (Transaction, error) {
	dataBytes, err := json.Marshal(database)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to marshal database: %w", err)
	}
	return persistence.WriteFileDirect(databasePath(database.Name), dataBytes, identity, "Creating database "+database.Name)
}

func (persistence *Persistence) GetDatabase(name string) (*core.Database, error) {
	data, err := persistence.ReadFileDirect(databasePath(name))
	if err != nil {
		return nil, fmt.Errorf("database %s does not exist: %w", name, err)
	}

	var d core.Database
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal database: %w", err)
	}
	return &d, nil
}

// DropDatabase removes the database document together with every table in it.
func (persistence *Persistence) DropDatabase(name string, identity core.Identity) (Transaction, error) {
	return persistence.DeletePathDirect([]string{databasePath(name), name}, identity, "Dropping database "+name)
}

func (persistence *Persistence) CreateTable(table core.Table, identity core.Identity) (Transaction, error) {
	dataBytes, err := json.Marshal(table)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to marshal table: %w", err)
	}
	return persistence.WriteFileDirect(tablePath(table.Database, table.Name), dataBytes, identity, "Creating table "+table.Name)
}

func (persistence *Persistence) GetTable(database string, table string) (*core.Table, error) {
	data, err := persistence.ReadFileDirect(tablePath(database, table))
	if err != nil {
		return nil, fmt.Errorf("table %s.%s does not exist: %w", database, table, err)
	}

	var t core.Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal table: %w", err)
	}
	return &t, nil
}

func (persistence *Persistence) DropTable(database string, table string, identity core.Identity) (Transaction, error) {
	paths := []string{
		tablePath(database, table),
		path.Join(database, table),
	}
	return persistence.DeletePathDirect(paths, identity, "Dropping table "+table)
}

// SaveRecords writes all records of one table in a single commit.
func (persistence *Persistence) SaveRecords(database string, table string, records map[string][]byte, identity core.Identity) (Transaction, error) {
	if err := persistence.ensureInitialized(); err != nil {
		return Transaction{}, err
	}

	changes := make([]TreeChange, 0, len(records))
	for key, data := range records {
		blobHash, err := persistence.createBlob(data)
		if err != nil {
			return Transaction{}, fmt.Errorf("failed to create blob for %s: %w", key, err)
		}
		changes = append(changes, TreeChange{Path: path.Join(database, table, key), BlobHash: blobHash})
	}
	return persistence.applyChanges(changes, identity, "Saving record(s)")
}

// DeleteRecords removes the given keys of one table in a single commit.
func (persistence *Persistence) DeleteRecords(database string, table string, keys []string, identity core.Identity) (Transaction, error) {
	changes := make([]TreeChange, 0, len(keys))
	for _, key := range keys {
		changes = append(changes, TreeChange{Path: path.Join(database, table, key), IsDelete: true})
	}
	return persistence.applyChanges(changes, identity, "Deleting record(s)")
}

func (persistence *Persistence) GetRecord(database string, table string, key string) ([]byte, bool) {
	data, err := persistence.ReadFileDirect(path.Join(database, table, key))
	if err != nil {
		return nil, false
	}
	return data, true
}

// ListDatabases returns database names in sorted order.
func (persistence *Persistence) ListDatabases() []string {
	entries, err := persistence.ListEntriesDirect(".")
	if err != nil {
		return nil
	}

	// a database shows up both as its document and as its data directory
	databaseSet := make(map[string]bool)
	for _, entry := range entries {
		switch {
		case entry.IsDir && entry.Name != ".git" && entry.Name != metaDir:
			databaseSet[entry.Name] = true
		case !entry.IsDir && strings.HasSuffix(entry.Name, ".database"):
			databaseSet[strings.TrimSuffix(entry.Name, ".database")] = true
		}
	}

	databases := make([]string, 0, len(databaseSet))
	for db := range databaseSet {
		databases = append(databases, db)
	}
	sort.Strings(databases)
	return databases
}

// ListTables returns the table names of a database in sorted order.
func (persistence *Persistence) ListTables(database string) []string {
	entries, err := persistence.ListEntriesDirect(database)
	if err != nil {
		return nil
	}

	var tables []string
	for _, entry := range entries {
		if !entry.IsDir && strings.HasSuffix(entry.Name, ".table") {
			tables = append(tables, strings.TrimSuffix(entry.Name, ".table"))
		}
	}
	sort.Strings(tables)
	return tables
}

func (persistence *Persistence) ListRecordKeys(database string, table string) []string {
	entries, err := persistence.ListEntriesDirect(path.Join(database, table))
	if err != nil {
		return nil
	}

	var keys []string
	for _, entry := range entries {
		if !entry.IsDir {
			keys = append(keys, entry.Name)
		}
	}
	return keys
}

// Scan yields every record of a table, in tree order.
func (persistence *Persistence) Scan(database string, table string) iter.Seq2[string, []byte] {
	keys := persistence.ListRecordKeys(database, table)

	return func(yield func(key string, value []byte) bool) {
		for _, key := range keys {
			value, ok := persistence.GetRecord(database, table, key)
			if !ok {
				continue
			}
			if !yield(key, value) {
				return
			}
		}
	}
}
