package op

import (
	"errors"

	"github.com/nickyhof/storeadapter/core"
	"github.com/nickyhof/storeadapter/ps"
)

type DatabaseOp struct {
	Database    core.Database
	Persistence *ps.Persistence
}

func CreateDatabase(database core.Database, persistence *ps.Persistence, identity core.Identity) (*ps.Transaction, *DatabaseOp, error) {
	txn, err := persistence.CreateDatabase(database, identity)
	if err != nil {
		return nil, nil, err
	}

	return &txn, &DatabaseOp{
		Database:    database,
		Persistence: persistence,
	}, nil
}

func GetDatabase(name string, persistence *ps.Persistence) (*DatabaseOp, error) {
	d, err := persistence.GetDatabase(name)
	if err != nil {
		return nil, err
	}
	return &DatabaseOp{
		Database:    *d,
		Persistence: persistence,
	}, nil
}

// EnsureDatabase returns the named database, creating it on first use.
func EnsureDatabase(name string, persistence *ps.Persistence, identity core.Identity) (*DatabaseOp, error) {
	dbOp, err := GetDatabase(name, persistence)
	if err == nil {
		return dbOp, nil
	}
	if !errors.Is(err, ps.ErrNotFound) {
		return nil, err
	}

	_, dbOp, err = CreateDatabase(core.Database{Name: name}, persistence, identity)
	return dbOp, err
}

func (op *DatabaseOp) DropDatabase(identity core.Identity) (ps.Transaction, error) {
	return op.Persistence.DropDatabase(op.Database.Name, identity)
}

func (op *DatabaseOp) TableNames() []string {
	return op.Persistence.ListTables(op.Database.Name)
}
