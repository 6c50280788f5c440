package db

import (
	"github.com/nickyhof/storeadapter/ps"
)

type ResultType int

const (
	QueryResultType ResultType = iota
	CommitResultType
)

// Result is what the engine produces for one statement.
type Result interface {
	Type() ResultType
	Columns() []string
	Rows() [][]any
	AffectedCount() int64
}

type QueryResult struct {
	Transaction      ps.Transaction
	ColumnNames      []string
	Data             [][]any
	RecordsRead      int
	ExecutionTimeSec float64
	ExecutionOps     int
}

type CommitResult struct {
	Transaction      ps.Transaction
	DatabasesCreated int
	DatabasesDeleted int
	TablesCreated    int
	TablesDeleted    int
	RecordsWritten   int
	RecordsDeleted   int
	// LastInsertedID is the key of the last row an INSERT wrote, nil otherwise.
	LastInsertedID   any
	ExecutionTimeSec float64
	ExecutionOps     int
}

func (result QueryResult) Type() ResultType {
	return QueryResultType
}

func (result QueryResult) Columns() []string {
	return result.ColumnNames
}

func (result QueryResult) Rows() [][]any {
	return result.Data
}

func (result QueryResult) AffectedCount() int64 {
	return 0
}

func (result CommitResult) Type() ResultType {
	return CommitResultType
}

func (result CommitResult) Columns() []string {
	return nil
}

func (result CommitResult) Rows() [][]any {
	return nil
}

// AffectedCount counts the records written or deleted by the statement.
func (result CommitResult) AffectedCount() int64 {
	return int64(result.RecordsWritten + result.RecordsDeleted)
}
