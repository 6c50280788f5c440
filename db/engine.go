package db

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nickyhof/storeadapter/core"
	"github.com/nickyhof/storeadapter/op"
	"github.com/nickyhof/storeadapter/ps"
	"github.com/nickyhof/storeadapter/sql"
)

var (
	ErrTableNotFound         = errors.New("table not found")
	ErrTableExists           = errors.New("table already exists")
	ErrDatabaseExists        = errors.New("database already exists")
	ErrNoDatabase            = errors.New("no database selected")
	ErrOutsidePerspective    = errors.New("outside of perspective")
	ErrReadOnly              = errors.New("perspective is read-only")
	ErrDuplicateKey          = errors.New("duplicate primary key")
	ErrMissingBind           = errors.New("missing bind value")
	ErrUnfilteredDelete      = errors.New("DELETE requires a WHERE clause")
	ErrTransactionInProgress = errors.New("transaction already in progress")
)

// QueryContext is the per-session state statements execute in.
type QueryContext struct {
	Identity core.Identity
	// Database resolves unqualified table names.
	Database string
	// Perspective restricts what the session sees; nil means unrestricted.
	Perspective *core.Perspective

	txn     *ps.TransactionBuilder
	pending map[string]map[string]bool
}

type Engine struct {
	*ps.Persistence
	QueryContext
	logger *zap.Logger
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(engine *Engine) {
		engine.logger = logger
	}
}

// WithDatabase sets the database for unqualified table names.
func WithDatabase(name string) Option {
	return func(engine *Engine) {
		engine.Database = name
	}
}

// WithPerspective scopes the engine to a perspective and its database.
func WithPerspective(perspective core.Perspective) Option {
	return func(engine *Engine) {
		engine.Perspective = &perspective
		engine.Database = perspective.Database
	}
}

func NewEngine(persistence *ps.Persistence, identity core.Identity, opts ...Option) *Engine {
	engine := &Engine{
		Persistence:  persistence,
		QueryContext: QueryContext{Identity: identity},
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Execute parses and runs one statement.
func (engine *Engine) Execute(query string, binds map[int]any) (Result, error) {
	statement, _, err := sql.Parse(query)
	if err != nil {
		return nil, err
	}
	return engine.ExecuteStatement(statement, binds)
}

// ExecuteStatement runs a parsed statement. Reads share the persistence
// lock; everything else holds it exclusively.
func (engine *Engine) ExecuteStatement(statement sql.Statement, binds map[int]any) (Result, error) {
	if isRead(statement) {
		engine.Persistence.RLock()
		defer engine.Persistence.RUnlock()
	} else {
		engine.Persistence.Lock()
		defer engine.Persistence.Unlock()
	}

	startTime := time.Now()
	result, err := engine.dispatch(statement, binds)
	if err != nil {
		engine.logger.Debug("statement failed", zap.Int("type", int(statement.Type())), zap.Error(err))
		return nil, err
	}

	engine.logger.Debug("statement executed",
		zap.Int("type", int(statement.Type())),
		zap.Int64("affected", result.AffectedCount()),
		zap.Duration("elapsed", time.Since(startTime)))
	return result, nil
}

func isRead(statement sql.Statement) bool {
	switch statement.Type() {
	case sql.SelectStatementType, sql.DescribeStatementType, sql.ShowDatabasesStatementType, sql.ShowTablesStatementType:
		return true
	}
	return false
}

func (engine *Engine) dispatch(statement sql.Statement, binds map[int]any) (Result, error) {
	switch statement.Type() {
	case sql.SelectStatementType:
		return engine.executeSelectStatement(statement.(sql.SelectStatement), binds)
	case sql.InsertStatementType:
		return engine.executeInsertStatement(statement.(sql.InsertStatement), binds)
	case sql.UpdateStatementType:
		return engine.executeUpdateStatement(statement.(sql.UpdateStatement), binds)
	case sql.DeleteStatementType:
		return engine.executeDeleteStatement(statement.(sql.DeleteStatement), binds)
	case sql.CreateTableStatementType:
		return engine.executeCreateTableStatement(statement.(sql.CreateTableStatement))
	case sql.DropTableStatementType:
		return engine.executeDropTableStatement(statement.(sql.DropTableStatement))
	case sql.CreateDatabaseStatementType:
		return engine.executeCreateDatabaseStatement(statement.(sql.CreateDatabaseStatement))
	case sql.DropDatabaseStatementType:
		return engine.executeDropDatabaseStatement(statement.(sql.DropDatabaseStatement))
	case sql.BeginStatementType:
		return engine.executeBeginStatement()
	case sql.CommitStatementType:
		return engine.executeCommitStatement()
	case sql.RollbackStatementType:
		return engine.executeRollbackStatement()
	case sql.DescribeStatementType:
		return engine.executeDescribeStatement(statement.(sql.DescribeStatement))
	case sql.ShowDatabasesStatementType:
		return engine.executeShowDatabasesStatement()
	case sql.ShowTablesStatementType:
		return engine.executeShowTablesStatement(statement.(sql.ShowTablesStatement))
	default:
		return nil, fmt.Errorf("unsupported statement type: %d", statement.Type())
	}
}

// Columns reports the column names a statement will return, without
// executing it. Statements that return no rows report none.
func (engine *Engine) Columns(statement sql.Statement) ([]string, error) {
	switch s := statement.(type) {
	case sql.SelectStatement:
		if s.CountAll {
			if len(s.Items) > 0 {
				return []string{s.Items[0].Name()}, nil
			}
			return []string{"COUNT(*)"}, nil
		}
		if len(s.Items) > 0 {
			names := make([]string, len(s.Items))
			for i, item := range s.Items {
				names[i] = item.Name()
			}
			return names, nil
		}

		engine.Persistence.RLock()
		defer engine.Persistence.RUnlock()
		tableOp, err := engine.table(s.Database, s.Table)
		if err != nil {
			return nil, err
		}
		return columnNames(tableOp.Table), nil
	case sql.ShowTablesStatement, sql.ShowDatabasesStatement:
		return []string{"name"}, nil
	case sql.DescribeStatement:
		return describeColumns, nil
	}
	return nil, nil
}

var describeColumns = []string{"name", "type", "primary_key"}

func columnNames(table core.Table) []string {
	names := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		names[i] = col.Name
	}
	return names
}

// database resolves the database a statement addresses.
func (engine *Engine) database(name string) (string, error) {
	if name == "" {
		name = engine.Database
	}
	if name == "" {
		return "", ErrNoDatabase
	}
	if engine.Perspective != nil && name != engine.Perspective.Database {
		return "", fmt.Errorf("database %s: %w %s", name, ErrOutsidePerspective, engine.Perspective.Name)
	}
	return name, nil
}

func (engine *Engine) visible(table string) error {
	if engine.Perspective != nil && !engine.Perspective.Visible(table) {
		return fmt.Errorf("table %s: %w %s", table, ErrOutsidePerspective, engine.Perspective.Name)
	}
	return nil
}

func (engine *Engine) writable() error {
	if engine.Perspective != nil && engine.Perspective.ReadOnly {
		return fmt.Errorf("%s: %w", engine.Perspective.Name, ErrReadOnly)
	}
	return nil
}

func (engine *Engine) table(database, table string) (*op.TableOp, error) {
	database, err := engine.database(database)
	if err != nil {
		return nil, err
	}
	if err := engine.visible(table); err != nil {
		return nil, err
	}

	tableOp, err := op.GetTable(database, table, engine.Persistence)
	if errors.Is(err, ps.ErrNotFound) {
		return nil, fmt.Errorf("%s.%s: %w", database, table, ErrTableNotFound)
	}
	return tableOp, err
}

func (engine *Engine) executeCreateTableStatement(statement sql.CreateTableStatement) (CommitResult, error) {
	startTime := time.Now()

	if err := engine.writable(); err != nil {
		return CommitResult{}, err
	}
	database, err := engine.database(statement.Database)
	if err != nil {
		return CommitResult{}, err
	}
	if err := engine.visible(statement.Table); err != nil {
		return CommitResult{}, err
	}

	if _, err := engine.Persistence.GetTable(database, statement.Table); err == nil {
		if statement.IfNotExists {
			return CommitResult{Transaction: engine.Persistence.LatestTransaction()}, nil
		}
		return CommitResult{}, fmt.Errorf("%s.%s: %w", database, statement.Table, ErrTableExists)
	}

	// the database is created with its first table
	if _, err := op.EnsureDatabase(database, engine.Persistence, engine.Identity); err != nil {
		return CommitResult{}, err
	}

	txn, _, err := op.CreateTable(core.Table{
		Database: database,
		Name:     statement.Table,
		Columns:  statement.Columns,
	}, engine.Persistence, engine.Identity)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      *txn,
		TablesCreated:    1,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     1,
	}, nil
}

func (engine *Engine) executeDropTableStatement(statement sql.DropTableStatement) (CommitResult, error) {
	startTime := time.Now()

	if err := engine.writable(); err != nil {
		return CommitResult{}, err
	}

	tableOp, err := engine.table(statement.Database, statement.Table)
	if err != nil {
		if statement.IfExists && errors.Is(err, ErrTableNotFound) {
			return CommitResult{Transaction: engine.Persistence.LatestTransaction()}, nil
		}
		return CommitResult{}, err
	}

	txn, err := tableOp.DropTable(engine.Identity)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      txn,
		TablesDeleted:    1,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     2,
	}, nil
}

// database statements are only available to unrestricted sessions
func (engine *Engine) unrestricted(what string) error {
	if engine.Perspective != nil {
		return fmt.Errorf("%s: %w %s", what, ErrOutsidePerspective, engine.Perspective.Name)
	}
	return nil
}

func (engine *Engine) executeCreateDatabaseStatement(statement sql.CreateDatabaseStatement) (CommitResult, error) {
	startTime := time.Now()

	if err := engine.unrestricted("CREATE DATABASE"); err != nil {
		return CommitResult{}, err
	}

	if _, err := op.GetDatabase(statement.Database, engine.Persistence); err == nil {
		if statement.IfNotExists {
			return CommitResult{Transaction: engine.Persistence.LatestTransaction()}, nil
		}
		return CommitResult{}, fmt.Errorf("%s: %w", statement.Database, ErrDatabaseExists)
	}

	txn, _, err := op.CreateDatabase(core.Database{Name: statement.Database}, engine.Persistence, engine.Identity)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      *txn,
		DatabasesCreated: 1,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     1,
	}, nil
}

func (engine *Engine) executeDropDatabaseStatement(statement sql.DropDatabaseStatement) (CommitResult, error) {
	startTime := time.Now()

	if err := engine.unrestricted("DROP DATABASE"); err != nil {
		return CommitResult{}, err
	}

	databaseOp, err := op.GetDatabase(statement.Database, engine.Persistence)
	if err != nil {
		if statement.IfExists && errors.Is(err, ps.ErrNotFound) {
			return CommitResult{Transaction: engine.Persistence.LatestTransaction()}, nil
		}
		return CommitResult{}, err
	}

	txn, err := databaseOp.DropDatabase(engine.Identity)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      txn,
		DatabasesDeleted: 1,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     2,
	}, nil
}

func (engine *Engine) executeShowDatabasesStatement() (QueryResult, error) {
	startTime := time.Now()

	databases := engine.Persistence.ListDatabases()
	if engine.Perspective != nil {
		databases = []string{engine.Perspective.Database}
	}

	data := make([][]any, len(databases))
	for i, db := range databases {
		data[i] = []any{db}
	}

	return QueryResult{
		Transaction:      engine.Persistence.LatestTransaction(),
		ColumnNames:      []string{"name"},
		Data:             data,
		RecordsRead:      len(data),
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     len(data),
	}, nil
}

// executeShowTablesStatement lists the tables visible through the
// perspective. A database that does not exist yet has no tables.
func (engine *Engine) executeShowTablesStatement(statement sql.ShowTablesStatement) (QueryResult, error) {
	startTime := time.Now()

	database, err := engine.database(statement.Database)
	if err != nil {
		return QueryResult{}, err
	}

	var data [][]any
	for _, table := range engine.Persistence.ListTables(database) {
		if engine.visible(table) == nil {
			data = append(data, []any{table})
		}
	}

	return QueryResult{
		Transaction:      engine.Persistence.LatestTransaction(),
		ColumnNames:      []string{"name"},
		Data:             data,
		RecordsRead:      len(data),
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     len(data),
	}, nil
}

// executeDescribeStatement reports name, native type tag and key flag per column.
func (engine *Engine) executeDescribeStatement(statement sql.DescribeStatement) (QueryResult, error) {
	startTime := time.Now()

	tableOp, err := engine.table(statement.Database, statement.Table)
	if err != nil {
		return QueryResult{}, err
	}

	pk, _ := tableOp.Table.PrimaryKey()

	data := make([][]any, 0, len(tableOp.Table.Columns))
	for _, col := range tableOp.Table.Columns {
		pkStr := "NO"
		if col.Name == pk.Name {
			pkStr = "YES"
		}
		data = append(data, []any{col.Name, col.Type.Tag(), pkStr})
	}

	return QueryResult{
		Transaction:      engine.Persistence.LatestTransaction(),
		ColumnNames:      describeColumns,
		Data:             data,
		RecordsRead:      len(data),
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     1,
	}, nil
}

// executeBeginStatement starts collecting row writes into one batch.
// Reads keep seeing committed data until COMMIT; DDL is not batched.
func (engine *Engine) executeBeginStatement() (CommitResult, error) {
	if engine.txn != nil {
		return CommitResult{}, ErrTransactionInProgress
	}

	txn, err := engine.Persistence.BeginTransaction()
	if err != nil {
		return CommitResult{}, err
	}
	engine.txn = txn
	engine.pending = make(map[string]map[string]bool)

	return CommitResult{ExecutionOps: 1}, nil
}

// executeCommitStatement applies the open batch. Without one it is a no-op.
func (engine *Engine) executeCommitStatement() (CommitResult, error) {
	startTime := time.Now()

	if engine.txn == nil {
		return CommitResult{Transaction: engine.Persistence.LatestTransaction()}, nil
	}

	txn := engine.txn
	ops := txn.OperationCount()
	engine.txn, engine.pending = nil, nil

	committed, err := txn.Commit(engine.Identity)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      committed,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     ops,
	}, nil
}

func (engine *Engine) executeRollbackStatement() (CommitResult, error) {
	if engine.txn != nil {
		engine.txn.Rollback()
		engine.txn, engine.pending = nil, nil
	}
	return CommitResult{ExecutionOps: 1}, nil
}

// InTransaction reports whether BEGIN was issued without COMMIT/ROLLBACK.
func (engine *Engine) InTransaction() bool {
	return engine.txn != nil
}
