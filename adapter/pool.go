package adapter

import (
	"os"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"go.uber.org/zap"

	"github.com/nickyhof/storeadapter/store"
)

// WorkerIdentity identifies the worker a pool partition belongs to.
// Statement handles are only valid in the worker that prepared them.
type WorkerIdentity func() int

// ProcessIdentity partitions by process id, so a forked worker starts
// with an empty partition.
func ProcessIdentity() int {
	return os.Getpid()
}

// PreparedStatement is a compiled statement held by the pool.
type PreparedStatement struct {
	SQL       string
	statement store.Statement
	columns   []string
	resolved  bool
}

// Statement returns the store handle.
func (p *PreparedStatement) Statement() store.Statement {
	return p.statement
}

// Columns resolves the column names once and caches them.
func (p *PreparedStatement) Columns() ([]string, error) {
	if !p.resolved {
		columns, err := p.statement.Columns()
		if err != nil {
			return nil, err
		}
		p.columns, p.resolved = columns, true
	}
	return p.columns, nil
}

// StatementPool caches prepared statements by SQL text, bounded by max
// entries per worker partition. Eviction is by insertion order.
type StatementPool struct {
	max        int
	worker     WorkerIdentity
	partitions map[int]*linkedhashmap.Map
	logger     *zap.Logger
}

func NewStatementPool(max int, worker WorkerIdentity, logger *zap.Logger) *StatementPool {
	if worker == nil {
		worker = ProcessIdentity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatementPool{
		max:        max,
		worker:     worker,
		partitions: make(map[int]*linkedhashmap.Map),
		logger:     logger,
	}
}

// Enabled reports whether the pool caches anything.
func (p *StatementPool) Enabled() bool {
	return p.max > 0
}

func (p *StatementPool) partition() *linkedhashmap.Map {
	id := p.worker()
	m, ok := p.partitions[id]
	if !ok {
		m = linkedhashmap.New()
		p.partitions[id] = m
	}
	return m
}

func (p *StatementPool) Get(sql string) (*PreparedStatement, bool) {
	v, ok := p.partition().Get(sql)
	if !ok {
		return nil, false
	}
	return v.(*PreparedStatement), true
}

// GetOrPrepare returns the cached statement for sql, or prepares, caches
// and returns a new one. A failed prepare leaves the pool untouched.
func (p *StatementPool) GetOrPrepare(sql string, prepare func(string) (store.Statement, error)) (*PreparedStatement, error) {
	if cached, ok := p.Get(sql); ok {
		return cached, nil
	}

	statement, err := prepare(sql)
	if err != nil {
		return nil, err
	}
	prepared := &PreparedStatement{SQL: sql, statement: statement}
	p.put(prepared)
	return prepared, nil
}

// put evicts the oldest entries, disposing them, until there is room.
func (p *StatementPool) put(prepared *PreparedStatement) {
	m := p.partition()
	for m.Size() > 0 && p.max <= m.Size() {
		it := m.Iterator()
		if !it.First() {
			break
		}
		oldest := it.Value().(*PreparedStatement)
		p.dispose(oldest)
		m.Remove(it.Key())
		p.logger.Debug("evicted statement", zap.String("sql", oldest.SQL))
	}
	m.Put(prepared.SQL, prepared)
}

// Clear disposes every statement of the current worker and empties its
// partition.
func (p *StatementPool) Clear() {
	m := p.partition()
	for _, v := range m.Values() {
		p.dispose(v.(*PreparedStatement))
	}
	m.Clear()
}

func (p *StatementPool) dispose(prepared *PreparedStatement) {
	dispose(prepared.statement, p.logger)
}

// Len is the size of the current worker's partition.
func (p *StatementPool) Len() int {
	return p.partition().Size()
}

// Keys lists the current worker's SQL texts, oldest first.
func (p *StatementPool) Keys() []string {
	keys := p.partition().Keys()
	sqls := make([]string, len(keys))
	for i, k := range keys {
		sqls[i] = k.(string)
	}
	return sqls
}

type disposable interface {
	Close() error
	Closed() bool
}

// dispose closes a handle that is still open. Failures are only logged.
func dispose(handle disposable, logger *zap.Logger) {
	if handle == nil || handle.Closed() {
		return
	}
	if err := handle.Close(); err != nil {
		logger.Debug("dispose failed", zap.Error(err))
	}
}
