package adapter

import (
	"errors"
	"strings"

	"github.com/nickyhof/storeadapter/store"
)

var errBrokenSQL = errors.New("syntax error")

// fakeStore counts prepares and disposals so tests can check that every
// handle is released exactly once.
type fakeStore struct {
	prepared   int
	resolved   int
	statements []*fakeStatement
	results    []*fakeResult
	sessions   []*fakeSession
	closeErr   error
}

func (f *fakeStore) Open(url string, creds store.Credentials) (store.Session, error) {
	session := &fakeSession{store: f}
	f.sessions = append(f.sessions, session)
	return session, nil
}

type fakeSession struct {
	store  *fakeStore
	closes int
}

func (s *fakeSession) Perspective(name string) (store.Perspective, error) {
	if name == "missing" {
		return nil, store.ErrUnknownPerspective
	}
	return &fakePerspective{store: s.store, name: name}, nil
}

func (s *fakeSession) Close() error {
	s.closes++
	return s.store.closeErr
}

func (s *fakeSession) Closed() bool {
	return s.closes > 0
}

type fakePerspective struct {
	store *fakeStore
	name  string
}

func (p *fakePerspective) Name() string {
	return p.name
}

func (p *fakePerspective) Prepare(sql string) (store.Statement, error) {
	if strings.Contains(sql, "BROKEN") {
		return nil, errBrokenSQL
	}
	p.store.prepared++
	statement := &fakeStatement{store: p.store, sql: sql, params: strings.Count(sql, "?")}
	p.store.statements = append(p.store.statements, statement)
	return statement, nil
}

type fakeStatement struct {
	store  *fakeStore
	sql    string
	params int
	closes int
}

func (s *fakeStatement) SQL() string {
	return s.sql
}

func (s *fakeStatement) Params() int {
	return s.params
}

func (s *fakeStatement) Columns() ([]string, error) {
	s.store.resolved++
	return []string{"sql"}, nil
}

func (s *fakeStatement) Execute(binds map[int]any) (store.Result, error) {
	row := []any{s.sql}
	for i := 0; i < len(binds); i++ {
		row = append(row, binds[i])
	}
	result := &fakeResult{rows: [][]any{row}, affected: int64(len(binds))}
	if strings.HasPrefix(s.sql, "INSERT") {
		result.lastID = int64(len(s.store.results) + 1)
	}
	s.store.results = append(s.store.results, result)
	return result, nil
}

func (s *fakeStatement) Close() error {
	s.closes++
	return errors.New("close is noisy")
}

func (s *fakeStatement) Closed() bool {
	return s.closes > 0
}

type fakeResult struct {
	rows     [][]any
	affected int64
	lastID   any
	closes   int
}

func (r *fakeResult) Columns() []string {
	return []string{"sql"}
}

func (r *fakeResult) Rows() ([][]any, error) {
	return r.rows, nil
}

func (r *fakeResult) AffectedCount() int64 {
	return r.affected
}

func (r *fakeResult) LastInsertedID() (any, bool) {
	return r.lastID, r.lastID != nil
}

func (r *fakeResult) Close() error {
	r.closes++
	return nil
}

func (r *fakeResult) Closed() bool {
	return r.closes > 0
}
