package client

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nickyhof/storeadapter/store"
	"github.com/nickyhof/storeadapter/wire"
)

const defaultDialTimeout = 5 * time.Second

type Driver struct {
	logger      *zap.Logger
	tlsConfig   *tls.Config
	dialTimeout time.Duration
}

type Option func(*Driver)

func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithTLSConfig sets the base TLS configuration for tls:// URLs.
func WithTLSConfig(config *tls.Config) Option {
	return func(d *Driver) {
		d.tlsConfig = config
	}
}

func WithDialTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		d.dialTimeout = timeout
	}
}

func NewDriver(opts ...Option) *Driver {
	d := &Driver{
		logger:      zap.NewNop(),
		dialTimeout: defaultDialTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Open(rawURL string, creds store.Credentials) (store.Session, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid store url: %w", err)
	}

	if u.Scheme != "tcp" && u.Scheme != "tls" {
		return nil, fmt.Errorf("%w: %q", store.ErrUnknownScheme, u.Scheme)
	}

	conn, err := d.dial(u)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", store.ErrUnreachable, u.Host, err)
	}

	session := &Session{
		conn:   conn,
		reader: wire.NewReader(conn),
		logger: d.logger.With(zap.String("server", u.Host)),
	}

	if creds.Token != "" {
		resp, err := session.roundTrip(wire.Request{Op: wire.OpAuth, Token: creds.Token})
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("%w: %v", store.ErrUnreachable, err)
		}
		if err := resp.Err(); err != nil {
			session.Close()
			return nil, err
		}
		session.logger.Debug("authenticated", zap.String("identity", resp.Identity))
	}
	return session, nil
}

func (d *Driver) dial(u *url.URL) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: d.dialTimeout}
	if u.Scheme == "tcp" {
		return dialer.Dial("tcp", u.Host)
	}

	config := &tls.Config{MinVersion: tls.VersionTLS12}
	if d.tlsConfig != nil {
		config = d.tlsConfig.Clone()
	}
	if config.ServerName == "" {
		config.ServerName = u.Hostname()
	}
	if insecure, _ := strconv.ParseBool(u.Query().Get("insecure")); insecure {
		config.InsecureSkipVerify = true
	}
	return tls.DialWithDialer(dialer, "tcp", u.Host, config)
}

// Session is one connection to a server. Requests are strictly
// request/response and serialized by mu.
type Session struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	logger *zap.Logger
	closed atomic.Bool
}

func (s *Session) roundTrip(req wire.Request) (wire.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return wire.Response{}, store.ErrClosed
	}

	data, err := wire.EncodeRequest(req)
	if err != nil {
		return wire.Response{}, err
	}
	if _, err := s.conn.Write(data); err != nil {
		s.broken(err)
		return wire.Response{}, fmt.Errorf("%w: %v", store.ErrClosed, err)
	}

	line, err := wire.ReadLine(s.reader)
	if err != nil {
		s.broken(err)
		return wire.Response{}, fmt.Errorf("%w: %v", store.ErrClosed, err)
	}
	return wire.DecodeResponse(line)
}

// call is roundTrip with the remote error surfaced.
func (s *Session) call(req wire.Request) (wire.Response, error) {
	resp, err := s.roundTrip(req)
	if err != nil {
		return resp, err
	}
	return resp, resp.Err()
}

func (s *Session) broken(err error) {
	if s.closed.CompareAndSwap(false, true) {
		s.logger.Debug("connection lost", zap.Error(err))
		s.conn.Close()
	}
}

func (s *Session) Perspective(name string) (store.Perspective, error) {
	if _, err := s.call(wire.Request{Op: wire.OpOpen, Perspective: name}); err != nil {
		return nil, err
	}
	return &Perspective{session: s, name: name}, nil
}

// Close says goodbye and closes the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if data, err := wire.EncodeRequest(wire.Request{Op: wire.OpQuit}); err == nil {
		s.conn.SetWriteDeadline(time.Now().Add(time.Second))
		s.conn.Write(data)
	}
	return s.conn.Close()
}

// Closed pings the server; a session whose connection is gone is closed.
func (s *Session) Closed() bool {
	if s.closed.Load() {
		return true
	}
	if _, err := s.roundTrip(wire.Request{Op: wire.OpPing}); err != nil {
		s.broken(err)
		return true
	}
	return false
}

type Perspective struct {
	session *Session
	name    string
}

func (p *Perspective) Name() string {
	return p.name
}

func (p *Perspective) Prepare(query string) (store.Statement, error) {
	resp, err := p.session.call(wire.Request{Op: wire.OpPrepare, SQL: query})
	if err != nil {
		return nil, err
	}
	return &Statement{
		session: p.session,
		id:      resp.Statement,
		sql:     query,
		params:  resp.Params,
		columns: resp.Columns,
	}, nil
}

type Statement struct {
	session *Session
	id      uint64
	sql     string
	params  int
	columns []string
	closed  atomic.Bool
}

func (s *Statement) SQL() string {
	return s.sql
}

func (s *Statement) Params() int {
	return s.params
}

func (s *Statement) Columns() ([]string, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	return append([]string(nil), s.columns...), nil
}

func (s *Statement) Execute(binds map[int]any) (store.Result, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	encoded, err := wire.EncodeBinds(binds)
	if err != nil {
		return nil, err
	}

	resp, err := s.session.call(wire.Request{Op: wire.OpExecute, Statement: s.id, Binds: encoded})
	if err != nil {
		return nil, err
	}
	return newResult(resp)
}

// Close releases the statement on the server. A lost connection has
// released it already.
func (s *Statement) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	_, err := s.session.call(wire.Request{Op: wire.OpClose, Statement: s.id})
	if err != nil && s.session.closed.Load() {
		return nil
	}
	return err
}

func (s *Statement) Closed() bool {
	return s.closed.Load()
}

// Result is a materialized result received from the server.
type Result struct {
	columns  []string
	rows     [][]any
	affected int64
	lastID   any
	closed   atomic.Bool
}

func newResult(resp wire.Response) (*Result, error) {
	rows, err := wire.DecodeRows(resp.Rows)
	if err != nil {
		return nil, err
	}
	result := &Result{columns: resp.Columns, rows: rows, affected: resp.Affected}
	if resp.LastID != nil {
		if result.lastID, err = resp.LastID.Decode(); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *Result) Columns() []string {
	return append([]string(nil), r.columns...)
}

func (r *Result) Rows() ([][]any, error) {
	if r.closed.Load() {
		return nil, store.ErrClosed
	}
	rows := make([][]any, len(r.rows))
	for i, row := range r.rows {
		rows[i] = append([]any(nil), row...)
	}
	return rows, nil
}

func (r *Result) AffectedCount() int64 {
	return r.affected
}

func (r *Result) LastInsertedID() (any, bool) {
	return r.lastID, r.lastID != nil
}

func (r *Result) Close() error {
	r.closed.Store(true)
	r.rows = nil
	return nil
}

func (r *Result) Closed() bool {
	return r.closed.Load()
}
