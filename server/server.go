package server

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nickyhof/storeadapter/core"
	"github.com/nickyhof/storeadapter/db"
	"github.com/nickyhof/storeadapter/ps"
	"github.com/nickyhof/storeadapter/store"
	"github.com/nickyhof/storeadapter/wire"
)

var ErrAuthRequired = fmt.Errorf("%w: authentication required", store.ErrRejected)

// Server is a TCP server that exposes a store over the wire protocol.
type Server struct {
	listener    net.Listener
	persistence *ps.Persistence
	identity    core.Identity
	authConfig  *AuthConfig
	tlsEnabled  bool
	logger      *zap.Logger
	// mu serializes statement execution across connections.
	mu       sync.Mutex
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server without authentication. Commits are
// attributed to identity.
func NewServer(persistence *ps.Persistence, identity core.Identity, opts ...Option) *Server {
	s := &Server{
		persistence: persistence,
		identity:    identity,
		logger:      zap.NewNop(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServerWithAuth creates a server that requires AUTH before any other
// request. Commits are attributed to the token's identity.
func NewServerWithAuth(persistence *ps.Persistence, identity core.Identity, authConfig AuthConfig, opts ...Option) *Server {
	s := NewServer(persistence, identity, opts...)
	if authConfig.Enabled {
		s.authConfig = &authConfig
	}
	return s
}

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	s.logger.Info("server listening", zap.String("addr", listener.Addr().String()))

	go s.acceptLoop()
	return nil
}

// StartTLS is Start with TLS using the given certificate and key files.
func (s *Server) StartTLS(addr, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	listener, err := tls.Listen("tcp", addr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("failed to start TLS server: %w", err)
	}
	s.listener = listener
	s.tlsEnabled = true

	s.logger.Info("server listening", zap.String("addr", listener.Addr().String()), zap.Bool("tls", true))

	go s.acceptLoop()
	return nil
}

func (s *Server) TLSEnabled() bool {
	return s.tlsEnabled
}

func (s *Server) AuthEnabled() bool {
	return s.authConfig != nil
}

// Stop closes the listener and waits for open connections to finish.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
	})
	s.wg.Wait()
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.logger.Warn("accept failed", zap.Error(err))
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// connection is the state of one client connection.
type connection struct {
	state       ConnectionState
	session     *db.Session
	perspective store.Perspective
	statements  map[uint64]store.Statement
	nextID      uint64
}

func (c *connection) close() {
	for _, stmt := range c.statements {
		stmt.Close()
	}
	c.statements = nil
	if c.session != nil {
		c.session.Close()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	logger := s.logger.With(zap.String("remote", conn.RemoteAddr().String()))
	logger.Debug("client connected")

	c := &connection{statements: make(map[uint64]store.Statement)}
	defer c.close()

	// unblock the read below on shutdown
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-s.done:
			conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	reader := wire.NewReader(conn)
	for {
		line, err := wire.ReadLine(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				select {
				case <-s.done:
				default:
					logger.Debug("read failed", zap.Error(err))
				}
			}
			return
		}
		if len(line) == 0 {
			continue
		}

		var response wire.Response
		req, err := wire.DecodeRequest(line)
		if err != nil {
			response = wire.Response{Error: "malformed request: " + err.Error(), Code: wire.CodeBadRequest}
		} else if req.Op == wire.OpQuit {
			logger.Debug("client disconnected")
			return
		} else {
			response = s.handle(c, req, logger)
		}

		if err := write(conn, response); err != nil {
			logger.Debug("write failed", zap.Error(err))
			return
		}
	}
}

func write(w io.Writer, response wire.Response) error {
	data, err := wire.EncodeResponse(response)
	if err != nil {
		data, _ = wire.EncodeResponse(wire.Failure(err))
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(data); err != nil {
		return err
	}
	return bw.Flush()
}

func (s *Server) handle(c *connection, req wire.Request, logger *zap.Logger) wire.Response {
	switch req.Op {
	case wire.OpPing:
		return wire.Response{Success: true}
	case wire.OpAuth:
		return s.handleAuth(req.Token, c)
	}

	if s.authConfig != nil && !c.state.IsAuthenticated() {
		return wire.Failure(ErrAuthRequired)
	}
	if c.state.Expired() {
		return wire.Failure(fmt.Errorf("%w: token expired", store.ErrRejected))
	}

	switch req.Op {
	case wire.OpOpen:
		return s.handleOpen(c, req.Perspective, logger)
	case wire.OpPrepare:
		return s.handlePrepare(c, req.SQL)
	case wire.OpExecute:
		return s.handleExecute(c, req.Statement, req.Binds)
	case wire.OpClose:
		if stmt, ok := c.statements[req.Statement]; ok {
			stmt.Close()
			delete(c.statements, req.Statement)
		}
		return wire.Response{Success: true}
	case wire.OpQuery:
		return s.handleQuery(c, req.SQL, req.Binds)
	}
	return wire.Response{Error: fmt.Sprintf("unknown op %q", req.Op), Code: wire.CodeBadRequest}
}

func (s *Server) handleOpen(c *connection, name string, logger *zap.Logger) wire.Response {
	if c.session == nil {
		identity := s.identity
		if c.state.Identity() != nil {
			identity = *c.state.Identity()
		}
		c.session = db.NewSession(s.persistence, identity, logger)
	}

	perspective, err := c.session.Perspective(name)
	if err != nil {
		return wire.Failure(err)
	}
	c.perspective = perspective
	return wire.Response{Success: true}
}

func (s *Server) handlePrepare(c *connection, query string) wire.Response {
	if c.perspective == nil {
		return wire.Response{Error: "no perspective open", Code: wire.CodeBadRequest}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, err := c.perspective.Prepare(query)
	if err != nil {
		return wire.Failure(err)
	}
	columns, err := stmt.Columns()
	if err != nil {
		stmt.Close()
		return wire.Failure(err)
	}

	c.nextID++
	c.statements[c.nextID] = stmt
	return wire.Response{Success: true, Statement: c.nextID, Params: stmt.Params(), Columns: columns}
}

func (s *Server) handleExecute(c *connection, id uint64, binds map[int]wire.Value) wire.Response {
	stmt, ok := c.statements[id]
	if !ok {
		return wire.Failure(fmt.Errorf("statement %d: %w", id, store.ErrClosed))
	}
	return s.execute(stmt, binds)
}

// handleQuery prepares, executes and closes a statement in one round trip.
func (s *Server) handleQuery(c *connection, query string, binds map[int]wire.Value) wire.Response {
	if c.perspective == nil {
		return wire.Response{Error: "no perspective open", Code: wire.CodeBadRequest}
	}

	s.mu.Lock()
	stmt, err := c.perspective.Prepare(query)
	s.mu.Unlock()
	if err != nil {
		return wire.Failure(err)
	}
	defer stmt.Close()

	return s.execute(stmt, binds)
}

func (s *Server) execute(stmt store.Statement, binds map[int]wire.Value) wire.Response {
	decoded, err := wire.DecodeBinds(binds)
	if err != nil {
		return wire.Response{Error: err.Error(), Code: wire.CodeBadRequest}
	}

	startTime := time.Now()
	s.mu.Lock()
	result, err := stmt.Execute(decoded)
	s.mu.Unlock()
	if err != nil {
		return wire.Failure(err)
	}
	defer result.Close()

	rows, err := result.Rows()
	if err != nil {
		return wire.Failure(err)
	}
	encoded, err := wire.EncodeRows(rows)
	if err != nil {
		return wire.Failure(err)
	}

	response := wire.Response{
		Success:  true,
		Columns:  result.Columns(),
		Rows:     encoded,
		Affected: result.AffectedCount(),
		TimeMs:   float64(time.Since(startTime).Microseconds()) / 1000,
	}
	if id, ok := result.LastInsertedID(); ok {
		if value, err := wire.Encode(id); err == nil {
			response.LastID = &value
		}
	}
	return response
}
