package store

import (
	"errors"

	"github.com/nickyhof/storeadapter/core"
)

var (
	ErrClosed             = errors.New("handle is closed")
	ErrRejected           = errors.New("credentials rejected")
	ErrUnknownScheme      = errors.New("unknown url scheme")
	ErrUnknownPerspective = errors.New("unknown perspective")
	ErrUnreachable        = errors.New("store unreachable")
)

// Credentials are presented when a session is opened. Drivers that do not
// authenticate ignore Token.
type Credentials struct {
	Token    string
	Username string
	Identity core.Identity
}

// Driver opens sessions for one URL scheme.
type Driver interface {
	Open(url string, creds Credentials) (Session, error)
}

// Session is a live connection to a store.
type Session interface {
	// Perspective binds the session to the named view. Unknown names fail
	// with ErrUnknownPerspective.
	Perspective(name string) (Perspective, error)
	Close() error
	// Closed reports whether the session is unusable, including closure
	// by the remote side.
	Closed() bool
}

type Perspective interface {
	Name() string
	Prepare(sql string) (Statement, error)
}

// Statement is a compiled SQL text. Binds are addressed by 0-based position.
type Statement interface {
	SQL() string
	// Params is the number of positional placeholders.
	Params() int
	Columns() ([]string, error)
	Execute(binds map[int]any) (Result, error)
	Close() error
	Closed() bool
}

// Result is the outcome of one execution. It stays readable after its
// statement is closed.
type Result interface {
	Columns() []string
	Rows() ([][]any, error)
	AffectedCount() int64
	// LastInsertedID returns the key assigned by the last row of an INSERT.
	LastInsertedID() (any, bool)
	Close() error
	Closed() bool
}
