package wire

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nickyhof/storeadapter/store"
)

type Op string

const (
	OpAuth    Op = "auth"
	OpOpen    Op = "open"
	OpPrepare Op = "prepare"
	OpExecute Op = "execute"
	OpClose   Op = "close"
	OpQuery   Op = "query"
	OpPing    Op = "ping"
	OpQuit    Op = "quit"
)

// MaxLineSize bounds a single message.
const MaxLineSize = 16 << 20

type Request struct {
	Op          Op            `json:"op"`
	Token       string        `json:"token,omitempty"`
	Perspective string        `json:"perspective,omitempty"`
	SQL         string        `json:"sql,omitempty"`
	Statement   uint64        `json:"statement,omitempty"`
	Binds       map[int]Value `json:"binds,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	// Code classifies Error so that clients can restore sentinel errors.
	Code      Code      `json:"code,omitempty"`
	Identity  string    `json:"identity,omitempty"`
	ExpiresIn int       `json:"expires_in,omitempty"`
	Statement uint64    `json:"statement,omitempty"`
	Params    int       `json:"params,omitempty"`
	Columns   []string  `json:"columns,omitempty"`
	Rows      [][]Value `json:"rows,omitempty"`
	Affected  int64     `json:"affected,omitempty"`
	LastID    *Value    `json:"last_id,omitempty"`
	TimeMs    float64   `json:"time_ms,omitempty"`
}

type Code string

const (
	CodeClosed             Code = "closed"
	CodeRejected           Code = "rejected"
	CodeUnknownPerspective Code = "unknown_perspective"
	CodeBadRequest         Code = "bad_request"
)

var codeErrors = map[Code]error{
	CodeClosed:             store.ErrClosed,
	CodeRejected:           store.ErrRejected,
	CodeUnknownPerspective: store.ErrUnknownPerspective,
}

// ErrorCode classifies err for a Response.
func ErrorCode(err error) Code {
	for code, sentinel := range codeErrors {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ""
}

// Failure builds an unsuccessful Response from err.
func Failure(err error) Response {
	return Response{Error: err.Error(), Code: ErrorCode(err)}
}

// Err returns nil for successful responses, otherwise the remote error,
// wrapping the matching store sentinel when the code names one.
func (r Response) Err() error {
	if r.Success {
		return nil
	}
	if sentinel, ok := codeErrors[r.Code]; ok {
		return fmt.Errorf("%w: %s", sentinel, r.Error)
	}
	return errors.New(r.Error)
}

func encodeLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp Response) ([]byte, error) {
	return encodeLine(resp)
}

// EncodeRequest serializes a Request to JSON with a newline.
func EncodeRequest(req Request) ([]byte, error) {
	return encodeLine(req)
}

func DecodeRequest(data []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(data, &req)
	return req, err
}

func DecodeResponse(data []byte) (Response, error) {
	var resp Response
	err := json.Unmarshal(data, &resp)
	return resp, err
}

// NewReader returns a reader sized for MaxLineSize messages.
func NewReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, 64<<10)
}

// ReadLine reads one message line, rejecting lines over MaxLineSize.
func ReadLine(reader *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := reader.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > MaxLineSize {
			return nil, fmt.Errorf("message exceeds %d bytes", MaxLineSize)
		}
		if !isPrefix {
			return line, nil
		}
	}
}
