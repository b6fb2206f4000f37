package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// StdioServer frames newline-delimited JSON-RPC over an arbitrary
// reader/writer pair — stdin/stdout in production, pipes in tests.
// Writes are serialized so concurrent handler goroutines never
// interleave partial responses on the wire.
type StdioServer struct {
	reader  *bufio.Reader
	writer  io.Writer
	handler Handler
	logger  *slog.Logger

	writeMu sync.Mutex
}

// NewStdioServer builds a StdioServer reading frames from r and writing
// responses to w. handler is the fully composed middleware chain.
func NewStdioServer(r io.Reader, w io.Writer, handler Handler, logger *slog.Logger) *StdioServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioServer{
		reader:  bufio.NewReaderSize(r, 64*1024),
		writer:  w,
		handler: handler,
		logger:  logger,
	}
}

// Serve reads one JSON-RPC request per line until the reader is
// exhausted, ctx is canceled, or a read error occurs. A malformed line
// produces an error response with the best-effort id (or null) and
// does not end the session; a read error does.
func (s *StdioServer) Serve(ctx context.Context) error {
	ctx = WithSessionID(ctx, "stdio")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, err := s.reader.ReadBytes('\n')
		if len(line) > 0 {
			s.handleLine(ctx, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (s *StdioServer) handleLine(ctx context.Context, line []byte) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.write(NewError(nil, CodeParseError, "invalid JSON-RPC frame", nil))
		return
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		s.write(NewError(req.ID, CodeInvalidRequest, "not a valid JSON-RPC 2.0 request", nil))
		return
	}

	resp := s.handler(ctx, req)
	s.write(resp)
}

// write serializes one response plus trailing newline, guarded by a
// mutex so responses from concurrent handler goroutines never
// interleave on the wire. A write error is logged but does not abort
// the read loop directly — callers observing a broken pipe will see
// subsequent reads fail instead.
func (s *StdioServer) write(resp Response) {
	body, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		return
	}
	body = append(body, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.writer.Write(body); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}
