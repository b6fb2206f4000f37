package telemetry

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
)

// NoopSink discards every event. Used when telemetry persistence is
// disabled outright.
type NoopSink struct{}

func (NoopSink) Emit(_ context.Context, _ Event) error { return nil }
func (NoopSink) Close() error                          { return nil }

// StdoutSink writes one JSON line per event to standard error (stdout is
// reserved for the stdio transport's response stream).
type StdoutSink struct {
	mu sync.Mutex
}

// NewStdoutSink builds a StdoutSink.
func NewStdoutSink() *StdoutSink {
	return &StdoutSink{}
}

func (s *StdoutSink) Emit(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(os.Stderr, "[telemetry]", string(event.marshal()))
	return nil
}

func (s *StdoutSink) Close() error { return nil }

// FileSink appends one JSON line per event to a file, buffered and
// flushed on every write to keep the implementation simple — telemetry
// volume here is orders of magnitude lower than the teacher's audit log.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// NewFileSink opens (creating if needed) path for append.
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to open sink file: %w", err)
	}
	return &FileSink{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (s *FileSink) Emit(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.Write(append(event.marshal(), '\n')); err != nil {
		return err
	}
	return s.writer.Flush()
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Flush(); err != nil {
		return err
	}
	return s.file.Close()
}

// NewSink builds the Sink named by backend ("noop", "stdout", "file"),
// opening filePath for the file backend. Unknown backends fall back to
// stdout.
func NewSink(backend, filePath string) (Sink, error) {
	switch backend {
	case "noop", "":
		return NoopSink{}, nil
	case "stdout":
		return NewStdoutSink(), nil
	case "file":
		return NewFileSink(filePath)
	default:
		return NewStdoutSink(), nil
	}
}
