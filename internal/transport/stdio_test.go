package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func echoHandler(ctx context.Context, req Request) Response {
	return NewResult(req.ID, req.Method)
}

func TestStdioServer_EchoesRequests(t *testing.T) {
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")
	var out bytes.Buffer

	s := NewStdioServer(in, &out, echoHandler, nil)
	if err := s.Serve(context.Background()); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Result != "ping" {
		t.Fatalf("expected echoed method, got %+v", resp)
	}
}

func TestStdioServer_MalformedFrameKeepsSessionOpen(t *testing.T) {
	in := strings.NewReader("not json\n" + `{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n")
	var out bytes.Buffer

	s := NewStdioServer(in, &out, echoHandler, nil)
	if err := s.Serve(context.Background()); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected two responses (one error, one ok), got %d: %s", len(lines), out.String())
	}

	var errResp Response
	if err := json.Unmarshal(lines[0], &errResp); err != nil {
		t.Fatalf("failed to decode first response: %v", err)
	}
	if errResp.Error == nil || errResp.Error.Code != CodeParseError {
		t.Fatalf("expected parse error for malformed frame, got %+v", errResp)
	}

	var okResp Response
	if err := json.Unmarshal(lines[1], &okResp); err != nil {
		t.Fatalf("failed to decode second response: %v", err)
	}
	if okResp.Result != "ping" {
		t.Fatalf("expected second frame to succeed, got %+v", okResp)
	}
}

func TestStdioServer_RejectsNonJSONRPCRequest(t *testing.T) {
	in := strings.NewReader(`{"method":"ping"}` + "\n")
	var out bytes.Buffer

	s := NewStdioServer(in, &out, echoHandler, nil)
	if err := s.Serve(context.Background()); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Fatalf("expected invalid request error, got %+v", resp)
	}
}
