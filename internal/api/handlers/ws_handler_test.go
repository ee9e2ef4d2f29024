package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reef-research/backend/internal/pipeline"
)

// scriptedConn feeds canned messages to the handler and records every
// frame it writes. Writes beyond writeOK fail, simulating a client that
// disconnected mid-batch.
type scriptedConn struct {
	reads   []string
	writes  []interface{}
	writeOK int
}

func (s *scriptedConn) ReadJSON(v interface{}) error {
	if len(s.reads) == 0 {
		return errors.New("connection closed")
	}
	raw := s.reads[0]
	s.reads = s.reads[1:]
	return json.Unmarshal([]byte(raw), v)
}

func (s *scriptedConn) WriteJSON(v interface{}) error {
	if len(s.writes) >= s.writeOK {
		return errors.New("broken pipe")
	}
	s.writes = append(s.writes, v)
	return nil
}

func TestWebSocketStreamsProgressAndResult(t *testing.T) {
	fetcher := &fakeFetcher{}
	h := NewWebSocketHandler(pipeline.NewOrchestrator(fetcher, fakeExtractor{}))

	conn := &scriptedConn{
		reads:   []string{`{"type":"extract","arxiv_ids":["2401.00001","2401.00002"]}`},
		writeOK: 100,
	}

	h.serve(context.Background(), conn)

	// Two frames per paper (fetch, extract) plus the final result.
	require.Len(t, conn.writes, 5)

	first, ok := conn.writes[0].(progressFrame)
	require.True(t, ok)
	assert.Equal(t, "progress", first.Type)
	assert.Equal(t, "fetch", first.Stage)
	assert.Equal(t, "2401.00001", first.ArxivID)

	result, ok := conn.writes[4].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "result", result["type"])
	assert.Equal(t, []string{"2401.00001", "2401.00002"}, fetcher.calls)
}

func TestWebSocketCancelsBatchWhenClientGone(t *testing.T) {
	fetcher := &fakeFetcher{}
	h := NewWebSocketHandler(pipeline.NewOrchestrator(fetcher, fakeExtractor{}))

	// The first progress frame goes through; every later write fails.
	conn := &scriptedConn{
		reads:   []string{`{"type":"extract","arxiv_ids":["2401.00001","2401.00002","2401.00003"]}`},
		writeOK: 1,
	}

	h.serve(context.Background(), conn)

	// Only the in-flight paper finished; the rest were never fetched.
	assert.Equal(t, []string{"2401.00001"}, fetcher.calls)
}

func TestWebSocketRejectsEmptyBatch(t *testing.T) {
	h := NewWebSocketHandler(pipeline.NewOrchestrator(&fakeFetcher{}, fakeExtractor{}))

	conn := &scriptedConn{
		reads:   []string{`{"type":"extract","arxiv_ids":[]}`},
		writeOK: 100,
	}

	h.serve(context.Background(), conn)

	require.Len(t, conn.writes, 1)
	frame, ok := conn.writes[0].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "error", frame["type"])
}

func TestWebSocketIgnoresUnknownMessageTypes(t *testing.T) {
	h := NewWebSocketHandler(pipeline.NewOrchestrator(&fakeFetcher{}, fakeExtractor{}))

	conn := &scriptedConn{
		reads:   []string{`{"type":"ping"}`},
		writeOK: 100,
	}

	h.serve(context.Background(), conn)
	assert.Empty(t, conn.writes)
}
