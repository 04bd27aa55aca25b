package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunthar/taskrelay/internal/tool"
	"github.com/sunthar/taskrelay/pkg/cerr"
)

func testRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	require.NoError(t, r.Register(&tool.Descriptor{
		Name:        "echo",
		Description: "Echo the message back.",
		Schema: tool.Schema{
			"message": {Type: tool.TypeString, Description: "text to echo", Required: true},
		},
		Handler: func(ctx context.Context, args tool.Args) (*tool.Result, error) {
			return tool.TextResult("echo: %s", args.String("message")), nil
		},
	}))
	require.NoError(t, r.Register(&tool.Descriptor{
		Name:        "always_fails",
		Description: "Fail on every call.",
		Schema:      tool.Schema{},
		Handler: func(ctx context.Context, args tool.Args) (*tool.Result, error) {
			return nil, cerr.NewError(cerr.Unavailable, "upstream is down", nil)
		},
	}))
	return r
}

func TestManagerSupersedesActiveSession(t *testing.T) {
	m := NewManager()
	first := m.Open()
	second := m.Open()

	_, err := m.Lookup(first.ID)
	require.Error(t, err)
	assert.Equal(t, cerr.NotFound, cerr.CodeOf(err))

	got, err := m.Lookup(second.ID)
	require.NoError(t, err)
	assert.Same(t, second, got)

	// The superseded session's channel is closed so its handler unwinds.
	_, open := <-first.Events()
	assert.False(t, open)

	err = first.Push(&Response{})
	require.Error(t, err)
	assert.Equal(t, cerr.NotFound, cerr.CodeOf(err))
}

func TestManagerRelease(t *testing.T) {
	m := NewManager()
	s := m.Open()
	m.Release(s)

	_, err := m.Lookup(s.ID)
	require.Error(t, err)

	// Releasing a superseded session must not evict the newer one.
	old := m.Open()
	current := m.Open()
	m.Release(old)
	_, err = m.Lookup(current.ID)
	require.NoError(t, err)
}

func TestHandleInitialize(t *testing.T) {
	h := NewHandler(NewManager(), testRegistry(t), "taskrelay", "0.1.0")
	req := &Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "initialize"}

	resp := h.handle(httptest.NewRequest(http.MethodPost, "/messages", nil), req)
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]any)
	assert.Equal(t, protocolVersion, result["protocolVersion"])
	info := result["serverInfo"].(map[string]any)
	assert.Equal(t, "taskrelay", info["name"])
}

func TestHandleToolsList(t *testing.T) {
	h := NewHandler(NewManager(), testRegistry(t), "taskrelay", "0.1.0")
	req := &Request{JSONRPC: "2.0", ID: json.RawMessage(`2`), Method: "tools/list"}

	resp := h.handle(httptest.NewRequest(http.MethodPost, "/messages", nil), req)
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	tools := resp.Result.(map[string]any)["tools"].([]toolInfo)
	require.Len(t, tools, 2)
	assert.Equal(t, "always_fails", tools[0].Name)
	assert.Equal(t, "echo", tools[1].Name)
	assert.Equal(t, "object", tools[1].InputSchema["type"])
}

func TestHandleToolsCall(t *testing.T) {
	h := NewHandler(NewManager(), testRegistry(t), "taskrelay", "0.1.0")
	req := &Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`3`),
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name": "echo", "arguments": {"message": "hi"}}`),
	}

	resp := h.handle(httptest.NewRequest(http.MethodPost, "/messages", nil), req)
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]any)
	assert.Equal(t, false, result["isError"])
	content := result["content"].([]map[string]any)
	require.Len(t, content, 1)
	assert.Equal(t, "echo: hi", content[0]["text"])
}

func TestHandleToolsCallFailureBecomesResult(t *testing.T) {
	h := NewHandler(NewManager(), testRegistry(t), "taskrelay", "0.1.0")
	req := &Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`4`),
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name": "always_fails", "arguments": {}}`),
	}

	resp := h.handle(httptest.NewRequest(http.MethodPost, "/messages", nil), req)
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	assert.Equal(t, true, resp.Result.(map[string]any)["isError"])
}

func TestHandleUnknownToolIsParamError(t *testing.T) {
	h := NewHandler(NewManager(), testRegistry(t), "taskrelay", "0.1.0")
	req := &Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`5`),
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name": "nope", "arguments": {}}`),
	}

	resp := h.handle(httptest.NewRequest(http.MethodPost, "/messages", nil), req)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestHandleUnknownMethod(t *testing.T) {
	h := NewHandler(NewManager(), testRegistry(t), "taskrelay", "0.1.0")
	req := &Request{JSONRPC: "2.0", ID: json.RawMessage(`6`), Method: "resources/list"}

	resp := h.handle(httptest.NewRequest(http.MethodPost, "/messages", nil), req)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func transportServer(t *testing.T) (*httptest.Server, *Handler) {
	t.Helper()
	h := NewHandler(NewManager(), testRegistry(t), "taskrelay", "0.1.0")
	r := chi.NewRouter()
	r.Use(cerr.JSONResponseChiMiddleware())
	r.Get("/sse", h.ServeSSE)
	r.Post("/messages", h.ServeMessage)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, h
}

// readEvent reads one SSE event (event name + data line) from the stream.
func readEvent(t *testing.T, br *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data
		}
	}
}

func TestEndToEndOverSSE(t *testing.T) {
	srv, _ := transportServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	br := bufio.NewReader(resp.Body)
	event, endpoint := readEvent(t, br)
	require.Equal(t, "endpoint", event)
	require.True(t, strings.HasPrefix(endpoint, "/messages?sessionId="), endpoint)

	body := `{"jsonrpc": "2.0", "id": 1, "method": "tools/call", "params": {"name": "echo", "arguments": {"message": "over the wire"}}}`
	post, err := http.Post(srv.URL+endpoint, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusAccepted, post.StatusCode)

	event, data := readEvent(t, br)
	require.Equal(t, "message", event)

	var rpc Response
	require.NoError(t, json.Unmarshal([]byte(data), &rpc))
	require.Nil(t, rpc.Error)
	result := rpc.Result.(map[string]any)
	content := result["content"].([]any)
	require.Len(t, content, 1)
	assert.Equal(t, "echo: over the wire", content[0].(map[string]any)["text"])
}

func TestServeMessageStaleSession(t *testing.T) {
	srv, _ := transportServer(t)

	post, err := http.Post(srv.URL+"/messages?sessionId=01STALESESSIONID0000000000",
		"application/json", bytes.NewBufferString(`{"jsonrpc": "2.0", "id": 1, "method": "ping"}`))
	require.NoError(t, err)
	defer post.Body.Close()
	assert.Equal(t, http.StatusNotFound, post.StatusCode)
}

func TestServeMessageMissingSessionID(t *testing.T) {
	srv, _ := transportServer(t)

	post, err := http.Post(srv.URL+"/messages", "application/json",
		bytes.NewBufferString(`{"jsonrpc": "2.0", "id": 1, "method": "ping"}`))
	require.NoError(t, err)
	defer post.Body.Close()
	assert.Equal(t, http.StatusBadRequest, post.StatusCode)
}
