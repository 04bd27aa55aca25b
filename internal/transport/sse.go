package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sunthar/taskrelay/internal/tool"
	"github.com/sunthar/taskrelay/pkg/cerr"
)

const (
	protocolVersion   = "2024-11-05"
	heartbeatInterval = 15 * time.Second
	maxMessageBytes   = 1 << 20
)

// Handler serves the SSE tool transport: GET /sse opens the event stream
// and POST /messages?sessionId=... carries JSON-RPC requests whose
// responses are delivered back over the stream.
type Handler struct {
	manager     *Manager
	registry    *tool.Registry
	serverName  string
	version     string
	messagePath string
}

func NewHandler(manager *Manager, registry *tool.Registry, serverName, version string) *Handler {
	return &Handler{
		manager:     manager,
		registry:    registry,
		serverName:  serverName,
		version:     version,
		messagePath: "/messages",
	}
}

// ServeSSE opens a new session, announces its message endpoint, and
// streams queued responses until the client disconnects or a newer
// session supersedes this one.
func (h *Handler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		cerr.SetNewJSONError(r.Context(), cerr.Internal, "streaming is not supported", nil)
		return
	}

	session := h.manager.Open()
	defer h.manager.Release(session)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	endpoint := fmt.Sprintf("%s?sessionId=%s", h.messagePath, session.ID)
	fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", endpoint)
	flusher.Flush()

	slog.InfoContext(r.Context(), "tool session opened", "session_id", session.ID)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.InfoContext(r.Context(), "tool session disconnected", "session_id", session.ID)
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case resp, open := <-session.Events():
			if !open {
				slog.InfoContext(r.Context(), "tool session superseded", "session_id", session.ID)
				return
			}
			data, err := json.Marshal(resp)
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to encode response event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// ServeMessage accepts one JSON-RPC request for an open session. The
// HTTP response only acknowledges receipt; the JSON-RPC response goes
// out over the session's event stream.
func (h *Handler) ServeMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "sessionId query parameter is required", nil)
		return
	}
	session, err := h.manager.Lookup(sessionID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "failed to read request body", err)
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.deliver(ctx, session, newError(nil, codeParseError, "parse error"))
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if req.JSONRPC != jsonRPCVersion || req.Method == "" {
		h.deliver(ctx, session, newError(req.ID, codeInvalidRequest, "invalid request"))
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if resp := h.handle(r, &req); resp != nil && !req.IsNotification() {
		h.deliver(ctx, session, resp)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) deliver(ctx context.Context, session *Session, resp *Response) {
	if err := session.Push(resp); err != nil {
		slog.WarnContext(ctx, "dropping response for closed session",
			"session_id", session.ID, "error", err)
	}
}

func (h *Handler) handle(r *http.Request, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return newResult(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo": map[string]any{
				"name":    h.serverName,
				"version": h.version,
			},
		})
	case "notifications/initialized":
		return nil
	case "tools/list":
		return newResult(req.ID, map[string]any{"tools": h.toolList()})
	case "tools/call":
		return h.callTool(r, req)
	case "ping":
		return newResult(req.ID, map[string]any{})
	default:
		return newError(req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}
}

type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func (h *Handler) toolList() []toolInfo {
	descriptors := h.registry.List()
	infos := make([]toolInfo, 0, len(descriptors))
	for _, d := range descriptors {
		infos = append(infos, toolInfo{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.Schema.JSONSchema(),
		})
	}
	return infos
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (h *Handler) callTool(r *http.Request, req *Request) *Response {
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return newError(req.ID, codeInvalidParams, "invalid tools/call params")
	}
	if params.Name == "" {
		return newError(req.ID, codeInvalidParams, "tool name is required")
	}

	result, err := h.registry.Invoke(r.Context(), params.Name, params.Arguments)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			return newError(req.ID, codeInvalidParams, err.Error())
		}
		// Tool-level failures travel as result payloads so the agent can
		// react to them instead of treating the wire as broken.
		return newResult(req.ID, map[string]any{
			"content": []map[string]any{{"type": "text", "text": err.Error()}},
			"isError": true,
		})
	}

	content := make([]map[string]any, 0, len(result.Content))
	for _, c := range result.Content {
		content = append(content, map[string]any{"type": c.Type, "text": c.Text})
	}
	return newResult(req.ID, map[string]any{"content": content, "isError": false})
}
