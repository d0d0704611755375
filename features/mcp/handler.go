// Package mcp exposes the study partner as Model Context Protocol tools over
// JSON-RPC, either as plain POST or as an SSE session.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"studypartner/internal/answer"
	"studypartner/internal/apperr"
	"studypartner/internal/middleware"
	"studypartner/internal/retrieval"
)

type Answerer interface {
	Answer(ctx context.Context, question, course string) answer.Response
}

type Searcher interface {
	Retrieve(ctx context.Context, question, course string) ([]retrieval.Result, error)
}

type Courses interface {
	Slugs() []string
	Resolve(course string) (string, error)
}

const (
	ToolAsk         = "studypartner_ask"
	ToolSearch      = "studypartner_search"
	ToolListCourses = "studypartner_list_courses"
)

type Handler struct {
	answerer     Answerer
	searcher     Searcher
	courses      Courses
	sessions     map[string]chan string // sessionId -> serialized JSON-RPC responses
	sessionsLock sync.RWMutex
}

func NewHandler(a Answerer, s Searcher, c Courses) *Handler {
	return &Handler{
		answerer: a,
		searcher: s,
		courses:  c,
		sessions: make(map[string]chan string),
	}
}

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type AskArgs struct {
	Course   string `json:"course"`
	Question string `json:"question"`
}

type SearchArgs struct {
	Course string `json:"course"`
	Query  string `json:"query"`
	Limit  *int   `json:"limit,omitempty"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	ErrParse          = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
)

func tools() []Tool {
	courseProp := map[string]string{
		"type":        "string",
		"description": "Course slug, e.g. operating-systems. Use studypartner_list_courses to discover them.",
	}
	return []Tool{
		{
			Name: ToolAsk,
			Description: `Answers a question from the student's own lecture notes for one course. The answer cites the lecture file and page it came from, and says so plainly when the notes do not cover the question.

USAGE EXAMPLE:
studypartner_ask(course="operating-systems", question="Explain Simple Reflex Agent")`,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"course":   courseProp,
					"question": map[string]string{"type": "string", "description": "The question to answer"},
				},
				"required": []string{"course", "question"},
			},
		},
		{
			Name: ToolSearch,
			Description: `Returns the lecture pages most similar to a query, with source file, page number and keywords. Use it to read the raw notes behind an answer.

USAGE EXAMPLE:
studypartner_search(course="cloud-computing", query="EC2 instance types", limit=5)`,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"course": courseProp,
					"query":  map[string]string{"type": "string", "description": "The search query"},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Max results to return (default: all retrieved).",
						"minimum":     1,
						"maximum":     50,
					},
				},
				"required": []string{"course", "query"},
			},
		},
		{
			Name:        ToolListCourses,
			Description: `Lists the courses whose lecture notes are indexed.`,
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// processRequest returns nil for notifications, which get no response.
func (h *Handler) processRequest(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: map[string]interface{}{
				"protocolVersion": "2024-11-05",
				"capabilities": map[string]interface{}{
					"tools": map[string]interface{}{},
				},
				"serverInfo": map[string]interface{}{
					"name":    "studypartner-mcp",
					"version": "1.0.0",
				},
			},
		}
	case "notifications/initialized":
		return nil
	case "tools/list":
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ListToolsResult{Tools: tools()}}
	case "tools/call":
		var params CallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			slog.WarnContext(ctx, "invalid params structure", "error", err)
			resp := makeErrorResponse(req.ID, ErrInvalidParams, "Invalid params")
			return &resp
		}
		return h.callTool(ctx, req.ID, params)
	}

	slog.WarnContext(ctx, "unknown jsonrpc method", "method", req.Method)
	resp := makeErrorResponse(req.ID, ErrMethodNotFound, "Method not found")
	return &resp
}

func (h *Handler) callTool(ctx context.Context, id interface{}, params CallParams) *JSONRPCResponse {
	switch params.Name {
	case ToolAsk:
		var args AskArgs
		if err := json.Unmarshal(params.Arguments, &args); err != nil || args.Course == "" || args.Question == "" {
			resp := makeErrorResponse(id, ErrInvalidParams, "course and question are required")
			return &resp
		}
		ctx = middleware.WithCourse(ctx, args.Course)
		res := h.answerer.Answer(ctx, args.Question, args.Course)
		return toolResponse(id, res.Text, res.ErrorKind != "")

	case ToolSearch:
		var args SearchArgs
		if err := json.Unmarshal(params.Arguments, &args); err != nil || args.Course == "" || args.Query == "" {
			resp := makeErrorResponse(id, ErrInvalidParams, "course and query are required")
			return &resp
		}
		ctx = middleware.WithCourse(ctx, args.Course)
		results, err := h.searcher.Retrieve(ctx, args.Query, args.Course)
		if err != nil {
			if isUserError(err) {
				slog.WarnContext(ctx, "search rejected", "error", err)
			} else {
				slog.ErrorContext(ctx, "search failed", "error", err)
			}
			return toolResponse(id, answer.Message(args.Course, err), true)
		}
		if args.Limit != nil && *args.Limit > 0 && *args.Limit < len(results) {
			results = results[:*args.Limit]
		}
		return toolResponse(id, formatResults(results), false)

	case ToolListCourses:
		var b strings.Builder
		for _, slug := range h.courses.Slugs() {
			index, err := h.courses.Resolve(slug)
			if err != nil {
				continue
			}
			fmt.Fprintf(&b, "- %s (index: %s)\n", slug, index)
		}
		if b.Len() == 0 {
			return toolResponse(id, "No courses configured.", false)
		}
		return toolResponse(id, strings.TrimRight(b.String(), "\n"), false)
	}

	slog.WarnContext(ctx, "tool not found", "tool", params.Name)
	resp := makeErrorResponse(id, ErrMethodNotFound, "Method not found: "+params.Name)
	return &resp
}

func formatResults(results []retrieval.Result) string {
	if len(results) == 0 {
		return "No matching notes found."
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&b, "Result %d %s\n", i+1, answer.Citation(r))
		if len(r.Keywords) > 0 {
			fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(r.Keywords, ", "))
		}
		b.WriteString(r.Text)
	}
	return b.String()
}

func toolResponse(id interface{}, text string, isError bool) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result: ToolResult{
			Content: []ToolContent{{Type: "text", Text: text}},
			IsError: isError,
		},
	}
}

func makeErrorResponse(id interface{}, code int, message string) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: "2.0",
		Error: map[string]interface{}{
			"code":    code,
			"message": message,
		},
		ID: id,
	}
}

// ServeHTTP answers a single JSON-RPC request synchronously.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, nil, ErrParse, "Parse error")
		return
	}

	resp := h.processRequest(r.Context(), req)
	if resp == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// HandleSSE opens a session and streams its responses until the client leaves.
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeHTTPError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sessionID := uuid.New().String()
	msgChan := make(chan string, 100)

	h.sessionsLock.Lock()
	h.sessions[sessionID] = msgChan
	h.sessionsLock.Unlock()

	defer func() {
		h.sessionsLock.Lock()
		delete(h.sessions, sessionID)
		close(msgChan)
		h.sessionsLock.Unlock()
		slog.Info("sse session ended", "session_id", sessionID)
	}()

	slog.Info("sse session started", "session_id", sessionID)

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	endpoint := fmt.Sprintf("%s://%s/mcp/messages?sessionId=%s", scheme, r.Host, sessionID)
	fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", html.EscapeString(endpoint))
	flusher.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg := <-msgChan:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// HandleMessage accepts a JSON-RPC request for an open session and replies on
// its SSE stream.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		h.writeHTTPError(ctx, w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing sessionId")
		return
	}

	h.sessionsLock.RLock()
	_, exists := h.sessions[sessionID]
	h.sessionsLock.RUnlock()
	if !exists {
		h.writeHTTPError(ctx, w, http.StatusNotFound, "NOT_FOUND", "Session not found")
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeHTTPError(ctx, w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON")
		return
	}

	w.WriteHeader(http.StatusAccepted)

	// Keep request values such as the correlation id, drop its cancellation.
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		resp := h.processRequest(bgCtx, req)
		if resp == nil {
			return
		}
		body, err := json.Marshal(resp)
		if err != nil {
			slog.ErrorContext(bgCtx, "failed to marshal response", "error", err)
			return
		}
		h.deliver(bgCtx, sessionID, string(body))
	}()
}

// deliver holds the read lock while sending so the session cannot close mid-send.
func (h *Handler) deliver(ctx context.Context, sessionID, msg string) {
	h.sessionsLock.RLock()
	defer h.sessionsLock.RUnlock()

	ch, ok := h.sessions[sessionID]
	if !ok {
		slog.WarnContext(ctx, "session gone before response", "session_id", sessionID)
		return
	}
	select {
	case ch <- msg:
	default:
		slog.WarnContext(ctx, "session channel full, dropping message", "session_id", sessionID)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	// JSON-RPC over HTTP reports protocol errors with 200 and an error object.
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(makeErrorResponse(id, code, message)); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func (h *Handler) writeHTTPError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// isUserError reports failures caused by the request rather than the system.
func isUserError(err error) bool {
	return apperr.Kind(err) == "unknown_course"
}
