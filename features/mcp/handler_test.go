package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studypartner/internal/answer"
	"studypartner/internal/apperr"
	"studypartner/internal/config"
	"studypartner/internal/retrieval"
)

type MockAnswerer struct{ mock.Mock }

func (m *MockAnswerer) Answer(ctx context.Context, question, course string) answer.Response {
	args := m.Called(ctx, question, course)
	return args.Get(0).(answer.Response)
}

type MockSearcher struct{ mock.Mock }

func (m *MockSearcher) Retrieve(ctx context.Context, question, course string) ([]retrieval.Result, error) {
	args := m.Called(ctx, question, course)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.Result), args.Error(1)
}

func call(t *testing.T, h *Handler, method string, params interface{}) JSONRPCResponse {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	body, err := json.Marshal(JSONRPCRequest{JSONRPC: "2.0", Method: method, Params: raw, ID: 1})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp JSONRPCResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func toolText(t *testing.T, resp JSONRPCResponse) (string, bool) {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var res ToolResult
	require.NoError(t, json.Unmarshal(raw, &res))
	require.Len(t, res.Content, 1)
	return res.Content[0].Text, res.IsError
}

func TestProcessRequest_InitializeAndList(t *testing.T) {
	h := NewHandler(new(MockAnswerer), new(MockSearcher), config.DefaultCourses())

	resp := h.processRequest(context.Background(), JSONRPCRequest{JSONRPC: "2.0", Method: "initialize", ID: 1})
	require.NotNil(t, resp)
	info := resp.Result.(map[string]interface{})["serverInfo"].(map[string]interface{})
	assert.Equal(t, "studypartner-mcp", info["name"])

	assert.Nil(t, h.processRequest(context.Background(), JSONRPCRequest{Method: "notifications/initialized"}))

	resp = h.processRequest(context.Background(), JSONRPCRequest{JSONRPC: "2.0", Method: "tools/list", ID: 2})
	require.NotNil(t, resp)
	var names []string
	for _, tool := range resp.Result.(ListToolsResult).Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{ToolAsk, ToolSearch, ToolListCourses}, names)

	resp = h.processRequest(context.Background(), JSONRPCRequest{JSONRPC: "2.0", Method: "resources/list", ID: 3})
	assert.Equal(t, ErrMethodNotFound, resp.Error.(map[string]interface{})["code"])
}

func TestTool_Ask(t *testing.T) {
	a := new(MockAnswerer)
	a.On("Answer", mock.Anything, "What is paging?", "operating-systems").
		Return(answer.Response{Text: "Paging splits memory.\n\nSources:\n(Source: OS.pdf, Page: 4)", Citations: []string{"(Source: OS.pdf, Page: 4)"}})
	a.On("Answer", mock.Anything, "q", "basket-weaving").
		Return(answer.Response{Text: "Error: No collection found for course 'basket-weaving'.", ErrorKind: "unknown_course"})

	h := NewHandler(a, new(MockSearcher), config.DefaultCourses())

	text, isErr := toolText(t, call(t, h, "tools/call", map[string]interface{}{
		"name":      ToolAsk,
		"arguments": map[string]string{"course": "operating-systems", "question": "What is paging?"},
	}))
	assert.False(t, isErr)
	assert.Contains(t, text, "(Source: OS.pdf, Page: 4)")

	text, isErr = toolText(t, call(t, h, "tools/call", map[string]interface{}{
		"name":      ToolAsk,
		"arguments": map[string]string{"course": "basket-weaving", "question": "q"},
	}))
	assert.True(t, isErr)
	assert.Equal(t, "Error: No collection found for course 'basket-weaving'.", text)

	resp := call(t, h, "tools/call", map[string]interface{}{
		"name":      ToolAsk,
		"arguments": map[string]string{"course": "operating-systems"},
	})
	assert.EqualValues(t, ErrInvalidParams, resp.Error.(map[string]interface{})["code"])
}

func TestTool_Search(t *testing.T) {
	s := new(MockSearcher)
	s.On("Retrieve", mock.Anything, "EC2", "cloud-computing").Return([]retrieval.Result{
		{Text: "EC2 provides VMs.", Source: "AWS-Week1.pdf", Page: 3, Keywords: []string{"ec2", "vm"}},
		{Text: "S3 stores objects.", Source: "AWS-Week1.pdf", Page: 5},
	}, nil)
	s.On("Retrieve", mock.Anything, "EC2", "aws").Return(nil, fmt.Errorf("%w: aws", apperr.ErrUnknownCourse))

	h := NewHandler(new(MockAnswerer), s, config.DefaultCourses())

	limit := 1
	text, isErr := toolText(t, call(t, h, "tools/call", map[string]interface{}{
		"name":      ToolSearch,
		"arguments": SearchArgs{Course: "cloud-computing", Query: "EC2", Limit: &limit},
	}))
	assert.False(t, isErr)
	assert.Equal(t, "Result 1 (Source: AWS-Week1.pdf, Page: 3)\nKeywords: ec2, vm\nEC2 provides VMs.", text)

	text, isErr = toolText(t, call(t, h, "tools/call", map[string]interface{}{
		"name":      ToolSearch,
		"arguments": SearchArgs{Course: "aws", Query: "EC2"},
	}))
	assert.True(t, isErr)
	assert.Equal(t, "Error: No collection found for course 'aws'.", text)
}

func TestTool_ListCourses(t *testing.T) {
	h := NewHandler(new(MockAnswerer), new(MockSearcher), config.DefaultCourses())
	text, isErr := toolText(t, call(t, h, "tools/call", map[string]interface{}{"name": ToolListCourses}))
	assert.False(t, isErr)
	assert.Equal(t, "- cloud-computing (index: aws)\n- database-systems (index: database)\n- operating-systems (index: operating_systems)", text)
}

func TestServeHTTP_ParseError(t *testing.T) {
	h := NewHandler(new(MockAnswerer), new(MockSearcher), config.DefaultCourses())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), fmt.Sprint(ErrParse))
}

func TestHandleMessage_Validation(t *testing.T) {
	h := NewHandler(new(MockAnswerer), new(MockSearcher), config.DefaultCourses())

	w := httptest.NewRecorder()
	h.HandleMessage(w, httptest.NewRequest(http.MethodPost, "/mcp/messages", strings.NewReader("{}")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.HandleMessage(w, httptest.NewRequest(http.MethodPost, "/mcp/messages?sessionId=nope", strings.NewReader("{}")))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSSE_RoundTrip(t *testing.T) {
	h := NewHandler(new(MockAnswerer), new(MockSearcher), config.DefaultCourses())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /mcp/sse", h.HandleSSE)
	mux.HandleFunc("POST /mcp/messages", h.HandleMessage)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/mcp/sse", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	events := make(chan string, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				events <- strings.TrimPrefix(line, "data: ")
			}
		}
	}()

	var endpoint string
	select {
	case endpoint = <-events:
	case <-ctx.Done():
		t.Fatal("no endpoint event")
	}
	require.Contains(t, endpoint, "/mcp/messages?sessionId=")

	body := `{"jsonrpc":"2.0","method":"tools/call","id":7,"params":{"name":"studypartner_list_courses"}}`
	post, err := http.Post(endpoint, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusAccepted, post.StatusCode)

	select {
	case msg := <-events:
		var rpc JSONRPCResponse
		require.NoError(t, json.Unmarshal([]byte(msg), &rpc))
		assert.EqualValues(t, 7, rpc.ID)
		text, _ := toolText(t, rpc)
		assert.Contains(t, text, "cloud-computing")
	case <-ctx.Done():
		t.Fatal("no message event")
	}
}
