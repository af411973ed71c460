package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/unchained/service/agent"
	"github.com/viant/unchained/service/approval"
	"github.com/viant/unchained/service/approval/memory"
	"github.com/viant/unchained/service/conversation"
	"github.com/viant/unchained/service/event"
	"github.com/viant/unchained/service/exec"
	qmem "github.com/viant/unchained/service/messaging/memory"
	"github.com/viant/unchained/service/session"
)

type stubExecutor struct{}

func (stubExecutor) Execute(_ context.Context, input *exec.Input, output *exec.Output) error {
	output.Language = input.Language
	output.Stdout = "a.txt"
	return nil
}

const proposal = "```python\nimport os\nprint(os.listdir('.'))\n```"

type fixture struct {
	server   *httptest.Server
	client   *http.Client
	srv      *Server
	registry *session.Registry
}

func newFixture(t *testing.T, replies ...string) *fixture {
	publisher := event.NewPublisher[any](qmem.NewQueue[event.Event[any]](qmem.DefaultConfig()))
	registry := session.NewRegistry(
		session.WithBaseDir(t.TempDir()),
		session.WithGateFactory(func(string) approval.Gate { return memory.New(memory.WithPublisher(publisher)) }),
	)
	script := agent.NewScripted(replies...)
	driver := conversation.New(script, stubExecutor{}, conversation.WithPublisher(publisher))
	srv := New(registry, driver, WithPublisher(publisher))
	srv.Start(context.Background())
	server := httptest.NewServer(srv.Handler())
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		server.Close()
		srv.Stop()
	})
	return &fixture{server: server, client: &http.Client{Jar: jar}, srv: srv, registry: registry}
}

func (f *fixture) call(t *testing.T, method, path string, body interface{}) (int, *Response) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	response := &Response{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(response))
	return resp.StatusCode, response
}

func TestServer_Index(t *testing.T) {
	f := newFixture(t)
	resp, err := f.client.Get(f.server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Legacy Unchained")
}

func TestServer_ApproveFlow(t *testing.T) {
	f := newFixture(t, proposal, "The directory has a.txt. TERMINATE")

	status, response := f.call(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, response.Session.ID)
	assert.Equal(t, session.StateIdle, response.Session.State)

	status, response = f.call(t, http.MethodPost, "/api/session/tasks", taskRequest{Task: "list files in current directory"})
	require.Equal(t, http.StatusOK, status)
	sessionID := response.Session.ID
	require.NotEmpty(t, sessionID)
	assert.Equal(t, session.StateAwaitingApproval, response.Session.State)

	_, response = f.call(t, http.MethodGet, "/api/session", nil)
	assert.Equal(t, sessionID, response.Session.ID, "cookie keeps the session")
	require.NotNil(t, response.Session.Pending)
	assert.Equal(t, "\nimport os\nprint(os.listdir('.'))\n", response.Session.Pending.Snippet.Code)

	status, response = f.call(t, http.MethodPost, "/api/session/tasks", taskRequest{Task: "again"})
	assert.Equal(t, http.StatusConflict, status)
	assert.NotEmpty(t, response.Error)

	status, response = f.call(t, http.MethodPost, "/api/session/approve", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, response.Session.Pending)
	require.Len(t, response.Session.Transcript, 2)
	assert.Equal(t, "The directory has a.txt.", response.Session.Transcript[1].Content)
	require.Len(t, response.Session.Executions, 1)

	status, _ = f.call(t, http.MethodPost, "/api/session/approve", decisionRequest{Reason: "again"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestServer_DenyAndReset(t *testing.T) {
	f := newFixture(t, proposal)

	_, response := f.call(t, http.MethodPost, "/api/session/tasks", taskRequest{Task: "list files"})
	sessionID := response.Session.ID

	status, response := f.call(t, http.MethodPost, "/api/session/deny", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, session.StateTerminated, response.Session.State)
	assert.Nil(t, response.Session.Pending)
	assert.Len(t, response.Session.Transcript, 1)

	status, _ = f.call(t, http.MethodPost, "/api/session/deny", nil)
	assert.Equal(t, http.StatusOK, status)

	status, response = f.call(t, http.MethodPost, "/api/session/tasks", taskRequest{Task: " "})
	assert.Equal(t, http.StatusBadRequest, status)

	status, response = f.call(t, http.MethodPost, "/api/session/reset", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, sessionID, response.Session.ID)
	assert.Empty(t, response.Session.Transcript)
}

func TestServer_Events(t *testing.T) {
	f := newFixture(t, "Hello there. TERMINATE")
	_, response := f.call(t, http.MethodPost, "/api/session/reset", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	header := http.Header{}
	header.Set("Cookie", CookieName+"="+response.Session.ID)
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/session/events"
	ws, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	defer ws.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return f.srv.Hub().ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	status, _ := f.call(t, http.MethodPost, "/api/session/tasks", taskRequest{Task: "greet me"})
	require.Equal(t, http.StatusOK, status)

	_, data, err := ws.Read(ctx)
	require.NoError(t, err)
	msg := Message{}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, event.TopicTurnAppended, msg.Type)
	assert.Equal(t, response.Session.ID, msg.SessionID)
	assert.Contains(t, string(msg.Payload), "greet me")
}

func TestServer_ReadsDoNotCreateSessions(t *testing.T) {
	f := newFixture(t)
	anonymous := &http.Client{}

	for i := 0; i < 5; i++ {
		resp, err := anonymous.Get(f.server.URL + "/api/session")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Cookies())
		resp.Body.Close()
	}
	resp, err := anonymous.Get(f.server.URL + "/api/session/events")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/api/session", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "unknown"})
	resp, err = anonymous.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	sessions, err := f.registry.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)

	status, _ := f.call(t, http.MethodPost, "/api/session/reset", nil)
	require.Equal(t, http.StatusOK, status)
	sessions, err = f.registry.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}
