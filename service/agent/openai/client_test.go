package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/unchained/service/agent"
)

func TestClient_Reply(t *testing.T) {
	type testCase struct {
		name        string
		status      []int
		body        string
		maxRetries  int
		expected    string
		expectErr   bool
		expectCalls int32
	}

	tests := []testCase{
		{
			name:        "answer",
			status:      []int{http.StatusOK},
			body:        `{"choices":[{"message":{"role":"assistant","content":"Hello TERMINATE"}}]}`,
			expected:    "Hello TERMINATE",
			expectCalls: 1,
		},
		{
			name:        "retry on server error",
			status:      []int{http.StatusBadGateway, http.StatusOK},
			body:        `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`,
			maxRetries:  1,
			expected:    "ok",
			expectCalls: 2,
		},
		{
			name:        "client error not retried",
			status:      []int{http.StatusBadRequest},
			body:        `{"error":{"message":"bad"}}`,
			maxRetries:  2,
			expectErr:   true,
			expectCalls: 1,
		},
		{
			name:        "empty choices",
			status:      []int{http.StatusOK},
			body:        `{"choices":[]}`,
			expectErr:   true,
			expectCalls: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				assert.Equal(t, "/v1/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
				var request chatRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
				assert.Equal(t, "phi3", request.Model)
				if assert.Len(t, request.Messages, 2) {
					assert.Equal(t, "system", request.Messages[0].Role)
					assert.Equal(t, "list files", request.Messages[1].Content)
				}
				status := tc.status[len(tc.status)-1]
				if int(n) <= len(tc.status) {
					status = tc.status[n-1]
				}
				w.WriteHeader(status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := New(Config{BaseURL: server.URL + "/v1/", APIKey: "secret", Model: "phi3", MaxRetries: tc.maxRetries}, nil)
			reply, err := client.Reply(context.Background(), []agent.Message{
				{Role: agent.RoleSystem, Content: agent.DefaultSystemPrompt},
				{Role: agent.RoleUser, Content: "list files"},
			})
			assert.Equal(t, tc.expectCalls, atomic.LoadInt32(&calls))
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, reply)
		})
	}
}

func TestClient_Ping(t *testing.T) {
	type testCase struct {
		name      string
		status    int
		body      string
		expectErr bool
	}

	tests := []testCase{
		{name: "model listed", status: http.StatusOK, body: `{"data":[{"id":"phi3"}]}`},
		{name: "model not listed", status: http.StatusOK, body: `{"data":[{"id":"llama3"}]}`},
		{name: "listing not supported", status: http.StatusNotFound},
		{name: "rejected key", status: http.StatusUnauthorized, expectErr: true},
		{name: "server error", status: http.StatusInternalServerError, expectErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/v1/models", r.URL.Path)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := New(Config{BaseURL: server.URL + "/v1/", APIKey: "secret", Model: "phi3"}, nil)
			err := client.Ping(context.Background())
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		baseURL := server.URL + "/v1"
		server.Close()
		assert.Error(t, New(Config{BaseURL: baseURL}, nil).Ping(context.Background()))
	})
}
