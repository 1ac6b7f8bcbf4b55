package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func messageServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body["model"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_1",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": text},
			},
			"model":       "claude-test",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 12, "output_tokens": 4},
		})
	}))
}

func TestSDKClient_CreateMessage(t *testing.T) {
	ts := messageServer(t, `{"index": 1}`)
	defer ts.Close()

	c := NewClient("test-key", WithBaseURL(ts.URL), WithMaxRetries(0))
	resp, err := c.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-test",
		MaxTokens: 64,
		System:    "pick one",
		Prompt:    "candidates",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_1", resp.ID)
	assert.Equal(t, `{"index": 1}`, resp.Text)
	assert.Equal(t, int64(12), resp.Usage.InputTokens)
}

func TestSDKClient_CreateMessage_Error(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)) //nolint:errcheck
	}))
	defer ts.Close()

	c := NewClient("test-key", WithBaseURL(ts.URL), WithMaxRetries(0))
	_, err := c.CreateMessage(context.Background(), MessageRequest{Model: "claude-test", MaxTokens: 8, Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
}

func TestCompleter(t *testing.T) {
	mc := &MockClient{}
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req MessageRequest) bool {
		return req.Model == DefaultModel && req.Prompt == "hello" && *req.Temperature == 0
	})).Return(&MessageResponse{Text: "world"}, nil)

	got, err := NewCompleter(mc, "").Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "world", got)
	mc.AssertExpectations(t)
}

func TestCompleter_Failures(t *testing.T) {
	mc := &MockClient{}
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, eris.New("down")).Once()
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(&MessageResponse{}, nil).Once()

	c := NewCompleter(mc, "claude-test")
	_, err := c.Complete(context.Background(), "a")
	assert.Error(t, err)
	_, err = c.Complete(context.Background(), "b")
	assert.EqualError(t, err, "anthropic: empty completion")
}
