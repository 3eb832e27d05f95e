package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatga-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
		}
	}))
}

func deltaLine(content string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`, content)
}

func TestStreamChat(t *testing.T) {
	server := newStreamServer(t, []string{
		deltaLine("你"),
		"",
		deltaLine("好"),
		`data: {"choices":[{"delta":{}}]}`, // 空增量应被跳过
		"data: [DONE]",
		deltaLine("不应出现"), // [DONE] 之后的内容被忽略
	})
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL, Model: "test-model"})

	var deltas []string
	err := client.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"你", "好"}, deltas)
}

func TestStreamChat_DeltaErrorAborts(t *testing.T) {
	server := newStreamServer(t, []string{
		deltaLine("a"),
		deltaLine("b"),
		"data: [DONE]",
	})
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL, Model: "test-model"})

	abort := errors.New("connection gone")
	count := 0
	err := client.StreamChat(context.Background(), nil, func(delta string) error {
		count++
		return abort
	})
	assert.ErrorIs(t, err, abort)
	assert.Equal(t, 1, count)
}

func TestStreamChat_Non200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL, Model: "test-model"})

	err := client.StreamChat(context.Background(), nil, func(delta string) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-200")
}
