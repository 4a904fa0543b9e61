package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httputil "github.com/stravabot/server/pkg/infrastructure/http"
)

func TestClient_Send(t *testing.T) {
	var got sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer server.Close()

	c := NewClient("TOKEN", WithBaseURL(server.URL))
	require.NoError(t, c.Send(context.Background(), "42", "halo"))
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "halo", got.Text)
}

func TestClient_SendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	err := NewClient("SECRET", WithBaseURL(server.URL)).Send(context.Background(), "42", "halo")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httputil.StatusCode(err))
	assert.Contains(t, err.Error(), "chat not found")
	assert.NotContains(t, err.Error(), "SECRET")
}

func TestClient_NoToken(t *testing.T) {
	err := NewClient("").Send(context.Background(), "42", "halo")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestClient_SplitsLongMessages(t *testing.T) {
	var texts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		texts = append(texts, req.Text)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	long := strings.Repeat("a", 3000) + "\n" + strings.Repeat("b", 3000)
	require.NoError(t, NewClient("T", WithBaseURL(server.URL)).Send(context.Background(), "42", long))
	require.Len(t, texts, 2)
	assert.Equal(t, strings.Repeat("a", 3000)+"\n", texts[0])
	assert.Equal(t, strings.Repeat("b", 3000), texts[1])
}

func TestMessage_Command(t *testing.T) {
	tests := map[string]string{
		"/start":              "/start",
		"/Analisis@StravaBot": "/analisis",
		"/connect now":        "/connect",
		"hello":               "",
		"  /status ":          "/status",
	}
	for text, want := range tests {
		m := &Message{Text: text}
		assert.Equal(t, want, m.Command(), text)
	}

	m := &Message{Chat: Chat{ID: -100123}}
	assert.Equal(t, "-100123", m.ChatID())
}
