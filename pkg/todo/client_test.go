package todo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewClient(server.URL, logger), server
}

func TestClient_Get(t *testing.T) {
	var gotPath string
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"userId":1,"id":7,"title":"delectus aut autem","completed":false}`)
	})

	todo, err := client.Get(context.Background(), "7")
	require.NoError(t, err)

	assert.Equal(t, "/todos/7", gotPath)
	assert.Equal(t, json.Number("7"), todo["id"])
	assert.Equal(t, "delectus aut autem", todo["title"])

	encoded, err := json.Marshal(todo)
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":1,"id":7,"title":"delectus aut autem","completed":false}`, string(encoded))
}

func TestClient_Get_NotFound(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{}`)
	})

	_, err := client.Get(context.Background(), "999")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Contains(t, statusErr.URL, "/todos/999")
}

func TestClient_Get_RejectsNonObjects(t *testing.T) {
	for name, body := range map[string]string{
		"array":    `[{"id":1}]`,
		"null":     `null`,
		"trailing": `{"id":1} {"id":2}`,
		"text":     `not json`,
	} {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			})

			_, err := client.Get(context.Background(), "1")

			var malformed *MalformedTodoError
			assert.True(t, errors.As(err, &malformed), "got %v", err)
		})
	}
}

func TestClient_Get_EscapesID(t *testing.T) {
	var gotRawPath string
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotRawPath = r.URL.EscapedPath()
		fmt.Fprint(w, `{}`)
	})

	_, err := client.Get(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "/todos/a%2Fb", gotRawPath)
}

func TestClient_Get_ContextCancelled(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClient_TrimsBaseURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	client := NewClient("http://example.test/", logger)
	assert.Equal(t, "http://example.test/todos/1", client.URL("1"))
	assert.Equal(t, DefaultBaseURL+"/todos/1", NewClient("", logger).URL("1"))
}
