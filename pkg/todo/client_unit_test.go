//go:build unit

package todo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockHTTPClient struct {
	DoFunc func(req *http.Request) (*http.Response, error)
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if m.DoFunc != nil {
		return m.DoFunc(req)
	}
	return nil, nil
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

// Helper function to create mock responses
func NewMockResponse(statusCode int, body string) (*http.Response, *trackingBody) {
	tb := &trackingBody{Reader: bytes.NewBufferString(body)}
	return &http.Response{
		StatusCode: statusCode,
		Body:       tb,
		Header:     make(http.Header),
	}, tb
}

func TestClient_Get_Success(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	resp, body := NewMockResponse(http.StatusOK, `{"id":5,"title":"t","completed":false}`)
	mockClient := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, http.MethodGet, req.Method)
			assert.Equal(t, "https://jsonplaceholder.typicode.com/todos/5", req.URL.String())
			return resp, nil
		},
	}

	client := NewClientWithHTTPClient("", logger, mockClient)
	todo, err := client.Get(context.Background(), "5")

	require.NoError(t, err)
	assert.Equal(t, Todo{"id": json.Number("5"), "title": "t", "completed": false}, todo)
	assert.True(t, body.closed)
}

func TestClient_Get_NetworkError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	mockClient := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return nil, assert.AnError
		},
	}

	client := NewClientWithHTTPClient("", logger, mockClient)
	todo, err := client.Get(context.Background(), "1")

	require.Error(t, err)
	assert.Nil(t, todo)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestClient_Get_ServerError_ClosesBody(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	resp, body := NewMockResponse(http.StatusInternalServerError, "boom")
	mockClient := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return resp, nil
		},
	}

	client := NewClientWithHTTPClient("", logger, mockClient)
	_, err := client.Get(context.Background(), "1")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.True(t, body.closed)
}

func TestClient_Get_MalformedBody_ClosesBody(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	resp, body := NewMockResponse(http.StatusOK, `{"id":`)
	mockClient := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return resp, nil
		},
	}

	client := NewClientWithHTTPClient("", logger, mockClient)
	_, err := client.Get(context.Background(), "1")

	var malformed *MalformedTodoError
	require.True(t, errors.As(err, &malformed))
	assert.True(t, body.closed)
}
