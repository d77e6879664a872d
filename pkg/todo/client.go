package todo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const DefaultBaseURL = "https://jsonplaceholder.typicode.com"

// HTTPClient can perform any http request
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Todo is the remote object as returned by the API. Numbers are kept as json.Number
// so the object re-encodes verbatim.
type Todo map[string]any

// Client fetches todos from a jsonplaceholder compatible REST API.
type Client struct {
	client  HTTPClient
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a new Client with a default http client
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return NewClientWithHTTPClient(baseURL, logger, &http.Client{})
}

// NewClientWithHTTPClient creates a new Client. The httpClient must implement the HTTPClient interface
func NewClientWithHTTPClient(baseURL string, logger *slog.Logger, httpClient HTTPClient) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client:  httpClient,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With("component", "todo_client"),
	}
}

// URL returns the address Get requests for the given id.
func (c *Client) URL(id string) string {
	return c.baseURL + "/todos/" + url.PathEscape(id)
}

// Get issues a single GET for the todo with the given id.
func (c *Client) Get(ctx context.Context, id string) (Todo, error) {
	target := c.URL(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		c.logger.Error("error creating GET request", "error", err)
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("error sending GET request", "url", target, "error", err)
		return nil, fmt.Errorf("fetching todo %q: %w", id, err)
	}

	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.logger.Error("error closing the response body", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("GET request failed with status code", "url", target, "status", resp.StatusCode)
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: target}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("error reading response", "error", err)
		return nil, fmt.Errorf("reading todo %q: %w", id, err)
	}

	todo, err := decode(b)
	if err != nil {
		c.logger.Error("error unmarshaling json response", "error", err)
		return nil, &MalformedTodoError{URL: target, Err: err}
	}

	c.logger.Debug("fetched todo", "url", target)
	return todo, nil
}

func decode(b []byte) (Todo, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var todo Todo
	if err := dec.Decode(&todo); err != nil {
		return nil, err
	}
	if todo == nil {
		return nil, errors.New("expected a JSON object, got null")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON object")
	}
	return todo, nil
}
