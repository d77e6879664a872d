package functionRuntimeInterface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/3s-rg-codes/openruntimes-go/pkg/stats"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// HTTPClient can perform any http request
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is a completed execution as seen by a caller.
type Result struct {
	ExecutionID string
	Response    json.RawMessage
	Stdout      string
	Stderr      string
}

// Client calls a runtime over the HTTP executor protocol.
type Client struct {
	client  HTTPClient
	address string
	secret  string
}

func NewClient(address, secret string) *Client {
	return NewClientWithHTTPClient(address, secret, &http.Client{})
}

func NewClientWithHTTPClient(address, secret string, httpClient HTTPClient) *Client {
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}
	return &Client{
		client:  httpClient,
		address: strings.TrimSuffix(address, "/"),
		secret:  secret,
	}
}

// Execute runs the function once. A failed execution is returned as *ExecutionFailedError
// together with the partial Result carrying its logs.
func (c *Client) Execute(ctx context.Context, payload string, variables map[string]string) (*Result, error) {
	if variables == nil {
		variables = map[string]string{}
	}
	body, err := json.Marshal(ExecutionRequest{
		Payload:   payload,
		Variables: variables,
		Headers:   map[string]string{},
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusInternalServerError:
	case http.StatusUnauthorized:
		return nil, &UnauthorizedError{}
	default:
		return nil, &UnexpectedStatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var er ExecutionResponse
	if err := json.Unmarshal(b, &er); err != nil {
		return nil, fmt.Errorf("decoding execution response: %w", err)
	}
	result := &Result{
		ExecutionID: resp.Header.Get(ExecutionIDHeader),
		Response:    er.Response,
		Stdout:      er.Stdout,
		Stderr:      er.Stderr,
	}
	if resp.StatusCode == http.StatusInternalServerError {
		return result, &ExecutionFailedError{ExecutionID: result.ExecutionID, Stderr: er.Stderr}
	}
	return result, nil
}

// Stats fetches the runtime's statistics snapshot.
func (c *Client) Stats(ctx context.Context) (stats.Snapshot, error) {
	var s stats.Snapshot

	resp, err := c.do(ctx, http.MethodGet, StatsPath, nil)
	if err != nil {
		return s, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return s, &UnauthorizedError{}
	default:
		b, _ := io.ReadAll(resp.Body)
		return s, &UnexpectedStatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return s, fmt.Errorf("decoding stats: %w", err)
	}
	return s, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.address+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		req.Header.Set(ChallengeHeader, c.secret)
	}
	return c.client.Do(req)
}

// GRPCClient calls a runtime over its gRPC surface.
type GRPCClient struct {
	conn   grpc.ClientConnInterface
	secret string
}

func NewGRPCClient(conn grpc.ClientConnInterface, secret string) *GRPCClient {
	return &GRPCClient{conn: conn, secret: secret}
}

func (c *GRPCClient) Execute(ctx context.Context, payload string, variables map[string]string) (*Result, error) {
	vars := make(map[string]any, len(variables))
	for k, v := range variables {
		vars[k] = v
	}
	in, err := structpb.NewStruct(map[string]any{
		"payload":   payload,
		"variables": vars,
		"headers":   map[string]any{},
	})
	if err != nil {
		return nil, err
	}

	if c.secret != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, ChallengeHeader, c.secret)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, ExecuteMethod, in, out); err != nil {
		return nil, err
	}

	fields := out.GetFields()
	response, err := protojson.Marshal(fields["response"])
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	return &Result{
		ExecutionID: fields["executionId"].GetStringValue(),
		Response:    response,
		Stdout:      fields["stdout"].GetStringValue(),
		Stderr:      fields["stderr"].GetStringValue(),
	}, nil
}
