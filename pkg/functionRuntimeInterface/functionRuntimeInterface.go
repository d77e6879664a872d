package functionRuntimeInterface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

const (
	// maxLogSize caps each captured log stream of a single execution.
	maxLogSize      = 5 * 1024 * 1024
	truncatedNotice = "\nLog file has been truncated to 5MB."
)

// Handler is the signature of a user function.
type Handler func(ctx context.Context, c *Context) (*Response, error)

type Request struct {
	ID        string
	Payload   string
	Variables map[string]string
	Headers   map[string]string
}

type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IsJSON reports whether Body holds a JSON document.
func (r *Response) IsJSON() bool {
	return strings.HasPrefix(r.ContentType, "application/json") && json.Valid(r.Body)
}

// ResponseBuilder is handed to the function as Context.Res.
type ResponseBuilder struct{}

// JSON encodes v as the response body. HTML characters and non-ASCII text are left as is.
func (ResponseBuilder) JSON(v any) (*Response, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	return &Response{
		StatusCode:  http.StatusOK,
		ContentType: "application/json; charset=utf-8",
		Body:        bytes.TrimSuffix(buf.Bytes(), []byte("\n")),
	}, nil
}

func (ResponseBuilder) Send(text string) *Response {
	return &Response{
		StatusCode:  http.StatusOK,
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(text),
	}
}

func (ResponseBuilder) Empty() *Response {
	return &Response{StatusCode: http.StatusNoContent}
}

// Context is what a function receives for one execution.
type Context struct {
	Req *Request
	Res *ResponseBuilder

	logger *slog.Logger
	stdout logBuffer
	stderr logBuffer
}

func NewContext(req *Request, logger *slog.Logger) *Context {
	return &Context{
		Req:    req,
		Res:    &ResponseBuilder{},
		logger: logger,
	}
}

// Log appends one line to the execution's stdout.
func (c *Context) Log(args ...any) {
	line := formatLine(args)
	c.stdout.writeLine(line)
	c.logger.Debug("function log", "execution_id", c.Req.ID, "line", line)
}

// Error appends one line to the execution's stderr.
func (c *Context) Error(args ...any) {
	line := formatLine(args)
	c.stderr.writeLine(line)
	c.logger.Debug("function error", "execution_id", c.Req.ID, "line", line)
}

func (c *Context) Logs() string {
	return c.stdout.String()
}

func (c *Context) Errors() string {
	return c.stderr.String()
}

func formatLine(args []any) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			parts = append(parts, v)
		case error:
			parts = append(parts, v.Error())
		case fmt.Stringer:
			parts = append(parts, v.String())
		default:
			b, err := json.Marshal(v)
			if err != nil {
				parts = append(parts, fmt.Sprint(v))
				continue
			}
			parts = append(parts, string(b))
		}
	}
	return strings.Join(parts, " ")
}

type logBuffer struct {
	mu        sync.Mutex
	buf       strings.Builder
	truncated bool
}

func (b *logBuffer) writeLine(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return
	}
	line += "\n"
	if remaining := maxLogSize - b.buf.Len(); len(line) > remaining {
		b.buf.WriteString(line[:remaining])
		b.buf.WriteString(truncatedNotice)
		b.truncated = true
		return
	}
	b.buf.WriteString(line)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
