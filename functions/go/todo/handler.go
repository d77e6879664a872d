package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	fri "github.com/3s-rg-codes/openruntimes-go/pkg/functionRuntimeInterface"
	"github.com/3s-rg-codes/openruntimes-go/pkg/todo"
)

const (
	variableKey   = "test-variable"
	defaultTodoID = "1"
	message       = "Hello Open Runtimes 👋"
)

type todoGetter interface {
	Get(ctx context.Context, id string) (todo.Todo, error)
}

// output always carries exactly these four keys.
type output struct {
	IsTest   bool      `json:"isTest"`
	Message  string    `json:"message"`
	Variable string    `json:"variable"`
	Todo     todo.Todo `json:"todo"`
}

type InvalidTodoIDError struct {
	Raw string
}

func (e *InvalidTodoIDError) Error() string {
	return fmt.Sprintf("id must be a string or a number, got %s", e.Raw)
}

type todoFunction struct {
	todos todoGetter
}

func (f *todoFunction) Handle(ctx context.Context, c *fri.Context) (*fri.Response, error) {
	id, err := todoID(c.Req.Payload)
	if err != nil {
		return nil, err
	}

	variable := c.Req.Variables[variableKey]

	item, err := f.todos.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.Log("Sample Log")

	return c.Res.JSON(output{
		IsTest:   true,
		Message:  message,
		Variable: variable,
		Todo:     item,
	})
}

// todoID reads the optional id field of the payload. An empty payload is an empty object.
func todoID(payload string) (string, error) {
	if strings.TrimSpace(payload) == "" {
		payload = "{}"
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return "", fmt.Errorf("malformed payload: %w", err)
	}

	raw, ok := fields["id"]
	if !ok {
		return defaultTodoID, nil
	}
	raw = bytes.TrimSpace(raw)

	switch {
	case bytes.Equal(raw, []byte("null")):
		return defaultTodoID, nil
	case len(raw) > 0 && raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("malformed id: %w", err)
		}
		return s, nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", &InvalidTodoIDError{Raw: string(raw)}
		}
		return n.String(), nil
	}
}
