package functionRuntimeInterface

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestContext_LogAndError(t *testing.T) {
	c := NewContext(&Request{ID: "exec-1"}, testLogger())

	c.Log("Sample Log")
	c.Log("value", 42, map[string]int{"a": 1})
	c.Error(errors.New("boom"))

	assert.Equal(t, "Sample Log\nvalue 42 {\"a\":1}\n", c.Logs())
	assert.Equal(t, "boom\n", c.Errors())
}

func TestContext_LogTruncates(t *testing.T) {
	c := NewContext(&Request{ID: "exec-1"}, testLogger())

	line := strings.Repeat("A", 1023)
	for i := 0; i < 5*1024+10; i++ {
		c.Log(line)
	}

	logs := c.Logs()
	assert.True(t, strings.HasSuffix(logs, truncatedNotice))
	assert.Equal(t, maxLogSize+len(truncatedNotice), len(logs))
	assert.Equal(t, 1, strings.Count(logs, "truncated"))
	assert.Empty(t, c.Errors())
}

func TestResponseBuilder_JSON(t *testing.T) {
	res, err := ResponseBuilder{}.JSON(map[string]any{"message": "Hello Open Runtimes 👋", "html": "<b>"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, res.IsJSON())
	assert.Equal(t, `{"html":"<b>","message":"Hello Open Runtimes 👋"}`, string(res.Body))
}

func TestResponseBuilder_JSONUnsupported(t *testing.T) {
	_, err := ResponseBuilder{}.JSON(make(chan int))
	assert.Error(t, err)
}

func TestResponseBuilder_SendAndEmpty(t *testing.T) {
	res := ResponseBuilder{}.Send(`{"looks":"like json"}`)
	assert.False(t, res.IsJSON())
	assert.Equal(t, "text/plain; charset=utf-8", res.ContentType)

	empty := ResponseBuilder{}.Empty()
	assert.Equal(t, http.StatusNoContent, empty.StatusCode)
	assert.Empty(t, empty.Body)
}
