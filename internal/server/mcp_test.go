package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"mcp-food-log/internal/config"
)

// mcpClient speaks JSON-RPC to the SSE transport: requests are POSTed to the
// advertised endpoint and answers arrive on the event stream.
type mcpClient struct {
	http     *http.Client
	stream   *bufio.Reader
	endpoint string
}

func (c *mcpClient) nextEvent(t *testing.T) (event, data string) {
	t.Helper()
	for {
		line, err := c.stream.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if event != "" || data != "" {
				return event, data
			}
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func (c *mcpClient) post(t *testing.T, msg map[string]interface{}) {
	t.Helper()
	msg["jsonrpc"] = "2.0"
	body, err := json.Marshal(msg)
	require.NoError(t, err)

	resp, err := c.http.Post(c.endpoint, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func (c *mcpClient) call(t *testing.T, id int, method protocol.Method, params interface{}) gjson.Result {
	t.Helper()
	c.post(t, map[string]interface{}{"id": id, "method": method, "params": params})

	event, data := c.nextEvent(t)
	require.Equal(t, "message", event)
	res := gjson.Parse(data)
	require.Equal(t, int64(id), res.Get("id").Int(), data)
	require.False(t, res.Get("error").Exists(), data)
	return res.Get("result")
}

func TestMCPOverSSE(t *testing.T) {
	off := fakeOFF(t, map[string]string{
		"banana": `{"energy-kcal_100g": 89}`,
	})
	_, ts := newTestServerWith(t, off)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(ts.URL + config.SSEPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	c := &mcpClient{http: client, stream: bufio.NewReader(resp.Body)}
	event, data := c.nextEvent(t)
	require.Equal(t, "endpoint", event)
	u, err := url.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, config.MessagePath, u.Path)
	require.NotEmpty(t, u.Query().Get("sessionID"))
	c.endpoint = ts.URL + u.Path + "?" + u.RawQuery

	hello := c.call(t, 1, protocol.Initialize, map[string]interface{}{
		"protocolVersion": protocol.Version,
		"clientInfo":      map[string]interface{}{"name": "test", "version": "0"},
		"capabilities":    map[string]interface{}{},
	})
	assert.Equal(t, "food-log", hello.Get("serverInfo.name").String())
	assert.Equal(t, Version, hello.Get("serverInfo.version").String())
	c.post(t, map[string]interface{}{"method": protocol.NotificationInitialized})

	list := c.call(t, 2, protocol.ToolsList, map[string]interface{}{})
	var names []string
	for _, name := range list.Get("tools.#.name").Array() {
		names = append(names, name.String())
	}
	assert.ElementsMatch(t, []string{
		"start_session", "log_photo", "add_item", "get_items",
		"get_totals", "resolve_mass", "list_portions", "end_session",
	}, names)
	addItem := list.Get(`tools.#(name=="add_item").inputSchema`)
	assert.Equal(t, "object", addItem.Get("type").String())
	assert.Equal(t, `["session_id","food"]`, addItem.Get("required").Raw)

	started := c.call(t, 3, protocol.ToolsCall, map[string]interface{}{"name": "start_session", "arguments": map[string]interface{}{}})
	id := gjson.Get(started.Get("content.0.text").String(), "session_id").String()
	require.NotEmpty(t, id)

	added := c.call(t, 4, protocol.ToolsCall, map[string]interface{}{
		"name":      "add_item",
		"arguments": map[string]interface{}{"session_id": id, "food": "banana", "unit": "g", "quantity": "200g"},
	})
	text := added.Get("content.0.text").String()
	assert.Equal(t, 200.0, gjson.Get(text, "step.quantity").Float())
	assert.InDelta(t, 17800.0, gjson.Get(text, "totals.calories").Float(), 1e-9)

	// tool failures come back as error results, not protocol errors
	missing := c.call(t, 5, protocol.ToolsCall, map[string]interface{}{
		"name":      "get_items",
		"arguments": map[string]interface{}{"session_id": "missing"},
	})
	assert.True(t, missing.Get("isError").Bool())
	assert.NotEmpty(t, missing.Get("content.0.text").String())
}
