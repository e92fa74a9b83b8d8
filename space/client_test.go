package space_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/inspirepan/genie"
	"github.com/inspirepan/genie/space"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const (
	spaceID = "sp1"
	prefix  = "/api/2.0/genie/spaces/" + spaceID
)

const statementJSON = `{
  "statement_response": {
    "manifest": {"schema": {"columns": [
      {"name": "region", "type_name": "STRING"},
      {"name": "rev", "type_name": "LONG"},
      {"name": "share", "type_name": "DOUBLE"},
      {"name": "active", "type_name": "BOOLEAN"}
    ]}},
    "result": {"data_array": [
      ["west", "100", "0.7", "true"],
      ["east", "40", null, "false"]
    ]}
  }
}`

const queryMessage = `{
  "status": "COMPLETED",
  "attachments": [
    {"attachment_id": "att1", "query": {"query": "SELECT region, rev FROM t", "description": "Revenue by region"}}
  ]
}`

type fakeSpace struct {
	t        *testing.T
	mux      *http.ServeMux
	polls    atomic.Int32
	pending  int32
	started  atomic.Int32
	followed atomic.Int32
}

func newFakeSpace(t *testing.T, message, statement string) *httptest.Server {
	t.Helper()
	f := &fakeSpace{t: t, mux: http.NewServeMux(), pending: 1}
	f.mux.HandleFunc("POST "+prefix+"/start-conversation", func(w http.ResponseWriter, r *http.Request) {
		f.started.Add(1)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NotEmpty(t, gjson.GetBytes(body, "content").String())
		_, _ = io.WriteString(w, `{"conversation_id":"conv1","message_id":"msg1"}`)
	})
	f.mux.HandleFunc("POST "+prefix+"/conversations/{cid}/messages", func(w http.ResponseWriter, r *http.Request) {
		f.followed.Add(1)
		_, _ = io.WriteString(w, `{"id":"msg2","conversation_id":"`+r.PathValue("cid")+`"}`)
	})
	f.mux.HandleFunc("GET "+prefix+"/conversations/{cid}/messages/{mid}", func(w http.ResponseWriter, r *http.Request) {
		if f.polls.Add(1) <= f.pending {
			_, _ = io.WriteString(w, `{"status":"EXECUTING_QUERY"}`)
			return
		}
		_, _ = io.WriteString(w, message)
	})
	f.mux.HandleFunc("GET "+prefix+"/conversations/{cid}/messages/{mid}/attachments/{aid}/query-result", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "att1", r.PathValue("aid"))
		_, _ = io.WriteString(w, statement)
	})
	f.mux.HandleFunc("GET "+prefix, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"space_id":"sp1","title":"Sales","description":"Sales by region"}`)
	})
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server, opts ...space.Option) *space.Client {
	t.Helper()
	opts = append([]space.Option{
		space.WithHost(srv.URL),
		space.WithToken("tok"),
		space.WithPollInterval(time.Millisecond),
		space.WithPollTimeout(5 * time.Second),
	}, opts...)
	c, err := space.New(spaceID, opts...)
	require.NoError(t, err)
	return c
}

func TestNewValidation(t *testing.T) {
	t.Setenv("DATABRICKS_HOST", "")
	_, err := space.New("")
	assert.ErrorIs(t, err, space.ErrNoSpace)
	_, err = space.New("sp1")
	assert.ErrorIs(t, err, space.ErrNoHost)
}

func TestAskJSONRows(t *testing.T) {
	srv := newFakeSpace(t, queryMessage, statementJSON)
	c := newClient(t, srv)

	raw, err := c.Ask(context.Background(), "Which region had the most revenue?", "", genie.FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "conv1", raw.ConversationID)
	assert.Equal(t, "SELECT region, rev FROM t", raw.Query)
	require.NotNil(t, raw.Description)
	assert.Equal(t, "Revenue by region", *raw.Description)

	result, ok := raw.Result.(string)
	require.True(t, ok)
	assert.JSONEq(t, `[
		{"region":"west","rev":100,"share":0.7,"active":true},
		{"region":"east","rev":40,"share":null,"active":false}
	]`, result)
	assert.Equal(t, `{"region":"west","rev":100,"share":0.7,"active":true}`, gjson.Get(result, "0").Raw)
}

func TestAskNormalizes(t *testing.T) {
	srv := newFakeSpace(t, queryMessage, statementJSON)
	c := newClient(t, srv)
	tool, err := genie.NewQuestionTool(c)
	require.NoError(t, err)

	resp, err := tool.Ask(context.Background(), "Which region had the most revenue?", "")
	require.NoError(t, err)
	assert.Equal(t, "Revenue by region", resp.Text)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "west", resp.Data[0]["region"])
	assert.Equal(t, float64(100), resp.Data[0]["rev"])
}

func TestAskMarkdown(t *testing.T) {
	srv := newFakeSpace(t, queryMessage, statementJSON)
	c := newClient(t, srv, space.WithMaxRows(1))

	raw, err := c.Ask(context.Background(), "q", "", genie.FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t,
		"| region | rev | share | active |\n| --- | --- | --- | --- |\n| west | 100 | 0.7 | true |",
		raw.Result)
}

func TestAskEmptyResult(t *testing.T) {
	empty := `{"statement_response":{"manifest":{"schema":{"columns":[{"name":"region","type_name":"STRING"}]}},"result":{}}}`
	srv := newFakeSpace(t, queryMessage, empty)
	c := newClient(t, srv)

	raw, err := c.Ask(context.Background(), "q", "", genie.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw.Result)

	resp := genie.Normalize(context.Background(), raw)
	assert.Equal(t, "Revenue by region", resp.Text)
	assert.Nil(t, resp.Data)
}

func TestAskTextAttachment(t *testing.T) {
	msg := `{"status":"COMPLETED","attachments":[{"attachment_id":"a0","text":{"content":"I can only answer questions about sales."}}]}`
	srv := newFakeSpace(t, msg, statementJSON)
	c := newClient(t, srv)

	raw, err := c.Ask(context.Background(), "hello", "", genie.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "I can only answer questions about sales.", raw.Result)
	assert.Nil(t, raw.Description)
	assert.Empty(t, raw.Query)
	assert.Equal(t, "conv1", raw.ConversationID)
}

func TestAskContinuesConversation(t *testing.T) {
	var started, followed atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+prefix+"/start-conversation", func(w http.ResponseWriter, r *http.Request) {
		started.Add(1)
	})
	mux.HandleFunc("POST "+prefix+"/conversations/{cid}/messages", func(w http.ResponseWriter, r *http.Request) {
		followed.Add(1)
		assert.Equal(t, "abc", r.PathValue("cid"))
		_, _ = io.WriteString(w, `{"id":"msg2","conversation_id":"abc"}`)
	})
	mux.HandleFunc("GET "+prefix+"/conversations/abc/messages/msg2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"COMPLETED","attachments":[{"text":{"content":"ok"}}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := newClient(t, srv)

	raw, err := c.Ask(context.Background(), "and last year?", "abc", genie.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "abc", raw.ConversationID)
	assert.Equal(t, "ok", raw.Result)
	assert.Equal(t, int32(0), started.Load())
	assert.Equal(t, int32(1), followed.Load())
}

func TestAskFailedMessage(t *testing.T) {
	msg := `{"status":"FAILED","error":{"error":"warehouse stopped","type":"SQL_EXECUTION_EXCEPTION"}}`
	srv := newFakeSpace(t, msg, statementJSON)
	c := newClient(t, srv)

	_, err := c.Ask(context.Background(), "q", "", genie.FormatJSON)
	require.Error(t, err)
	assert.ErrorIs(t, err, space.ErrMessageFailed)
	var merr *space.MessageError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, "FAILED", merr.Status)
	assert.Equal(t, "warehouse stopped", merr.Message)
	assert.Equal(t, "conv1", merr.ConversationID)
}

func TestAskAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+prefix+"/start-conversation", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"error_code": "PERMISSION_DENIED", "message": "no access"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := newClient(t, srv)

	_, err := c.Ask(context.Background(), "q", "", genie.FormatJSON)
	var apiErr *space.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "PERMISSION_DENIED", apiErr.ErrorCode)
	assert.Equal(t, "no access", apiErr.Message)
}

func TestAskPollTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+prefix+"/start-conversation", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"conversation_id":"conv1","message_id":"msg1"}`)
	})
	mux.HandleFunc("GET "+prefix+"/conversations/conv1/messages/msg1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"EXECUTING_QUERY"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := newClient(t, srv, space.WithPollInterval(5*time.Millisecond), space.WithPollTimeout(50*time.Millisecond))

	_, err := c.Ask(context.Background(), "q", "", genie.FormatJSON)
	assert.ErrorIs(t, err, space.ErrPollTimeout)
}

func TestAskCanceled(t *testing.T) {
	srv := newFakeSpace(t, queryMessage, statementJSON)
	c := newClient(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Ask(ctx, "q", "", genie.FormatJSON)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDescribe(t *testing.T) {
	srv := newFakeSpace(t, queryMessage, statementJSON)
	c := newClient(t, srv)
	assert.Empty(t, c.Description())

	sp, err := c.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Sales", sp.Title)
	assert.Equal(t, "Sales by region", c.Description())

	tool, err := genie.NewQuestionTool(c)
	require.NoError(t, err)
	assert.Equal(t, "Sales by region", tool.Description())
}

func TestWithDescription(t *testing.T) {
	c, err := space.New(spaceID, space.WithHost("example.cloud.databricks.com"), space.WithDescription("fixed"))
	require.NoError(t, err)
	assert.Equal(t, "fixed", c.Description())
}
