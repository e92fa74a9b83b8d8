// Package space is a client for a Databricks Genie space. It implements
// genie.Asker and genie.Describer over the Genie conversation REST API.
package space

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/inspirepan/genie"
	"github.com/inspirepan/genie/providers/base"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"goa.design/clue/log"
	"golang.org/x/time/rate"
)

const (
	DefaultPollInterval = time.Second
	DefaultPollTimeout  = 5 * time.Minute
)

// Message statuses reported by the conversation API.
const (
	StatusCompleted          = "COMPLETED"
	StatusFailed             = "FAILED"
	StatusCancelled          = "CANCELLED"
	StatusQueryResultExpired = "QUERY_RESULT_EXPIRED"
)

// Config configures a Client.
type Config struct {
	base.Config

	PollInterval time.Duration
	PollTimeout  time.Duration
	// MaxRows caps the rows rendered from a query result. Zero means no cap.
	MaxRows     int
	Description string
	HTTPClient  *http.Client
}

// Option is a functional option for Client.
type Option func(*Config)

// WithHost sets the workspace host, e.g. https://adb-123.azuredatabricks.net.
func WithHost(host string) Option {
	return func(c *Config) { c.BaseURL = host }
}

// WithToken sets the personal access or OAuth token.
func WithToken(token string) Option {
	return func(c *Config) { c.APIKey = token }
}

// WithDebug enables JSONL debug logging to the specified file path.
func WithDebug(path string) Option {
	return func(c *Config) { c.DebugPath = path }
}

// WithPollInterval sets how often a pending message is polled.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) { c.PollInterval = d }
}

// WithPollTimeout bounds how long Ask waits for a message to complete.
func WithPollTimeout(d time.Duration) Option {
	return func(c *Config) { c.PollTimeout = d }
}

// WithMaxRows caps the number of rows rendered from a query result.
func WithMaxRows(n int) Option {
	return func(c *Config) { c.MaxRows = n }
}

// WithDescription sets the description returned by Description without
// fetching the space.
func WithDescription(desc string) Option {
	return func(c *Config) { c.Description = desc }
}

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// Space is the metadata of a Genie space.
type Space struct {
	ID          string
	Title       string
	Description string
}

// Client talks to one Genie space.
type Client struct {
	spaceID string
	host    string
	cfg     Config
	http    *http.Client

	mu          sync.Mutex
	description string
}

var (
	_ genie.Asker     = (*Client)(nil)
	_ genie.Describer = (*Client)(nil)
)

// New creates a Client for the space spaceID.
// It reads DATABRICKS_HOST and DATABRICKS_TOKEN from environment if not explicitly set.
func New(spaceID string, opts ...Option) (*Client, error) {
	if spaceID == "" {
		return nil, ErrNoSpace
	}
	cfg := Config{PollInterval: DefaultPollInterval, PollTimeout: DefaultPollTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	base.ApplyEnvDefaults(&cfg.Config, base.EnvDatabricksToken, base.EnvDatabricksHost)
	host := base.HostURL(cfg.BaseURL)
	if host == "" {
		return nil, ErrNoHost
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		spaceID:     spaceID,
		host:        host,
		cfg:         cfg,
		http:        hc,
		description: cfg.Description,
	}, nil
}

// SpaceID returns the id of the space.
func (c *Client) SpaceID() string { return c.spaceID }

// Description returns the space description, "" until Describe has
// succeeded or WithDescription was given.
func (c *Client) Description() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.description
}

// Describe fetches the space metadata and caches its description.
func (c *Client) Describe(ctx context.Context) (Space, error) {
	res, err := c.do(ctx, http.MethodGet, c.spacePath(""), nil)
	if err != nil {
		return Space{}, err
	}
	sp := Space{
		ID:          c.spaceID,
		Title:       res.Get("title").String(),
		Description: res.Get("description").String(),
	}
	if id := res.Get("space_id").String(); id != "" {
		sp.ID = id
	}
	c.mu.Lock()
	c.description = sp.Description
	c.mu.Unlock()
	return sp, nil
}

// Ask sends question to the space, continuing conversationID when it is not
// empty, and waits for the answer. A query answer carries the rendered rows,
// the SQL and its description; a text answer carries only the text.
func (c *Client) Ask(ctx context.Context, question, conversationID string, format genie.ResultFormat) (genie.RawResponse, error) {
	body, err := sjson.SetBytes(nil, "content", question)
	if err != nil {
		return genie.RawResponse{}, err
	}

	var res gjson.Result
	if conversationID == "" {
		res, err = c.do(ctx, http.MethodPost, c.spacePath("/start-conversation"), body)
	} else {
		res, err = c.do(ctx, http.MethodPost, c.spacePath("/conversations/"+url.PathEscape(conversationID)+"/messages"), body)
	}
	if err != nil {
		return genie.RawResponse{}, err
	}

	messageID := firstString(res, "message_id", "message.id", "id")
	if cid := firstString(res, "conversation_id", "conversation.id", "message.conversation_id"); cid != "" {
		conversationID = cid
	}
	if messageID == "" || conversationID == "" {
		return genie.RawResponse{}, fmt.Errorf("space: response has no message or conversation id: %s", res.Raw)
	}
	log.Debug(ctx,
		log.KV{K: "msg", V: "genie message sent"},
		log.KV{K: "conversation_id", V: conversationID},
		log.KV{K: "message_id", V: messageID},
	)

	msg, err := c.wait(ctx, conversationID, messageID)
	if err != nil {
		return genie.RawResponse{}, err
	}

	raw := genie.RawResponse{ConversationID: conversationID}
	var text *gjson.Result
	for _, att := range msg.Get("attachments").Array() {
		if q := att.Get("query"); q.Exists() {
			attachmentID := firstString(att, "attachment_id", "id")
			result, err := c.queryResult(ctx, conversationID, messageID, attachmentID, format)
			if err != nil {
				return genie.RawResponse{}, err
			}
			desc := q.Get("description").String()
			raw.Result = result
			raw.Query = q.Get("query").String()
			raw.Description = &desc
			return raw, nil
		}
		if t := att.Get("text.content"); t.Exists() && text == nil {
			text = &t
		}
	}
	if text != nil {
		raw.Result = text.String()
	}
	return raw, nil
}

// wait polls the message until it reaches a terminal status.
func (c *Client) wait(ctx context.Context, conversationID, messageID string) (gjson.Result, error) {
	pollCtx := ctx
	if c.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, c.cfg.PollTimeout)
		defer cancel()
	}
	limiter := rate.NewLimiter(rate.Every(c.cfg.PollInterval), 1)
	path := c.spacePath("/conversations/" + url.PathEscape(conversationID) + "/messages/" + url.PathEscape(messageID))

	for {
		if err := limiter.Wait(pollCtx); err != nil {
			return gjson.Result{}, c.pollErr(ctx, err)
		}
		msg, err := c.do(pollCtx, http.MethodGet, path, nil)
		if err != nil {
			if ctx.Err() == nil && pollCtx.Err() != nil {
				return gjson.Result{}, c.pollErr(ctx, err)
			}
			return gjson.Result{}, err
		}
		status := msg.Get("status").String()
		switch status {
		case StatusCompleted:
			return msg, nil
		case StatusFailed, StatusCancelled, StatusQueryResultExpired:
			return gjson.Result{}, &MessageError{
				ConversationID: conversationID,
				MessageID:      messageID,
				Status:         status,
				Message:        firstString(msg, "error.error", "error.message", "error"),
			}
		}
		log.Debug(ctx,
			log.KV{K: "msg", V: "genie message pending"},
			log.KV{K: "message_id", V: messageID},
			log.KV{K: "status", V: status},
		)
	}
}

// pollErr maps a failure of the polling context: the caller's cancellation is
// returned as is, the poll deadline becomes ErrPollTimeout.
func (c *Client) pollErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w after %s: %v", ErrPollTimeout, c.cfg.PollTimeout, err)
}

func (c *Client) queryResult(ctx context.Context, conversationID, messageID, attachmentID string, format genie.ResultFormat) (string, error) {
	path := c.spacePath("/conversations/" + url.PathEscape(conversationID) +
		"/messages/" + url.PathEscape(messageID) +
		"/attachments/" + url.PathEscape(attachmentID) + "/query-result")
	res, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	t := parseStatement(res.Get("statement_response")).truncate(c.cfg.MaxRows)
	if format == genie.FormatMarkdown {
		return t.Markdown(), nil
	}
	return t.JSON()
}

func (c *Client) spacePath(suffix string) string {
	return "/api/2.0/genie/spaces/" + url.PathEscape(c.spaceID) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (gjson.Result, error) {
	debugLogger, err := base.NewDebugLogger(c.cfg.DebugPath)
	if err != nil {
		return gjson.Result{}, err
	}
	defer debugLogger.Close()
	requestID := base.NewRequestID()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, rd)
	if err != nil {
		return gjson.Result{}, err
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.cfg.ExtraHeaders {
		req.Header.Set(k, v)
	}

	if debugLogger != nil {
		rec := base.NewDebugRecord("request", map[string]any{"method": method, "path": path, "body": string(body)})
		rec.RequestID = requestID
		rec.Provider = "genie"
		_ = debugLogger.Log(rec)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}

	if debugLogger != nil {
		rec := base.NewDebugRecord("response", map[string]any{"status": resp.StatusCode, "body": string(data)})
		rec.RequestID = requestID
		rec.Provider = "genie"
		_ = debugLogger.Log(rec)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(data))}
		if gjson.ValidBytes(data) {
			res := gjson.ParseBytes(data)
			apiErr.ErrorCode = res.Get("error_code").String()
			if m := res.Get("message").String(); m != "" {
				apiErr.Message = m
			}
		}
		return gjson.Result{}, apiErr
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return gjson.Result{}, nil
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, errors.New("space: response is not valid JSON")
	}
	return gjson.ParseBytes(data), nil
}

func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() && v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
