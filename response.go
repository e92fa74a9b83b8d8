package genie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"goa.design/clue/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ParseFailureNote is appended to the text of a response whose result could
// not be decoded as rows.
const ParseFailureNote = "Data was returned but was unable to be parsed."

// ResultFormat selects how a Genie space renders query results.
type ResultFormat string

const (
	FormatJSON     ResultFormat = "json"
	FormatMarkdown ResultFormat = "markdown"
)

// RawResponse is an answer as returned by a Genie space client.
type RawResponse struct {
	// Result is a string (JSON text or markdown), raw bytes, or any
	// JSON-encodable value. Nil means no result.
	Result         any
	Query          string
	Description    *string
	ConversationID string
}

// Asker is the external Genie service.
type Asker interface {
	Ask(ctx context.Context, question, conversationID string, format ResultFormat) (RawResponse, error)
}

// Describer is implemented by Askers that know what their space is about.
type Describer interface {
	Description() string
}

// ToolResponse is the normalized form of a Genie answer.
type ToolResponse struct {
	Text           string
	ConversationID string
	Query          string
	Data           []map[string]any
}

func (r ToolResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Text           string           `json:"text"`
		ConversationID *string          `json:"conversation_id"`
		Query          *string          `json:"query"`
		Data           []map[string]any `json:"data"`
	}{
		Text:           r.Text,
		ConversationID: optional(r.ConversationID),
		Query:          optional(r.Query),
		Data:           r.Data,
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Normalize converts a raw Genie answer into a ToolResponse. Rows are decoded
// only when the answer carries a description and a non-empty result; a result
// that fails to decode is reported in Text instead of as an error.
func Normalize(ctx context.Context, raw RawResponse) ToolResponse {
	ctx, span, finish := startSpan(ctx, "genie.normalize", SpanTypeParser, trace.SpanKindInternal)
	defer finish(nil)

	resp := ToolResponse{
		ConversationID: raw.ConversationID,
		Query:          raw.Query,
	}
	if raw.Description == nil {
		resp.Text = resultString(raw.Result)
		return resp
	}
	resp.Text = *raw.Description
	if raw.Result == nil || isEmptyList(raw.Result) {
		return resp
	}

	var rows []map[string]any
	if err := json.Unmarshal([]byte(resultString(raw.Result)), &rows); err != nil {
		log.Debug(ctx,
			log.KV{K: "msg", V: "genie result not parseable"},
			log.KV{K: "conversation_id", V: raw.ConversationID},
			log.KV{K: "err", V: err.Error()},
		)
		span.AddEvent("genie.parse_failed", trace.WithAttributes(attribute.String("error", err.Error())))
		resp.Text = resp.Text + " " + ParseFailureNote
		return resp
	}
	resp.Data = rows
	span.SetAttributes(attribute.Int("genie.rows", len(rows)))
	return resp
}

func resultString(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case []byte:
		return string(r)
	case json.RawMessage:
		return string(r)
	case fmt.Stringer:
		return r.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func isEmptyList(v any) bool {
	switch r := v.(type) {
	case string:
		return strings.TrimSpace(r) == "[]"
	case []byte:
		return string(bytes.TrimSpace(r)) == "[]"
	case json.RawMessage:
		return string(bytes.TrimSpace(r)) == "[]"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() == 0
	}
	return false
}
