package genie_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/inspirepan/genie"
	"github.com/inspirepan/genie/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRows(t *testing.T) {
	resp := genie.Normalize(context.Background(), genie.RawResponse{
		Description:    testutil.Ptr("Revenue by region"),
		Result:         `[{"region":"west","rev":100}]`,
		ConversationID: "c1",
		Query:          "SELECT region, rev FROM t",
	})

	assert.Equal(t, genie.ToolResponse{
		Text:           "Revenue by region",
		ConversationID: "c1",
		Query:          "SELECT region, rev FROM t",
		Data:           []map[string]any{{"region": "west", "rev": float64(100)}},
	}, resp)
}

func TestNormalizeUnparseable(t *testing.T) {
	resp := genie.Normalize(context.Background(), genie.RawResponse{
		Description:    testutil.Ptr("Result"),
		Result:         "not-json",
		ConversationID: "c2",
	})

	assert.Equal(t, "Result Data was returned but was unable to be parsed.", resp.Text)
	assert.Nil(t, resp.Data)
	assert.Equal(t, "c2", resp.ConversationID)
	assert.Empty(t, resp.Query)
}

func TestNormalizeWithoutDescription(t *testing.T) {
	tests := []struct {
		name   string
		result any
		want   string
	}{
		{"text", "I can only answer questions about sales.", "I can only answer questions about sales."},
		{"json text stays text", `[{"a":1}]`, `[{"a":1}]`},
		{"bytes", []byte("hello"), "hello"},
		{"nil", nil, ""},
		{"value", map[string]any{"a": 1}, `{"a":1}`},
		{"empty list", "[]", "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := genie.Normalize(context.Background(), genie.RawResponse{Result: tt.result, ConversationID: "c"})
			assert.Equal(t, tt.want, resp.Text)
			assert.Nil(t, resp.Data)
			assert.Equal(t, "c", resp.ConversationID)
		})
	}
}

func TestNormalizeEmptyList(t *testing.T) {
	for _, result := range []any{"[]", " [] ", []byte("[]"), []map[string]any{}, []any{}} {
		resp := genie.Normalize(context.Background(), genie.RawResponse{
			Description: testutil.Ptr("Nothing matched"),
			Result:      result,
		})
		assert.Equal(t, "Nothing matched", resp.Text, "result %#v", result)
		assert.Nil(t, resp.Data, "result %#v", result)
	}
}

func TestNormalizeAbsentResult(t *testing.T) {
	resp := genie.Normalize(context.Background(), genie.RawResponse{Description: testutil.Ptr("Described")})
	assert.Equal(t, "Described", resp.Text)
	assert.Nil(t, resp.Data)
}

func TestNormalizeStructuredResult(t *testing.T) {
	resp := genie.Normalize(context.Background(), genie.RawResponse{
		Description: testutil.Ptr("Top region"),
		Result:      []map[string]any{{"region": "west"}},
	})
	assert.Equal(t, "Top region", resp.Text)
	assert.Equal(t, []map[string]any{{"region": "west"}}, resp.Data)
}

func TestNormalizeNotRows(t *testing.T) {
	for _, result := range []string{`{"region":"west"}`, `[1,2,3]`, `"text"`} {
		resp := genie.Normalize(context.Background(), genie.RawResponse{
			Description: testutil.Ptr("Result"),
			Result:      result,
		})
		assert.Equal(t, "Result "+genie.ParseFailureNote, resp.Text, "result %s", result)
		assert.Nil(t, resp.Data, "result %s", result)
	}
}

func TestToolResponseJSON(t *testing.T) {
	b, err := json.Marshal(genie.ToolResponse{Text: "Result"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"Result","conversation_id":null,"query":null,"data":null}`, string(b))

	b, err = json.Marshal(genie.ToolResponse{
		Text:           "Revenue by region",
		ConversationID: "c1",
		Query:          "SELECT 1",
		Data:           []map[string]any{{"rev": 100}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"Revenue by region","conversation_id":"c1","query":"SELECT 1","data":[{"rev":100}]}`, string(b))
}
