package genie_test

import (
	"context"
	"errors"
	"testing"

	"github.com/inspirepan/genie"
	"github.com/inspirepan/genie/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestNewQuestionToolRequiresAsker(t *testing.T) {
	_, err := genie.NewQuestionTool(nil)
	assert.ErrorIs(t, err, genie.ErrNoAsker)
}

func TestQuestionToolAsk(t *testing.T) {
	asker := &testutil.Asker{Responses: []genie.RawResponse{{
		Description:    testutil.Ptr("Revenue by region"),
		Result:         `[{"region":"west","rev":100}]`,
		ConversationID: "c1",
		Query:          "SELECT region, rev FROM t",
	}}}
	tool, err := genie.NewQuestionTool(asker)
	require.NoError(t, err)

	resp, err := tool.Ask(context.Background(), "Which region?", "c0")
	require.NoError(t, err)

	require.Len(t, asker.Calls, 1)
	assert.Equal(t, testutil.AskCall{Question: "Which region?", ConversationID: "c0", Format: genie.FormatJSON}, asker.Calls[0])
	assert.Equal(t, "Revenue by region", resp.Text)
	assert.Equal(t, "c1", resp.ConversationID)
	assert.Len(t, resp.Data, 1)
}

func TestQuestionToolAskError(t *testing.T) {
	boom := errors.New("service unavailable")
	tool, err := genie.NewQuestionTool(&testutil.Asker{Errs: []error{boom}})
	require.NoError(t, err)

	_, err = tool.Ask(context.Background(), "q", "")
	assert.Same(t, boom, err)
}

func TestQuestionToolDescription(t *testing.T) {
	tool, err := genie.NewQuestionTool(&testutil.Asker{Desc: "Sales data"})
	require.NoError(t, err)
	assert.Equal(t, "Sales data", tool.Description())
	assert.Contains(t, tool.Spec().Description, "Sales data")

	tool, err = genie.NewQuestionTool(&testutil.Asker{Desc: "Sales data"}, genie.WithToolDescription("Override"))
	require.NoError(t, err)
	assert.Equal(t, "Override", tool.Description())
}

func TestQuestionToolSpec(t *testing.T) {
	tool, err := genie.NewQuestionTool(&testutil.Asker{})
	require.NoError(t, err)
	spec := tool.Spec()
	assert.Equal(t, genie.DefaultToolName, spec.Name)
	assert.Equal(t, []string{"question"}, spec.Parameters["required"])

	tool, err = genie.NewQuestionTool(&testutil.Asker{}, genie.WithToolName("sales"))
	require.NoError(t, err)
	assert.Equal(t, "sales", tool.Spec().Name)
}

func TestQuestionToolExecute(t *testing.T) {
	asker := &testutil.Asker{Responses: []genie.RawResponse{{
		Description:    testutil.Ptr("Result"),
		Result:         "not-json",
		ConversationID: "c2",
	}}}
	tool, err := genie.NewQuestionTool(asker)
	require.NoError(t, err)

	res, err := tool.Execute(context.Background(), genie.ToolCallPart{
		CallID:   "call_1",
		Name:     genie.DefaultToolName,
		ArgsJSON: []byte(`{"question":"How much?","conversation_id":"c2"}`),
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "call_1", res.CallID)
	assert.Equal(t, "c2", res.Details["conversation_id"])
	assert.Equal(t, "c2", asker.Calls[0].ConversationID)

	require.Len(t, res.Parts, 1)
	text := res.Parts[0].(genie.TextPart).Text
	assert.Equal(t, "Result "+genie.ParseFailureNote, gjson.Get(text, "text").String())
	assert.Equal(t, gjson.Null, gjson.Get(text, "data").Type)
	assert.Equal(t, gjson.Null, gjson.Get(text, "query").Type)
}

func TestQuestionToolExecuteBadArgs(t *testing.T) {
	asker := &testutil.Asker{}
	tool, err := genie.NewQuestionTool(asker)
	require.NoError(t, err)

	for _, args := range []string{`{`, `{"question":"  "}`} {
		res, err := tool.Execute(context.Background(), genie.ToolCallPart{CallID: "c", ArgsJSON: []byte(args)})
		require.NoError(t, err)
		assert.True(t, res.IsError, args)
	}
	assert.Empty(t, asker.Calls)
}

func TestQuestionToolExecuteAskError(t *testing.T) {
	boom := errors.New("rejected")
	tool, err := genie.NewQuestionTool(&testutil.Asker{Errs: []error{boom}})
	require.NoError(t, err)

	_, err = tool.Execute(context.Background(), genie.ToolCallPart{ArgsJSON: []byte(`{"question":"q"}`)})
	assert.ErrorIs(t, err, boom)
}
