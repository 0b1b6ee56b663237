package harmony

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(t *StreamTransformer, fragments ...string) []Rendering {
	var renders []Rendering
	for _, f := range fragments {
		renders = append(renders, t.Feed(f)...)
	}
	return renders
}

func assertNoLeakage(t *testing.T, renders []Rendering) {
	t.Helper()
	for _, r := range renders {
		for _, token := range []string{TokenChannel, TokenMessage, TokenStart, TokenConstrain} {
			assert.NotContains(t, r.Content, token)
			for _, call := range r.ToolCalls {
				assert.NotContains(t, call.Function.Arguments, token)
			}
		}
	}
}

func TestStreamTransformerStartsIdle(t *testing.T) {
	t.Parallel()

	tr := NewStreamTransformer(ModeXML)
	assert.False(t, tr.Engaged())
}

func TestStreamTransformerHoldsSingleMarker(t *testing.T) {
	t.Parallel()

	tr := NewStreamTransformer(ModeXML)
	renders := tr.Feed("<|channel|>final<|message|>partial answer")
	assert.Empty(t, renders)
	assert.True(t, tr.Engaged())
}

func TestStreamTransformerEmitsCompletedBlock(t *testing.T) {
	t.Parallel()

	tr := NewStreamTransformer(ModeXML)
	renders := feedAll(tr,
		"<|channel|>final<|message|>Hello",
		"<|channel|>final<|message|> again",
	)
	require.Len(t, renders, 1)
	assert.Equal(t, "Hello", renders[0].Content)

	flushed := tr.Flush()
	require.Len(t, flushed, 1)
	assert.Equal(t, " again", flushed[0].Content)
}

func TestStreamTransformerAnalysisThenFinalScenario(t *testing.T) {
	t.Parallel()

	tr := NewStreamTransformer(ModeXML)
	renders := feedAll(tr,
		"<|channel|>analysis<|message|>thinking",
		"<|channel|>final<|message|>Hello",
		"<|channel|>final<|message|> world",
	)
	require.Len(t, renders, 1)
	assert.Equal(t, "Hello", renders[0].Content)

	flushed := tr.Flush()
	require.Len(t, flushed, 1)
	assert.Equal(t, " world", flushed[0].Content)

	assertNoLeakage(t, append(renders, flushed...))
}

func TestStreamTransformerMarkerSplitAcrossFragments(t *testing.T) {
	t.Parallel()

	tr := NewStreamTransformer(ModeXML)
	renders := feedAll(tr,
		"<|channel|>analysis<|message|>working",
		"<|chan",
		"nel|>final<|message|>done",
	)
	// The split marker still terminates the analysis block.
	assert.Empty(t, renders)

	flushed := tr.Flush()
	require.Len(t, flushed, 1)
	assert.Equal(t, "done", flushed[0].Content)
}

func TestStreamTransformerSplitMarkerCompletesBlock(t *testing.T) {
	t.Parallel()

	tr := NewStreamTransformer(ModeXML)
	renders := feedAll(tr,
		"<|channel|>final<|message|>Hello",
		"<|chan",
		"nel|>analysis<|message|>more",
	)
	require.Len(t, renders, 1)
	assert.Equal(t, "Hello", renders[0].Content)
}

func TestStreamTransformerFlushOnlyOnce(t *testing.T) {
	t.Parallel()

	tr := NewStreamTransformer(ModeXML)
	tr.Feed("<|channel|>final<|message|>tail")

	first := tr.Flush()
	require.Len(t, first, 1)
	assert.Equal(t, "tail", first[0].Content)

	assert.Empty(t, tr.Flush())
}

func TestStreamTransformerFlushBlankRemainder(t *testing.T) {
	t.Parallel()

	tr := NewStreamTransformer(ModeXML)
	tr.Feed("   \n")
	assert.Empty(t, tr.Flush())
}

func TestStreamTransformerToolCallRenderedAsXML(t *testing.T) {
	t.Parallel()

	tr := NewStreamTransformer(ModeXML)
	tr.Feed(`<|channel|>commentary to=functions.search <|constrain|>json<|message|>{"q":"cats"}`)

	renders := tr.Feed("<|channel|>final<|message|>next")
	require.Len(t, renders, 1)
	assert.Equal(t, "<search><q>cats</q></search>", renders[0].Content)

	flushed := tr.Flush()
	require.Len(t, flushed, 1)
	assert.Equal(t, "next", flushed[0].Content)
}

func TestStreamTransformerXMLScenario(t *testing.T) {
	t.Parallel()

	tr := NewStreamTransformer(ModeXML)
	tr.Feed(`<|channel|>commentary to=functions.search <|constrain|>json<|message|>{"q":"cats"}`)

	flushed := tr.Flush()
	require.Len(t, flushed, 1)
	assert.Equal(t, "<search><q>cats</q></search>", flushed[0].Content)
	assert.Empty(t, flushed[0].ToolCalls)
}

func TestStreamTransformerOpenAIScenario(t *testing.T) {
	t.Parallel()

	tr := NewStreamTransformer(ModeOpenAI)
	tr.Feed(`<|channel|>commentary to=functions.search <|constrain|>json<|message|>{"q":"cats"}`)

	flushed := tr.Flush()
	require.Len(t, flushed, 1)
	assert.Empty(t, flushed[0].Content)
	require.Len(t, flushed[0].ToolCalls, 1)

	call := flushed[0].ToolCalls[0]
	assert.Equal(t, "search", call.Function.Name)
	assert.JSONEq(t, `{"q":"cats"}`, call.Function.Arguments)
	assert.True(t, strings.HasPrefix(call.ID, "call_0_"))
}

func TestStreamTransformerPureAnalysisEmitsNothing(t *testing.T) {
	t.Parallel()

	tr := NewStreamTransformer(ModeXML)
	renders := feedAll(tr,
		"<|channel|>analysis<|message|>step one",
		"<|channel|>analysis<|message|>step two",
		"<|channel|>commentary<|message|>side note",
	)
	assert.Empty(t, renders)
	assert.Empty(t, tr.Flush())
}

func TestStreamTransformerManySmallFragments(t *testing.T) {
	t.Parallel()

	full := "<|channel|>analysis<|message|>let me think" +
		"<|channel|>final<|message|>The answer is 42." +
		"<|channel|>analysis<|message|>trailing"

	// Feed one byte at a time to exercise every split point.
	tr := NewStreamTransformer(ModeXML)
	var renders []Rendering
	for i := 0; i < len(full); i++ {
		renders = append(renders, tr.Feed(full[i:i+1])...)
	}
	renders = append(renders, tr.Flush()...)

	require.Len(t, renders, 1)
	assert.Equal(t, "The answer is 42.", renders[0].Content)
	assertNoLeakage(t, renders)
}

func TestStreamTransformerOrderPreserved(t *testing.T) {
	t.Parallel()

	tr := NewStreamTransformer(ModeXML)
	fragment := "<|channel|>final<|message|>one" +
		"<|channel|>final<|message|>two" +
		"<|channel|>final<|message|>three" +
		"<|channel|>analysis<|message|>tail"
	renders := tr.Feed(fragment)

	require.Len(t, renders, 3)
	assert.Equal(t, "one", renders[0].Content)
	assert.Equal(t, "two", renders[1].Content)
	assert.Equal(t, "three", renders[2].Content)
}

func TestStreamTransformerStaysEngaged(t *testing.T) {
	t.Parallel()

	tr := NewStreamTransformer(ModeXML)
	tr.Feed("<|channel|>final<|message|>start")
	assert.True(t, tr.Engaged())

	// Plain fragments keep buffering once engaged.
	renders := tr.Feed(" and more plain text")
	assert.Empty(t, renders)
	assert.True(t, tr.Engaged())

	flushed := tr.Flush()
	require.Len(t, flushed, 1)
	assert.Equal(t, "start and more plain text", flushed[0].Content)
}
