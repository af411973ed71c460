package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripTermination(t *testing.T) {
	type testCase struct {
		name       string
		reply      string
		expected   string
		terminated bool
	}

	tests := []testCase{
		{name: "marker at end", reply: "There are 3 files. TERMINATE", expected: "There are 3 files.", terminated: true},
		{name: "marker on own line", reply: "Done.\n\nTERMINATE\n", expected: "Done.", terminated: true},
		{name: "marker with period", reply: "All good. TERMINATE.", expected: "All good.", terminated: true},
		{name: "bare marker", reply: "TERMINATE", expected: "", terminated: true},
		{name: "no marker", reply: "Working on it", expected: "Working on it"},
		{name: "marker mid text", reply: "TERMINATE is a keyword I use", expected: "TERMINATE is a keyword I use"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actual, terminated := StripTermination(tc.reply)
			assert.Equal(t, tc.expected, actual)
			assert.Equal(t, tc.terminated, terminated)
		})
	}
}

func TestScripted(t *testing.T) {
	ctx := context.Background()
	script := NewScripted("one", "two")
	history := []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "hi"}}

	reply, err := script.Reply(ctx, history)
	require.NoError(t, err)
	assert.Equal(t, "one", reply)
	reply, err = script.Reply(ctx, history[:1])
	require.NoError(t, err)
	assert.Equal(t, "two", reply)
	_, err = script.Reply(ctx, nil)
	assert.Error(t, err)

	assert.Equal(t, 3, script.Calls())
	assert.Equal(t, "sys", SystemPrompt(script.Received[0]))
	assert.Nil(t, script.Last())

	script.Fallback = "TERMINATE"
	reply, err = script.Reply(ctx, history)
	require.NoError(t, err)
	assert.Equal(t, "TERMINATE", reply)
	assert.Len(t, script.Last(), 2)
}
