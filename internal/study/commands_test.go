package study

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatcherRoute(t *testing.T) {
	d := NewDispatcher()

	cases := map[string]Command{
		"please @bot start study now": CommandStart,
		"@bot begin study":            CommandStart,
		"@bot STOP STUDY please":      CommandEnd,
		"@bot end study":              CommandEnd,
		"@bot study status?":          CommandStatus,
		"@bot how much study time":    CommandStatus,
		"@bot":                        CommandHelp,
		"@bot what can you do":        CommandHelp,
	}
	for text, want := range cases {
		require.Equal(t, want, d.Route(text), text)
	}

	require.Equal(t, CommandStart, d.Route("@bot end study then start study"))
}

func TestDispatcherDetectMention(t *testing.T) {
	d := NewDispatcher()

	require.True(t, d.DetectMention("hey @Bot"))
	require.True(t, d.DetectMention("@STUDYBOT start study"))
	require.True(t, d.DetectMention("ask @assistant"))
	require.False(t, d.DetectMention("start study"))
	require.False(t, d.DetectMention("email me at bot@example.com"))
}

func TestDispatcherCustomMentions(t *testing.T) {
	d := NewDispatcher(" @Tutor ", "")

	require.True(t, d.DetectMention("@tutor start study"))
	require.False(t, d.DetectMention("@bot start study"))
	require.Equal(t, "@tutor", d.mentions[0])
}

func TestCommandString(t *testing.T) {
	require.Equal(t, "start", CommandStart.String())
	require.Equal(t, "none", CommandNone.String())
}
