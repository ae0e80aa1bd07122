package study

import "strings"

// Command is a bot command parsed from chat text.
type Command int

const (
	CommandNone Command = iota
	CommandStart
	CommandEnd
	CommandStatus
	CommandHelp
)

func (c Command) String() string {
	switch c {
	case CommandStart:
		return "start"
	case CommandEnd:
		return "end"
	case CommandStatus:
		return "status"
	case CommandHelp:
		return "help"
	default:
		return "none"
	}
}

// DefaultMentions are the triggers that address the bot.
var DefaultMentions = []string{"@bot", "@studybot", "@assistant"}

var commandPhrases = []struct {
	cmd     Command
	phrases []string
}{
	{CommandStart, []string{"start study", "begin study"}},
	{CommandEnd, []string{"end study", "stop study"}},
	{CommandStatus, []string{"study status", "study time"}},
}

// Dispatcher detects bot mentions and classifies commands. Matching is case-insensitive
// and substring based.
type Dispatcher struct {
	mentions []string
}

// NewDispatcher builds a dispatcher. An empty mention list falls back to DefaultMentions.
func NewDispatcher(mentions ...string) *Dispatcher {
	var cleaned []string
	for _, m := range mentions {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			cleaned = append(cleaned, m)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultMentions...)
	}
	return &Dispatcher{mentions: cleaned}
}

// DetectMention reports whether text addresses the bot.
func (d *Dispatcher) DetectMention(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range d.mentions {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Route classifies bot-addressed text. Start phrases win over end phrases, which win over
// status phrases; anything else is Help.
func (d *Dispatcher) Route(text string) Command {
	lower := strings.ToLower(text)
	for _, entry := range commandPhrases {
		for _, phrase := range entry.phrases {
			if strings.Contains(lower, phrase) {
				return entry.cmd
			}
		}
	}
	return CommandHelp
}
