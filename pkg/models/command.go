package models

import (
	"strings"
	"unicode"
)

// Command is one parsed inbound transport message: a lower-cased verb and
// the remainder of the text.
type Command struct {
	Verb     string
	Argument string
}

// ParseCommand splits inbound text into verb and argument. The verb is the
// first whitespace-delimited token; the argument is the remainder after the
// separator, kept verbatim. Total: empty or whitespace-only input yields an
// empty command, never an error.
func ParseCommand(text string) Command {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Command{}
	}
	verb := trimmed
	argument := ""
	if i := strings.IndexFunc(trimmed, unicode.IsSpace); i >= 0 {
		verb = trimmed[:i]
		argument = trimmed[i+1:]
	}
	return Command{
		Verb:     strings.ToLower(verb),
		Argument: argument,
	}
}

// SplitSessionArgument interprets an argument whose first token is a
// session id; the rest is the message text re-joined with single spaces.
func SplitSessionArgument(argument string) (sessionID, message string) {
	fields := strings.Fields(argument)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
