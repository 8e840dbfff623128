package models

import "testing"

func TestParseCommandLowercasesVerb(t *testing.T) {
	cmd := ParseCommand("StartChat hello there")
	if cmd.Verb != "startchat" {
		t.Fatalf("unexpected verb: %q", cmd.Verb)
	}
	if cmd.Argument != "hello there" {
		t.Fatalf("unexpected argument: %q", cmd.Argument)
	}
}

func TestParseCommandEmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		cmd := ParseCommand(text)
		if cmd.Verb != "" || cmd.Argument != "" {
			t.Fatalf("expected empty command for %q, got %#v", text, cmd)
		}
	}
}

func TestParseCommandKeepsArgumentVerbatim(t *testing.T) {
	cmd := ParseCommand("startchat   hello  world")
	if cmd.Verb != "startchat" {
		t.Fatalf("unexpected verb: %q", cmd.Verb)
	}
	if cmd.Argument != "  hello  world" {
		t.Fatalf("argument must keep its whitespace, got %q", cmd.Argument)
	}
}

func TestParseCommandVerbOnly(t *testing.T) {
	cmd := ParseCommand("startchat")
	if cmd.Verb != "startchat" || cmd.Argument != "" {
		t.Fatalf("unexpected command: %#v", cmd)
	}
}

func TestSplitSessionArgument(t *testing.T) {
	id, message := SplitSessionArgument("7 tell me   more")
	if id != "7" {
		t.Fatalf("unexpected session id: %q", id)
	}
	if message != "tell me more" {
		t.Fatalf("expected single-space rejoin, got %q", message)
	}
}

func TestSplitSessionArgumentEmpty(t *testing.T) {
	id, message := SplitSessionArgument("  ")
	if id != "" || message != "" {
		t.Fatalf("expected empty split, got %q %q", id, message)
	}
}

func TestNormalizeRole(t *testing.T) {
	if got := NormalizeRole(" Assistant "); got != RoleAssistant {
		t.Fatalf("expected assistant, got %q", got)
	}
	if got := NormalizeRole("system"); got != RoleUser {
		t.Fatalf("unknown role must fall back to user, got %q", got)
	}
}
