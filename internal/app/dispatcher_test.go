package app

import (
	"context"
	"errors"
	"testing"

	"chainchat/go-backend/internal/ledger"
	"chainchat/go-backend/internal/metrics"
	"chainchat/go-backend/internal/session"
	"chainchat/go-backend/pkg/models"
)

func testDispatcher(gw *fakeGateway, sessions *session.Store, attempts int) *Dispatcher {
	m := metrics.New()
	poller := NewPoller(gw, sessions, 1, attempts, nil, m)
	return NewDispatcher(gw, sessions, poller, nil, m)
}

func TestHandleStartChatRepliesWithIDAndSuggestions(t *testing.T) {
	sessions := session.NewStore()
	gw := &fakeGateway{
		startID: "7",
		reads: []readResult{
			{turns: []models.Turn{models.NewUserTurn("hello")}},
			{turns: []models.Turn{
				models.NewUserTurn("hello"),
				models.NewAssistantTurn(`{"response":"hi there","suggestions":"a,b"}`),
			}},
		},
	}

	replies := testDispatcher(gw, sessions, 5).Handle(context.Background(), "startchat hello")
	if len(replies) != 2 {
		t.Fatalf("expected reply plus suggestions, got %#v", replies)
	}
	if replies[0] != "Chat started successfully. Chat ID: 7\n\nAssistant: hi there" {
		t.Fatalf("unexpected first reply: %q", replies[0])
	}
	if replies[1] != "Suggestions: a, b" {
		t.Fatalf("unexpected suggestions reply: %q", replies[1])
	}

	turns := sessions.Get("7")
	if len(turns) != 2 || turns[0].Role != models.RoleUser || turns[1].Role != models.RoleAssistant {
		t.Fatalf("session must record both turns, got %#v", turns)
	}
}

func TestHandleStartChatFailureCreatesNoSession(t *testing.T) {
	sessions := session.NewStore()
	gw := &fakeGateway{startErr: ledger.ErrNoChatCreated}

	replies := testDispatcher(gw, sessions, 3).Handle(context.Background(), "startchat hello")
	if len(replies) != 1 || replies[0] != errorReply {
		t.Fatalf("expected the generic failure reply, got %#v", replies)
	}
	if turns := sessions.Get(""); len(turns) != 0 {
		t.Fatalf("no session entry may be created on failure, got %#v", turns)
	}
}

func TestHandleAddMessageRepliesWithResponse(t *testing.T) {
	sessions := session.NewStore()
	sessions.Replace("7", []models.Turn{
		models.NewUserTurn("hello"),
		models.NewAssistantTurn("hi there"),
	})
	gw := &fakeGateway{
		reads: []readResult{
			{turns: []models.Turn{
				models.NewUserTurn("hello"),
				models.NewAssistantTurn("hi there"),
				models.NewUserTurn("and another thing"),
				models.NewAssistantTurn(`{"response":"noted"}`),
			}},
		},
	}

	replies := testDispatcher(gw, sessions, 3).Handle(context.Background(), "addmessage 7 and   another thing")
	if len(replies) != 1 || replies[0] != "Assistant: noted" {
		t.Fatalf("unexpected replies: %#v", replies)
	}
	if gw.addCalls != 1 {
		t.Fatalf("expected one append submission, got %d", gw.addCalls)
	}

	turns := sessions.Get("7")
	if len(turns) != 4 {
		t.Fatalf("expected four local turns, got %#v", turns)
	}
	if turns[2].Content != "and another thing" {
		t.Fatalf("argument must be re-joined with single spaces, got %q", turns[2].Content)
	}
}

func TestHandleAddMessageUnknownSessionIsLenient(t *testing.T) {
	sessions := session.NewStore()
	gw := &fakeGateway{
		reads: []readResult{
			{turns: []models.Turn{
				models.NewUserTurn("hi"),
				models.NewAssistantTurn("welcome back"),
			}},
		},
	}

	replies := testDispatcher(gw, sessions, 3).Handle(context.Background(), "addmessage 42 hi")
	if len(replies) != 1 || replies[0] != "Assistant: welcome back" {
		t.Fatalf("unknown session must still be served, got %#v", replies)
	}
	if gw.addCalls != 1 {
		t.Fatal("append must still be submitted to the ledger")
	}
}

func TestHandleAddMessageBadSessionID(t *testing.T) {
	gw := &fakeGateway{addErr: ledger.ErrBadSessionID}

	replies := testDispatcher(gw, session.NewStore(), 3).Handle(context.Background(), "addmessage abc hi")
	if len(replies) != 1 || replies[0] != badSessionReply {
		t.Fatalf("expected the bad-session reply, got %#v", replies)
	}
}

func TestHandleTimeoutKeepsUserTurn(t *testing.T) {
	sessions := session.NewStore()
	gw := &fakeGateway{
		startID: "9",
		reads: []readResult{
			{turns: []models.Turn{models.NewUserTurn("hello")}},
		},
	}

	replies := testDispatcher(gw, sessions, 2).Handle(context.Background(), "startchat hello")
	if len(replies) != 1 || replies[0] != timeoutReply {
		t.Fatalf("expected the timeout reply, got %#v", replies)
	}
	if turns := sessions.Get("9"); len(turns) != 1 || turns[0].Role != models.RoleUser {
		t.Fatalf("user turn must survive the timeout, got %#v", turns)
	}
}

func TestHandleUnknownVerbTouchesNothing(t *testing.T) {
	sessions := session.NewStore()
	gw := &fakeGateway{}

	replies := testDispatcher(gw, sessions, 3).Handle(context.Background(), "foo bar")
	if len(replies) != 1 || replies[0] != unknownActionReply {
		t.Fatalf("unexpected replies: %#v", replies)
	}
	if gw.startCalls != 0 || gw.addCalls != 0 {
		t.Fatalf("unknown verb must not touch the ledger: start=%d add=%d", gw.startCalls, gw.addCalls)
	}
}

func TestHandleErrorsNeverEscape(t *testing.T) {
	gw := &fakeGateway{addErr: errors.New("nonce too low")}

	replies := testDispatcher(gw, session.NewStore(), 3).Handle(context.Background(), "addmessage 7 hi")
	if len(replies) != 1 || replies[0] != errorReply {
		t.Fatalf("ledger failures must become the generic reply, got %#v", replies)
	}
}
