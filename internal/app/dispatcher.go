package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"chainchat/go-backend/internal/ledger"
	"chainchat/go-backend/internal/metrics"
	"chainchat/go-backend/internal/session"
	"chainchat/go-backend/pkg/models"
)

const (
	verbStartChat  = "startchat"
	verbAddMessage = "addmessage"

	unknownActionReply = "Unknown action. Supported actions: startchat <message>, addmessage <chat id> <message>"
	errorReply         = "Sorry, something went wrong while handling your request. Please try again."
	badSessionReply    = "That chat id doesn't look right. Use the id returned when the chat was started."
	timeoutReply       = "The assistant hasn't responded yet. Please check back in a moment."
)

// Dispatcher classifies one inbound message into a command and turns
// handler results into the ordered list of replies to send back. It is
// stateless per invocation; the only cross-message state is the session
// store.
type Dispatcher struct {
	gateway  LedgerGateway
	sessions *session.Store
	poller   *Poller
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewDispatcher(gateway LedgerGateway, sessions *session.Store, poller *Poller, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Dispatcher{
		gateway:  gateway,
		sessions: sessions,
		poller:   poller,
		logger:   logger,
		metrics:  m,
	}
}

// Handle never returns an error: every handler failure is logged for
// operators and converted into a short reply on the same conversation.
func (d *Dispatcher) Handle(ctx context.Context, text string) []string {
	cmd := models.ParseCommand(text)
	switch cmd.Verb {
	case verbStartChat:
		d.metrics.CommandsTotal.WithLabelValues(verbStartChat).Inc()
		return d.handleStartChat(ctx, cmd.Argument)
	case verbAddMessage:
		d.metrics.CommandsTotal.WithLabelValues(verbAddMessage).Inc()
		return d.handleAddMessage(ctx, cmd.Argument)
	default:
		d.metrics.CommandsTotal.WithLabelValues("unknown").Inc()
		return []string{unknownActionReply}
	}
}

func (d *Dispatcher) handleStartChat(ctx context.Context, message string) []string {
	sessionID, err := d.gateway.StartChat(ctx, message)
	if err != nil {
		d.logger.Error("start chat failed", "error", err)
		d.metrics.LedgerErrorsTotal.WithLabelValues("start_chat").Inc()
		return []string{errorReply}
	}

	d.sessions.Append(sessionID, models.NewUserTurn(message))

	env, err := d.poller.AwaitResponse(ctx, sessionID, d.sessions.Len(sessionID))
	if err != nil {
		return d.failureReply(sessionID, err)
	}

	replies := []string{fmt.Sprintf("Chat started successfully. Chat ID: %s\n\nAssistant: %s", sessionID, env.Response)}
	return appendSuggestions(replies, env.Suggestions)
}

func (d *Dispatcher) handleAddMessage(ctx context.Context, argument string) []string {
	sessionID, message := models.SplitSessionArgument(argument)

	// Lenient: an unknown session id starts from an empty local history
	// rather than failing the command.
	d.sessions.Append(sessionID, models.NewUserTurn(message))

	if err := d.gateway.AddMessage(ctx, sessionID, message); err != nil {
		d.logger.Error("add message failed", "session_id", sessionID, "error", err)
		d.metrics.LedgerErrorsTotal.WithLabelValues("add_message").Inc()
		if errors.Is(err, ledger.ErrBadSessionID) {
			return []string{badSessionReply}
		}
		return []string{errorReply}
	}

	env, err := d.poller.AwaitResponse(ctx, sessionID, d.sessions.Len(sessionID))
	if err != nil {
		return d.failureReply(sessionID, err)
	}

	replies := []string{"Assistant: " + env.Response}
	return appendSuggestions(replies, env.Suggestions)
}

func (d *Dispatcher) failureReply(sessionID string, err error) []string {
	if errors.Is(err, ErrAwaitTimeout) {
		d.logger.Warn("await response timed out", "session_id", sessionID)
		return []string{timeoutReply}
	}
	d.logger.Error("await response failed", "session_id", sessionID, "error", err)
	return []string{errorReply}
}

func appendSuggestions(replies []string, suggestions []string) []string {
	if len(suggestions) == 0 {
		return replies
	}
	return append(replies, "Suggestions: "+strings.Join(suggestions, ", "))
}
