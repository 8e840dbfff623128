package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chainchat/go-backend/internal/envelope"
	"chainchat/go-backend/internal/metrics"
	"chainchat/go-backend/internal/session"
	"chainchat/go-backend/pkg/models"
)

// ErrAwaitTimeout reports that the responder did not append an answer
// within the polling budget. Recoverable: the caller turns it into a
// user-facing reply.
var ErrAwaitTimeout = errors.New("timed out waiting for an assistant response")

// Poller bridges the synchronous command flow with the asynchronous
// ledger log: it re-reads the full log until a new assistant turn shows
// up past the caller's cursor.
type Poller struct {
	gateway  LedgerGateway
	sessions *session.Store
	interval time.Duration
	attempts int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewPoller(gateway LedgerGateway, sessions *session.Store, interval time.Duration, attempts int, logger *slog.Logger, m *metrics.Metrics) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Poller{
		gateway:  gateway,
		sessions: sessions,
		interval: interval,
		attempts: attempts,
		logger:   logger,
		metrics:  m,
	}
}

// AwaitResponse polls until the first assistant turn at or after cursor
// appears. Only that turn is appended to the local session; anything
// after it in the same read is picked up by a later command's poll.
// Read failures count as zero new turns for their cycle.
func (p *Poller) AwaitResponse(ctx context.Context, sessionID string, cursor int) (models.ResponseEnvelope, error) {
	for attempt := 1; attempt <= p.attempts; attempt++ {
		p.metrics.PollCyclesTotal.Inc()

		turns, err := p.gateway.ReadLog(ctx, sessionID)
		if err != nil {
			p.logger.Warn("ledger read failed during poll",
				"session_id", sessionID,
				"attempt", attempt,
				"error", err)
			p.metrics.LedgerErrorsTotal.WithLabelValues("read_log").Inc()
			turns = nil
		}

		for i := cursor; i < len(turns); i++ {
			if turns[i].Role != models.RoleAssistant {
				continue
			}
			p.sessions.Append(sessionID, turns[i])
			return envelope.Decode(turns[i].Content), nil
		}

		if attempt == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return models.ResponseEnvelope{}, ctx.Err()
		case <-time.After(p.interval):
		}
	}

	p.metrics.PollTimeoutsTotal.Inc()
	return models.ResponseEnvelope{}, ErrAwaitTimeout
}
