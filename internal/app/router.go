package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chainchat/go-backend/internal/metrics"
	"chainchat/go-backend/internal/platform/ratelimiter"
	"chainchat/go-backend/internal/waku"
)

// Router consumes the transport's conversation stream and serves each
// conversation on its own goroutine. Messages within one conversation
// are handled strictly in arrival order, so a session id created in a
// conversation only ever sees one in-flight command at a time.
type Router struct {
	node        *waku.Node
	dispatcher  *Dispatcher
	limiter     *ratelimiter.SenderLimiter
	logger      *slog.Logger
	metrics     *metrics.Metrics
	sendTimeout time.Duration
}

func NewRouter(node *waku.Node, dispatcher *Dispatcher, limiter *ratelimiter.SenderLimiter, logger *slog.Logger, m *metrics.Metrics) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Router{
		node:        node,
		dispatcher:  dispatcher,
		limiter:     limiter,
		logger:      logger,
		metrics:     m,
		sendTimeout: SendTimeout,
	}
}

// Run blocks until ctx is cancelled and every open conversation has
// drained.
func (r *Router) Run(ctx context.Context) error {
	convs, err := r.node.Conversations(ctx, r.logger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for conv := range convs {
		wg.Add(1)
		go func(conv *waku.Conversation) {
			defer wg.Done()
			r.serveConversation(ctx, conv)
		}(conv)
	}
	wg.Wait()
	return nil
}

func (r *Router) serveConversation(ctx context.Context, conv *waku.Conversation) {
	logger := r.logger.With("peer", conv.PeerAddress())
	logger.Info("conversation opened")
	defer logger.Info("conversation closed")

	self := r.node.Address()
	for msg := range conv.Messages() {
		if msg.Sender == self {
			continue
		}
		if !r.limiter.Allow(msg.Sender, time.Now()) {
			r.metrics.DroppedMessages.Inc()
			logger.Warn("rate limited inbound message", "message_id", msg.ID)
			continue
		}

		for _, reply := range r.dispatcher.Handle(ctx, msg.Content) {
			if err := r.sendReply(ctx, conv, reply); err != nil {
				logger.Warn("reply send failed", "message_id", msg.ID, "error", err)
				break
			}
			r.metrics.RepliesTotal.Inc()
		}
	}
}

func (r *Router) sendReply(ctx context.Context, conv *waku.Conversation, text string) error {
	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()
	return conv.Send(sendCtx, text)
}
