package waku

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// conversationBuffer bounds each peer's inbound queue; a peer that floods
// faster than its conversation drains loses the overflow, not the node.
const conversationBuffer = 64

// Conversation is an ordered message exchange with one peer. Inbound
// messages surface on Messages in arrival order; Send publishes a reply
// back to the peer.
type Conversation struct {
	peer  string
	node  *Node
	inbox chan DirectMessage
}

func (c *Conversation) PeerAddress() string { return c.peer }

// Messages is the conversation's inbound stream. It is closed when the
// stream's context is cancelled.
func (c *Conversation) Messages() <-chan DirectMessage { return c.inbox }

func (c *Conversation) Send(ctx context.Context, text string) error {
	return c.node.Publish(ctx, DirectMessage{
		ID:        uuid.NewString(),
		Sender:    c.node.Address(),
		Recipient: c.peer,
		Content:   text,
	})
}

// Conversations subscribes the node and demultiplexes inbound messages
// into per-peer conversations. A conversation materializes on the first
// message from a previously unseen peer and is emitted on the returned
// channel. Cancelling ctx closes every conversation and the channel.
func (n *Node) Conversations(ctx context.Context, logger *slog.Logger) (<-chan *Conversation, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &conversationDemux{
		node:   n,
		logger: logger,
		byPeer: make(map[string]*Conversation),
		out:    make(chan *Conversation, 8),
	}
	if err := n.Subscribe(func(msg DirectMessage) { d.dispatch(ctx, msg) }); err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		d.close()
	}()
	return d.out, nil
}

type conversationDemux struct {
	node   *Node
	logger *slog.Logger
	mu     sync.Mutex
	byPeer map[string]*Conversation
	out    chan *Conversation
	closed bool
}

func (d *conversationDemux) dispatch(ctx context.Context, msg DirectMessage) {
	if msg.Sender == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	conv, ok := d.byPeer[msg.Sender]
	if !ok {
		conv = &Conversation{
			peer:  msg.Sender,
			node:  d.node,
			inbox: make(chan DirectMessage, conversationBuffer),
		}
		d.byPeer[msg.Sender] = conv
		select {
		case d.out <- conv:
		case <-ctx.Done():
			return
		}
	}
	select {
	case conv.inbox <- msg:
	default:
		d.logger.Warn("conversation inbox full, dropping message", "peer", msg.Sender, "message_id", msg.ID)
	}
}

func (d *conversationDemux) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, conv := range d.byPeer {
		close(conv.inbox)
	}
	close(d.out)
}
