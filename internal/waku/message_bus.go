package waku

import "sync"

// DirectMessage is the transport wire unit: one text message addressed to
// a single peer.
type DirectMessage struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

// messageBus backs the mock transport: an in-process recipient-keyed bus
// with a mailbox for messages arriving before the recipient subscribes.
type messageBus struct {
	mu          sync.Mutex
	subscribers map[string]func(DirectMessage)
	mailbox     map[string][]DirectMessage
}

var globalBus = &messageBus{
	subscribers: make(map[string]func(DirectMessage)),
	mailbox:     make(map[string][]DirectMessage),
}

func (b *messageBus) publish(msg DirectMessage) {
	b.mu.Lock()
	handler, ok := b.subscribers[msg.Recipient]
	if !ok {
		b.mailbox[msg.Recipient] = append(b.mailbox[msg.Recipient], msg)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	// Deliver synchronously, outside the bus lock, so a sender's burst
	// reaches the recipient in publish order.
	handler(msg)
}

func (b *messageBus) subscribe(recipient string, handler func(DirectMessage)) {
	b.mu.Lock()
	b.subscribers[recipient] = handler
	pending := append([]DirectMessage(nil), b.mailbox[recipient]...)
	delete(b.mailbox, recipient)
	b.mu.Unlock()

	for _, msg := range pending {
		handler(msg)
	}
}

func (b *messageBus) unsubscribe(recipient string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, recipient)
}
