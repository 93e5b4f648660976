// Package bus carries the case pipeline's events: submissions queued
// by the API layer, completions and alerts raised by the job processor.
// Two transports implement domain.EventBus: in-process channels for
// Community deployments and NATS for Pro.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

const requestTimeout = 30 * time.Second

// ChannelBus implements EventBus over in-process channels for
// single-node Community deployments. Fan-out is keyed by topic and
// tenant; a domain.TenantAll subscription receives the topic for every
// tenant, which is how a single job processor drains all submissions.
type ChannelBus struct {
	mu         sync.RWMutex
	bufferSize int
	// topic → tenant → subscribers
	topics map[string]map[string][]*channelSubscription
	closed bool
}

type channelSubscription struct {
	id       string
	tenantID string
	topic    string
	handler  domain.MessageHandler
	msgCh    chan *domain.Message
	ctx      context.Context
	cancel   context.CancelFunc
	bus      *ChannelBus
}

// NewChannelBus creates a channel-based event bus.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		bufferSize: bufferSize,
		topics:     make(map[string]map[string][]*channelSubscription),
	}
}

// Publish sends a message to every subscriber of the topic: those on
// the publishing tenant plus any wildcard subscribers. Delivery is
// non-blocking; a full subscriber buffer drops the message with a
// warning rather than stalling the publisher.
func (b *ChannelBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}

	msg := &domain.Message{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}

	var subs []*channelSubscription
	if tenants, ok := b.topics[topic]; ok {
		subs = append(subs, tenants[tenantID]...)
		if tenantID != domain.TenantAll {
			subs = append(subs, tenants[domain.TenantAll]...)
		}
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.msgCh <- msg:
		default:
			slog.Warn("subscriber buffer full, dropping message",
				"topic", topic,
				"tenant_id", tenantID,
			)
		}
	}

	return nil
}

// Subscribe registers a handler for a topic on one tenant, or on every
// tenant when tenantID is domain.TenantAll.
func (b *ChannelBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	subCtx, cancel := context.WithCancel(ctx)

	sub := &channelSubscription{
		id:       uuid.New().String(),
		tenantID: tenantID,
		topic:    topic,
		handler:  handler,
		msgCh:    make(chan *domain.Message, b.bufferSize),
		ctx:      subCtx,
		cancel:   cancel,
		bus:      b,
	}

	go sub.run()

	if b.topics[topic] == nil {
		b.topics[topic] = make(map[string][]*channelSubscription)
	}
	b.topics[topic][tenantID] = append(b.topics[topic][tenantID], sub)

	return sub, nil
}

// Request implements request-reply over a per-request reply topic.
func (b *ChannelBus) Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	replyCh := make(chan []byte, 1)
	replyTopic := topic + ".reply." + uuid.New().String()

	sub, err := b.Subscribe(ctx, tenantID, replyTopic, func(ctx context.Context, msg *domain.Message) error {
		select {
		case replyCh <- msg.Payload:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, tenantID, topic, payload); err != nil {
		return nil, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(requestTimeout):
		return nil, fmt.Errorf("request timeout")
	}
}

// Ping checks bus health.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	return nil
}

// Close shuts down the bus and every subscription.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, tenants := range b.topics {
		for _, subs := range tenants {
			for _, sub := range subs {
				sub.cancel()
				close(sub.msgCh)
			}
		}
	}

	b.topics = make(map[string]map[string][]*channelSubscription)
	return nil
}

// remove detaches a subscription so publishes stop filling its buffer.
func (b *ChannelBus) remove(sub *channelSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tenants, ok := b.topics[sub.topic]
	if !ok {
		return
	}
	subs := tenants[sub.tenantID]
	for i, s := range subs {
		if s.id == sub.id {
			tenants[sub.tenantID] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// run drains the subscription's buffer until it is cancelled.
func (s *channelSubscription) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.msgCh:
			if msg != nil {
				_ = s.handler(s.ctx, msg)
			}
		}
	}
}

// Unsubscribe stops receiving messages.
func (s *channelSubscription) Unsubscribe() error {
	s.cancel()
	s.bus.remove(s)
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSubscription) Topic() string {
	return s.topic
}
