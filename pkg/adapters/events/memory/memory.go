package memory

import (
	"context"
	"sync"

	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/aescanero/hubcycle/pkg/ports"
)

// subscription delivers its events in publish order from one goroutine
type subscription struct {
	id      uint64
	ctx     context.Context
	handler ports.EventHandler

	mu      sync.Mutex
	pending []domain.Event
	notify  chan struct{}
	stop    chan struct{}
	once    sync.Once
}

func newSubscription(ctx context.Context, id uint64, handler ports.EventHandler) *subscription {
	s := &subscription{
		id:      id,
		ctx:     ctx,
		handler: handler,
		notify:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *subscription) enqueue(event domain.Event) {
	s.mu.Lock()
	s.pending = append(s.pending, event)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.notify:
		case <-s.stop:
			return
		}

		for {
			s.mu.Lock()
			batch := s.pending
			s.pending = nil
			s.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, event := range batch {
				select {
				case <-s.stop:
					return
				default:
				}
				_ = s.handler(s.ctx, event)
			}
		}
	}
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.stop) })
}

// InMemoryEventBus implements EventBus by fanning events out to in-process
// handlers. Each subscription gets its events in publish order.
type InMemoryEventBus struct {
	subscribers map[string][]*subscription
	nextID      uint64
	mu          sync.RWMutex
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make(map[string][]*subscription),
	}
}

// Publish queues an event for every subscriber of a topic
func (e *InMemoryEventBus) Publish(_ context.Context, topic string, event domain.Event) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, sub := range e.subscribers[topic] {
		sub.enqueue(event)
	}
	return nil
}

// Subscribe registers handler on topic until ctx is done
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	e.nextID++
	sub := newSubscription(ctx, e.nextID, handler)
	e.subscribers[topic] = append(e.subscribers[topic], sub)
	e.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			e.unsubscribe(topic, sub.id)
		case <-sub.stop:
		}
	}()

	return nil
}

// Unsubscribe removes all subscriptions from a topic
func (e *InMemoryEventBus) Unsubscribe(ctx context.Context, topic string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, sub := range e.subscribers[topic] {
		sub.close()
	}
	delete(e.subscribers, topic)
	return nil
}

// Close removes every subscriber
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, subs := range e.subscribers {
		for _, sub := range subs {
			sub.close()
		}
	}
	e.subscribers = make(map[string][]*subscription)
	return nil
}

// unsubscribe removes one handler from a topic
func (e *InMemoryEventBus) unsubscribe(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subscribers[topic]
	for i, s := range subs {
		if s.id == id {
			s.close()
			e.subscribers[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}
