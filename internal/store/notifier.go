package store

import (
	"context"
	"sync"
)

// Notifier fans out "something changed" signals per partition path. Signals
// carry no payload; listeners re-read the window.
type Notifier interface {
	Publish(ctx context.Context, topic string) error
	// Listen returns once the listener is active.
	Listen(ctx context.Context, topic string) (Listener, error)
	Close() error
}

// Listener coalesces signals: a burst of publishes may arrive as one.
type Listener interface {
	C() <-chan struct{}
	Close() error
}

// LocalNotifier is an in-process Notifier for single-node deployments.
type LocalNotifier struct {
	mu     sync.Mutex
	topics map[string]map[*localListener]struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{topics: make(map[string]map[*localListener]struct{})}
}

func (n *LocalNotifier) Publish(_ context.Context, topic string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for l := range n.topics[topic] {
		l.signal()
	}
	return nil
}

func (n *LocalNotifier) Listen(_ context.Context, topic string) (Listener, error) {
	l := &localListener{
		notifier: n,
		topic:    topic,
		c:        make(chan struct{}, 1),
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.topics[topic] == nil {
		n.topics[topic] = make(map[*localListener]struct{})
	}
	n.topics[topic][l] = struct{}{}
	return l, nil
}

func (n *LocalNotifier) remove(l *localListener) {
	n.mu.Lock()
	defer n.mu.Unlock()

	listeners := n.topics[l.topic]
	if _, ok := listeners[l]; !ok {
		return
	}
	delete(listeners, l)
	if len(listeners) == 0 {
		delete(n.topics, l.topic)
	}
	close(l.c)
}

func (n *LocalNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for topic, listeners := range n.topics {
		for l := range listeners {
			close(l.c)
		}
		delete(n.topics, topic)
	}
	return nil
}

type localListener struct {
	notifier *LocalNotifier
	topic    string
	c        chan struct{}
}

func (l *localListener) C() <-chan struct{} { return l.c }

// signal must be called with the notifier lock held.
func (l *localListener) signal() {
	select {
	case l.c <- struct{}{}:
	default:
	}
}

func (l *localListener) Close() error {
	l.notifier.remove(l)
	return nil
}
