package auth

import "sync"

// Change is published whenever a principal signs in or out. Subscribers see
// the new session view, not a diff; an absent session after a present one is
// a sign-out.
type Change struct {
	Session Session
}

// Broker fans out session changes to subscribers. The navigation controller
// subscribes to re-resolve roles and correct its position; nothing else
// should need to.
//
// Publishing never blocks: a subscriber that has fallen behind has its
// pending change replaced by the newest one, since only the latest session
// state matters for access decisions.
type Broker struct {
	mu   sync.Mutex
	subs map[chan Change]struct{}
}

// NewBroker creates an empty session change broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[chan Change]struct{})}
}

// Subscribe registers a subscriber. The returned cancel function must be
// called to release the subscription.
func (b *Broker) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 1)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a change to every subscriber, coalescing with any
// undelivered previous change.
func (b *Broker) Publish(change Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- change:
		default:
			// drain the stale change, then deliver the new one
			select {
			case <-ch:
			default:
			}
			ch <- change
		}
	}
}
