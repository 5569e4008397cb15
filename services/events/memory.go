package eventsvc

import (
	"context"
	"sync"

	"github.com/trezcool/tutorhub/core"
)

const subscriberBuffer = 16

type memoryBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan core.AuthEvent]struct{} // {userID: {ch}}
}

var _ core.EventBroker = (*memoryBroker)(nil)

// NewMemoryBroker fans events out within the process. Slow subscribers miss events rather than block publishers.
func NewMemoryBroker() core.EventBroker {
	return &memoryBroker{subs: make(map[string]map[chan core.AuthEvent]struct{})}
}

func (b *memoryBroker) Publish(_ context.Context, evt core.AuthEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[evt.UserID] {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

func (b *memoryBroker) Subscribe(ctx context.Context, userID string) (<-chan core.AuthEvent, error) {
	ch := make(chan core.AuthEvent, subscriberBuffer)
	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan core.AuthEvent]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[userID], ch)
		if len(b.subs[userID]) == 0 {
			delete(b.subs, userID)
		}
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}
