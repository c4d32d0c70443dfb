package audit

import (
	"sync"

	"github.com/revittco/costgate/internal/store"
)

// Bus fans recorded tool calls out to live subscribers. Publishing never
// blocks; a subscriber that falls behind loses records.
type Bus struct {
	mu   sync.RWMutex
	subs map[<-chan store.AuditRecord]chan store.AuditRecord
}

func NewBus() *Bus {
	return &Bus{subs: make(map[<-chan store.AuditRecord]chan store.AuditRecord)}
}

// Subscribe returns a buffered channel of records. Pair with Unsubscribe.
func (b *Bus) Subscribe() <-chan store.AuditRecord {
	ch := make(chan store.AuditRecord, 32)
	b.mu.Lock()
	b.subs[ch] = ch
	b.mu.Unlock()
	return ch
}

// Unsubscribe closes ch. Unknown channels are ignored.
func (b *Bus) Unsubscribe(ch <-chan store.AuditRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if send, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(send)
	}
}

func (b *Bus) publish(rec store.AuditRecord) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}
