package events

import (
	"log"
	"sync"

	"github.com/logos-network/blockcore/core"
)

// EventType labels which chain a commit advanced.
type EventType string

const (
	EventRequestBlockCommit EventType = "request_block_commit"
	EventMicroBlockCommit   EventType = "micro_block_commit"
	EventEpochBlockCommit   EventType = "epoch_block_commit"
)

// Event carries the identity of a block just committed by the write
// queue (spec.md §4.1's post-commit hook), for the callback_address
// sink and any other in-process subscriber.
type Event struct {
	Type        EventType `json:"type"`
	Hash        core.Hash `json:"hash"`
	EpochNumber uint32    `json:"epoch_number"`
	Sequence    uint32    `json:"sequence"`
	DelegateID  uint8     `json:"delegate_id,omitempty"`
}

// TypeForKind maps a block kind to its commit event type.
func TypeForKind(k core.Kind) EventType {
	switch k {
	case core.KindMB:
		return EventMicroBlockCommit
	case core.KindEB:
		return EventEpochBlockCommit
	default:
		return EventRequestBlockCommit
	}
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot crash the node or halt block production.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[events] handler panicked for %s: %v", ev.Type, r)
				}
			}()
			h(ev)
		}()
	}
}
