package events

import (
	"sync"
	"testing"

	"github.com/logos-network/blockcore/core"
)

func TestEmitDeliversOnlyToMatchingType(t *testing.T) {
	e := NewEmitter()
	var got []Event
	var mu sync.Mutex
	e.Subscribe(EventEpochBlockCommit, func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	e.Emit(Event{Type: EventRequestBlockCommit, Sequence: 1})
	e.Emit(Event{Type: EventEpochBlockCommit, Sequence: 2})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Sequence != 2 {
		t.Fatalf("got %+v, want one EventEpochBlockCommit with sequence 2", got)
	}
}

func TestEmitRecoversFromHandlerPanic(t *testing.T) {
	e := NewEmitter()
	called := false
	e.Subscribe(EventRequestBlockCommit, func(Event) { panic("boom") })
	e.Subscribe(EventRequestBlockCommit, func(Event) { called = true })

	e.Emit(Event{Type: EventRequestBlockCommit})

	if !called {
		t.Fatal("second handler should still run after the first panics")
	}
}

func TestTypeForKind(t *testing.T) {
	cases := map[core.Kind]EventType{
		core.KindRB: EventRequestBlockCommit,
		core.KindMB: EventMicroBlockCommit,
		core.KindEB: EventEpochBlockCommit,
	}
	for kind, want := range cases {
		if got := TypeForKind(kind); got != want {
			t.Errorf("TypeForKind(%v) = %v, want %v", kind, got, want)
		}
	}
}
