// Package notify implements spec.md §6.3's callback_address/port/target
// option: a fire-and-forget HTTP POST to an operator-configured
// endpoint after every block commit. Grounded on the teacher's
// events/emitter.go (subscribe/emit, panic-recovered handlers) and
// indexer/indexer.go's pattern of subscribing an external sink to the
// emitter rather than wiring commit notification directly into the
// write path.
package notify

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/logos-network/blockcore/events"
)

// defaultTimeout bounds how long one callback POST may block a
// notifier goroutine; a slow or dead callback target must never stall
// block commit.
const defaultTimeout = 5 * time.Second

// Sink posts a JSON body describing each commit event to a fixed URL.
// It is a best-effort fan-out: POST failures are logged and dropped,
// never retried or surfaced back to the write queue.
type Sink struct {
	url    string
	client *http.Client
}

// NewSink builds a Sink posting to address:port/target, the three
// separate callback_* config fields of spec.md §6.3 joined into a URL.
func NewSink(address string, port int, target string) *Sink {
	return &Sink{
		url:    buildURL(address, port, target),
		client: &http.Client{Timeout: defaultTimeout},
	}
}

func buildURL(address string, port int, target string) string {
	if target == "" {
		target = "/"
	}
	if target[0] != '/' {
		target = "/" + target
	}
	return address + ":" + strconv.Itoa(port) + target
}

// Subscribe registers s on every commit event type e can emit. Call
// once during node startup, after constructing the Emitter and before
// Start()ing the write queue.
func (s *Sink) Subscribe(e *events.Emitter) {
	for _, typ := range []events.EventType{
		events.EventRequestBlockCommit,
		events.EventMicroBlockCommit,
		events.EventEpochBlockCommit,
	} {
		e.Subscribe(typ, s.handle)
	}
}

func (s *Sink) handle(ev events.Event) {
	go s.post(ev)
}

func (s *Sink) post(ev events.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[notify] marshal event: %v", err)
		return
	}
	resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[notify] post to %s failed: %v", s.url, err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("[notify] %s responded %s", s.url, resp.Status)
	}
}
