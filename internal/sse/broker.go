// Package sse streams note changes and fired reminders to clients as
// Server-Sent Events.
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/zap/internal/reminder"
)

// Event types sent to clients.
const (
	TypeNoteCreated   = "note.created"
	TypeNoteUpdated   = "note.updated"
	TypeNoteDeleted   = "note.deleted"
	TypeGraphUpdated  = "graph.updated"
	TypeReminderFired = "reminder.fired"
)

const (
	// heartbeat keeps idle connections open through proxies.
	heartbeat      = 30 * time.Second
	defaultBacklog = 64
	clientBuffer   = 64
)

// ErrClosed is returned by Notify after Close.
var ErrClosed = errors.New("sse: broker closed")

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

var noteEventTypes = map[string]string{
	"created": TypeNoteCreated,
	"updated": TypeNoteUpdated,
	"deleted": TypeNoteDeleted,
}

type frame struct {
	id  uint64
	raw []byte
}

// loop is the state owned by the broker goroutine.
type loop struct {
	clients   map[chan []byte]struct{}
	backlog   []frame
	seq       uint64
	lastGraph time.Time
}

// Option configures a Broker.
type Option func(*Broker)

// WithBacklog sets how many recent events are kept for clients resuming
// with Last-Event-ID. Zero disables replay.
func WithBacklog(n int) Option { return func(b *Broker) { b.backlog = n } }

// Broker fans events out to SSE clients.
//
// A single goroutine owns the client set, the event backlog and the graph
// throttle. Public methods hand it closures over the ops channel.
type Broker struct {
	graphMin time.Duration
	backlog  int

	ops     chan func(*loop)
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. graph.updated is sent at most once per
// graphThrottle.
func NewBroker(graphThrottle time.Duration, opts ...Option) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}
	b := &Broker{
		graphMin: graphThrottle,
		backlog:  defaultBacklog,
		ops:      make(chan func(*loop), 256),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)
	st := &loop{clients: make(map[chan []byte]struct{})}
	for {
		select {
		case <-b.stopCh:
			for ch := range st.clients {
				close(ch)
			}
			return
		case op := <-b.ops:
			op(st)
		}
	}
}

// do runs op on the broker goroutine. It reports false once the broker is
// closed.
func (b *Broker) do(op func(*loop)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.stopped:
		return false
	}
}

// call runs op and waits for it to finish.
func (b *Broker) call(op func(*loop)) bool {
	done := make(chan struct{})
	if !b.do(func(st *loop) { op(st); close(done) }) {
		return false
	}
	select {
	case <-done:
		return true
	case <-b.stopped:
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

func (b *Broker) broadcast(st *loop, ev Event) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return
	}
	st.seq++
	f := frame{id: st.seq, raw: []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", st.seq, ev.Type, payload))}
	if b.backlog > 0 {
		st.backlog = append(st.backlog, f)
		if over := len(st.backlog) - b.backlog; over > 0 {
			st.backlog = st.backlog[over:]
		}
	}
	for ch := range st.clients {
		select {
		case ch <- f.raw:
		default:
			// Slow client: drop rather than stall the loop.
		}
	}
}

// Close stops the broker and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	return b.subscribe(0, false)
}

// SubscribeAfter adds a client and queues the kept events newer than
// lastID.
func (b *Broker) SubscribeAfter(lastID uint64) chan []byte {
	return b.subscribe(lastID, true)
}

func (b *Broker) subscribe(lastID uint64, replay bool) chan []byte {
	ch := make(chan []byte, clientBuffer)
	ok := b.call(func(st *loop) {
		if replay {
			for _, f := range st.backlog {
				if f.id <= lastID {
					continue
				}
				select {
				case ch <- f.raw:
				default:
				}
			}
		}
		st.clients[ch] = struct{}{}
	})
	if !ok {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.call(func(st *loop) {
		if _, ok := st.clients[ch]; ok {
			delete(st.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	var n int
	if !b.call(func(st *loop) { n = len(st.clients) }) {
		return 0
	}
	return n
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	b.do(func(st *loop) { b.broadcast(st, event) })
}

// PublishNoteEvent publishes a note change and a throttled graph.updated
// event. kind is "created", "updated" or "deleted"; other kinds are ignored.
func (b *Broker) PublishNoteEvent(kind, noteID string) {
	typ, ok := noteEventTypes[kind]
	if !ok {
		return
	}
	b.do(func(st *loop) {
		b.broadcast(st, Event{Type: typ, Data: map[string]string{"id": noteID}})
		if now := time.Now(); now.Sub(st.lastGraph) >= b.graphMin {
			st.lastGraph = now
			b.broadcast(st, Event{Type: TypeGraphUpdated, Data: map[string]string{}})
		}
	})
}

// Notify broadcasts a fired reminder. It satisfies reminder.Notifier.
func (b *Broker) Notify(_ context.Context, n reminder.Notification) error {
	if !b.do(func(st *loop) { b.broadcast(st, Event{Type: TypeReminderFired, Data: n}) }) {
		return ErrClosed
	}
	return nil
}

var _ reminder.Notifier = (*Broker)(nil)

// ServeHTTP streams events to one client (GET /api/events). A client that
// reconnects with Last-Event-ID first receives the kept events it missed.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var ch chan []byte
	if lastID, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64); err == nil {
		ch = b.SubscribeAfter(lastID)
	} else {
		ch = b.Subscribe()
	}
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(heartbeat)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
