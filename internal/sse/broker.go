// Package sse implements a Server-Sent Events broker that delivers events to
// individual editor windows or to all of them.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event represents an SSE event.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// envelope addresses an event to one window, or to every window when
// window is empty.
type envelope struct {
	window string
	event  Event
}

type subscription struct {
	window string
	ch     chan []byte
}

type countReq struct {
	window string
	resp   chan int
}

const clientBuffer = 64

// Broker manages SSE client connections and routes events to them.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (the client set). Public methods communicate with this loop through
// channels, so no mutexes are required.
type Broker struct {
	heartbeat time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan envelope
	countReqCh    chan countReq

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. Connected streams receive a comment
// line every heartbeat interval; zero selects 15s.
func NewBroker(heartbeat time.Duration) *Broker {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}

	b := &Broker{
		heartbeat:     heartbeat,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan envelope, 256),
		countReqCh:    make(chan countReq),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)

	deliver := func(env envelope) {
		raw, err := encode(env.event)
		if err != nil {
			return
		}
		for ch, window := range clients {
			if env.window != "" && env.window != window {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.window

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case env := <-b.publishCh:
			deliver(env)

		case req := <-b.countReqCh:
			n := 0
			for _, window := range clients {
				if req.window == "" || req.window == window {
					n++
				}
			}
			req.resp <- n
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client stream for window and returns its channel.
func (b *Broker) Subscribe(window string) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{window: window, ch: ch}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected streams for window, or for all
// windows when window is empty.
func (b *Broker) ClientCount(window string) int {
	if b.closed.Load() {
		return 0
	}

	req := countReq{window: window, resp: make(chan int, 1)}
	select {
	case b.countReqCh <- req:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-req.resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to every connected window.
func (b *Broker) Publish(event Event) {
	b.send(envelope{event: event})
}

// PublishTo sends an event to the streams of a single window.
func (b *Broker) PublishTo(window string, event Event) {
	if window == "" {
		return
	}
	b.send(envelope{window: window, event: event})
}

func (b *Broker) send(env envelope) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- env:
	case <-b.stopped:
	}
}

// Serve streams events for window to the client until the request ends.
func (b *Broker) Serve(w http.ResponseWriter, r *http.Request, window string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(window)
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
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
