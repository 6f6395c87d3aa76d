// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package push

import (
	"encoding/json"
	"sync"
)

// Event names delivered by the engine push channel. The lifecycle names
// (connect, disconnect, connect_error) are synthesized locally by the
// session; the rest arrive on the wire.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"

	EventStatsSpeed       = "stats:speed"
	EventTorrentAdded     = "torrent:added"
	EventTorrentStarted   = "torrent:started"
	EventTorrentCompleted = "torrent:completed"
	EventTorrentError     = "torrent:error"
	EventTorrentProgress  = "torrent:progress"
)

// Handler receives the raw payload of one event occurrence.
type Handler func(payload json.RawMessage)

type subscription struct {
	id int
	fn Handler
}

// Bus fans incoming push events out to subscribers. Handlers for an event
// run in registration order; a handler registered twice runs twice.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers fn for event and returns its unsubscribe func.
// Calling the returned func more than once is harmless.
func (b *Bus) Subscribe(event string, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[event]
		for i, sub := range list {
			if sub.id == id {
				b.subs[event] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(b.subs[event]) == 0 {
			delete(b.subs, event)
		}
	}
}

// Emit delivers payload to every handler registered for event, in the
// order they subscribed. Handlers run synchronously on the caller's
// goroutine.
func (b *Bus) Emit(event string, payload json.RawMessage) {
	b.mu.Lock()
	list := b.subs[event]
	snapshot := make([]subscription, len(list))
	copy(snapshot, list)
	b.mu.Unlock()

	for _, sub := range snapshot {
		sub.fn(payload)
	}
}

// Clear drops every subscription. Called when the last session user
// releases its hold.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.subs = make(map[string][]subscription)
	b.mu.Unlock()
}

// HandlerCount reports the number of handlers registered for event.
func (b *Bus) HandlerCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[event])
}
