// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package dashboard

import (
	"fmt"
	"sync"
	"time"
)

// NotificationType classifies a feed entry.
type NotificationType string

const (
	NotifyAdded     NotificationType = "added"
	NotifyStarted   NotificationType = "started"
	NotifyCompleted NotificationType = "completed"
	NotifyError     NotificationType = "error"
	NotifyConnLost  NotificationType = "connection_lost"
	NotifyConnBack  NotificationType = "connection_restored"
)

// Notification is one entry in the activity feed.
type Notification struct {
	ID        int              `json:"id"`
	Type      NotificationType `json:"type"`
	TorrentID string           `json:"torrentId,omitempty"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"createdAt"`
	Read      bool             `json:"read"`
}

const defaultFeedCapacity = 100

// Feed is a bounded FIFO of notifications, newest first on read. Lifecycle
// push events land here; they never touch the torrent list itself.
type Feed struct {
	mu       sync.Mutex
	entries  []Notification
	nextID   int
	capacity int
}

func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = defaultFeedCapacity
	}
	return &Feed{capacity: capacity}
}

// Add appends a notification, evicting the oldest past capacity.
func (f *Feed) Add(kind NotificationType, torrentID, format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.entries = append(f.entries, Notification{
		ID:        f.nextID,
		Type:      kind,
		TorrentID: torrentID,
		Message:   fmt.Sprintf(format, args...),
		CreatedAt: time.Now(),
	})
	if len(f.entries) > f.capacity {
		f.entries = f.entries[len(f.entries)-f.capacity:]
	}
}

// List returns notifications newest first.
func (f *Feed) List() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Notification, len(f.entries))
	for i, n := range f.entries {
		out[len(f.entries)-1-i] = n
	}
	return out
}

// UnreadCount reports how many notifications have not been marked read.
func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, n := range f.entries {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkRead flags one notification as read.
func (f *Feed) MarkRead(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead flags everything as read.
func (f *Feed) MarkAllRead() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.entries {
		f.entries[i].Read = true
	}
}

// Clear empties the feed.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = nil
}
