// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package dashboard

import (
	"sync"

	"github.com/techmedaddy/dashd/internal/backend"
)

// DefaultSpeedWindow is the number of bandwidth samples kept for the graph.
// At one sample per second this covers the last minute.
const DefaultSpeedWindow = 60

// SpeedRing is a fixed-capacity FIFO of bandwidth samples. Once full, each
// new sample evicts the oldest.
type SpeedRing struct {
	mu       sync.RWMutex
	samples  []backend.SpeedSample
	capacity int
	start    int
	size     int
}

func NewSpeedRing(capacity int) *SpeedRing {
	if capacity <= 0 {
		capacity = DefaultSpeedWindow
	}
	return &SpeedRing{
		samples:  make([]backend.SpeedSample, capacity),
		capacity: capacity,
	}
}

// Push appends a sample, evicting the oldest when the window is full.
func (r *SpeedRing) Push(sample backend.SpeedSample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < r.capacity {
		r.samples[(r.start+r.size)%r.capacity] = sample
		r.size++
		return
	}
	r.samples[r.start] = sample
	r.start = (r.start + 1) % r.capacity
}

// Samples returns the window contents oldest first.
func (r *SpeedRing) Samples() []backend.SpeedSample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]backend.SpeedSample, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.samples[(r.start+i)%r.capacity]
	}
	return out
}

// Len reports the number of samples currently held.
func (r *SpeedRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Latest returns the newest sample, if any.
func (r *SpeedRing) Latest() (backend.SpeedSample, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.size == 0 {
		return backend.SpeedSample{}, false
	}
	return r.samples[(r.start+r.size-1)%r.capacity], true
}

// Reset drops every sample. Used when seeding the window from an
// engine-side history snapshot.
func (r *SpeedRing) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = 0
	r.size = 0
}
