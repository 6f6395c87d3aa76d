// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package dashboard

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/techmedaddy/dashd/internal/backend"
	"github.com/techmedaddy/dashd/internal/push"
)

// Reconciler merges push events into the store between polls. Progress
// events patch torrents in place; lifecycle events only feed the
// notification list, membership changes always wait for the next poll.
type Reconciler struct {
	store  *Store
	ring   *SpeedRing
	feed   *Feed
	unsubs []func()
}

func NewReconciler(store *Store, ring *SpeedRing, feed *Feed) *Reconciler {
	return &Reconciler{
		store: store,
		ring:  ring,
		feed:  feed,
	}
}

// Bind subscribes the reconciler to the push bus.
func (r *Reconciler) Bind(bus *push.Bus) {
	r.unsubs = append(r.unsubs,
		bus.Subscribe(push.EventStatsSpeed, r.onSpeed),
		bus.Subscribe(push.EventTorrentProgress, r.onProgress),
		bus.Subscribe(push.EventTorrentAdded, r.lifecycle(NotifyAdded, "Added %s")),
		bus.Subscribe(push.EventTorrentStarted, r.lifecycle(NotifyStarted, "Started %s")),
		bus.Subscribe(push.EventTorrentCompleted, r.lifecycle(NotifyCompleted, "Completed %s")),
		bus.Subscribe(push.EventTorrentError, r.onTorrentError),
		bus.Subscribe(push.EventConnect, r.onConnect),
		bus.Subscribe(push.EventDisconnect, r.onDisconnect),
	)
}

// Unbind drops every subscription made by Bind.
func (r *Reconciler) Unbind() {
	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil
}

func (r *Reconciler) onSpeed(payload json.RawMessage) {
	var sample backend.SpeedSample
	if err := json.Unmarshal(payload, &sample); err != nil {
		log.Warn().Err(err).Msg("Dropping malformed speed event")
		return
	}
	if sample.Timestamp == 0 {
		sample.Timestamp = time.Now().UnixMilli()
	}
	r.ring.Push(sample)
}

func (r *Reconciler) onProgress(payload json.RawMessage) {
	var patch ProgressPatch
	if err := json.Unmarshal(payload, &patch); err != nil {
		log.Warn().Err(err).Msg("Dropping malformed progress event")
		return
	}
	if patch.ID == "" {
		return
	}
	if !r.store.Patch(patch) {
		// Torrent not in the snapshot yet. The poll owns membership, so
		// this update is simply dropped.
		log.Debug().Str("torrentId", patch.ID).Msg("Progress event for unknown torrent dropped")
	}
}

type lifecyclePayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

func (r *Reconciler) lifecycle(kind NotificationType, format string) push.Handler {
	return func(payload json.RawMessage) {
		var event lifecyclePayload
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Warn().Err(err).Str("kind", string(kind)).Msg("Dropping malformed lifecycle event")
			return
		}
		name := event.Name
		if name == "" {
			name = event.ID
		}
		r.feed.Add(kind, event.ID, format, name)
	}
}

func (r *Reconciler) onTorrentError(payload json.RawMessage) {
	var event lifecyclePayload
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Warn().Err(err).Msg("Dropping malformed torrent error event")
		return
	}
	name := event.Name
	if name == "" {
		name = event.ID
	}
	if event.Error != "" {
		r.feed.Add(NotifyError, event.ID, "%s failed: %s", name, event.Error)
		return
	}
	r.feed.Add(NotifyError, event.ID, "%s failed", name)
}

func (r *Reconciler) onConnect(json.RawMessage) {
	r.feed.Add(NotifyConnBack, "", "Live updates connected")
}

func (r *Reconciler) onDisconnect(json.RawMessage) {
	r.feed.Add(NotifyConnLost, "", "Live updates lost, falling back to polling")
}
