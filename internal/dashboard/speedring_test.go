// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techmedaddy/dashd/internal/backend"
)

func TestSpeedRingEvictsOldest(t *testing.T) {
	ring := NewSpeedRing(60)

	for i := 1; i <= 61; i++ {
		ring.Push(backend.SpeedSample{Timestamp: int64(i)})
	}

	samples := ring.Samples()
	require.Len(t, samples, 60)
	assert.EqualValues(t, 2, samples[0].Timestamp)
	assert.EqualValues(t, 61, samples[59].Timestamp)
}

func TestSpeedRingPartialFill(t *testing.T) {
	ring := NewSpeedRing(60)

	ring.Push(backend.SpeedSample{Timestamp: 1, DownloadSpeed: 100})
	ring.Push(backend.SpeedSample{Timestamp: 2, DownloadSpeed: 200})

	samples := ring.Samples()
	require.Len(t, samples, 2)
	assert.EqualValues(t, 1, samples[0].Timestamp)
	assert.EqualValues(t, 2, samples[1].Timestamp)

	latest, ok := ring.Latest()
	require.True(t, ok)
	assert.EqualValues(t, 200, latest.DownloadSpeed)
}

func TestSpeedRingEmpty(t *testing.T) {
	ring := NewSpeedRing(60)

	assert.Empty(t, ring.Samples())
	assert.Equal(t, 0, ring.Len())

	_, ok := ring.Latest()
	assert.False(t, ok)
}

func TestSpeedRingReset(t *testing.T) {
	ring := NewSpeedRing(4)
	for i := 1; i <= 6; i++ {
		ring.Push(backend.SpeedSample{Timestamp: int64(i)})
	}
	ring.Reset()

	assert.Equal(t, 0, ring.Len())

	ring.Push(backend.SpeedSample{Timestamp: 99})
	samples := ring.Samples()
	require.Len(t, samples, 1)
	assert.EqualValues(t, 99, samples[0].Timestamp)
}

func TestSpeedRingWrapsRepeatedly(t *testing.T) {
	ring := NewSpeedRing(3)
	for i := 1; i <= 10; i++ {
		ring.Push(backend.SpeedSample{Timestamp: int64(i)})
	}

	samples := ring.Samples()
	require.Len(t, samples, 3)
	assert.EqualValues(t, 8, samples[0].Timestamp)
	assert.EqualValues(t, 9, samples[1].Timestamp)
	assert.EqualValues(t, 10, samples[2].Timestamp)
}
