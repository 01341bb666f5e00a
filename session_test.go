// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package roomlink

import (
	"context"
	"testing"

	msdk "github.com/livekit/media-sdk"
	lkmedia "github.com/livekit/server-sdk-go/v2/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhdq/roomlink/audio"
)

func TestSessionDefaults(t *testing.T) {
	s := NewSession(Config{URL: "ws://localhost:7880", Room: "demo", Identity: "alice"})
	assert.Equal(t, "alice", s.conf.Name, "display name defaults to identity")
	assert.Equal(t, 1.0, s.sinkVolume)
	assert.False(t, s.Connected())
	assert.False(t, s.Publishing())
	assert.Empty(t, s.Sinks())
}

func TestSessionOptions(t *testing.T) {
	factory := DiscardSinkFactory
	s := NewSession(Config{URL: "ws://localhost:7880", Room: "demo", Identity: "alice", Name: "Alice"},
		WithSinkVolume(0.5),
		WithSinkMuted(true),
		WithSinkFactory(factory),
	)
	assert.Equal(t, "Alice", s.conf.Name)
	assert.Equal(t, 0.5, s.sinkVolume)
	assert.True(t, s.sinkMuted)
	assert.NotNil(t, s.sinkFactory)
}

func TestSessionStateGating(t *testing.T) {
	s := NewSession(Config{URL: "ws://localhost:7880", Room: "demo", Identity: "alice"})

	err := s.PublishMicrophone(context.TODO(), NewToneSource(440, RoomSampleRate))
	require.ErrorIs(t, err, ErrNotConnected)

	require.ErrorIs(t, s.Unpublish(), ErrNotPublishing)

	assert.Equal(t, 0, s.MicrophoneLevel())
	assert.Nil(t, s.MicrophoneMeter())

	// Close on disconnected session is a no-op
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestSessionDialWhileDialing(t *testing.T) {
	s := NewSession(Config{URL: "ws://localhost:7880", Room: "demo", Identity: "alice"})

	// a concurrent Dial in flight holds the gate
	s.mu.Lock()
	s.dialing = true
	s.mu.Unlock()

	require.ErrorIs(t, s.Dial(context.TODO()), ErrAlreadyConnected)
}

func TestSessionCloseReleasesMicrophone(t *testing.T) {
	s := NewSession(Config{URL: "ws://localhost:7880", Room: "demo", Identity: "alice"})

	track, err := lkmedia.NewPCMLocalTrack(RoomSampleRate, 1, nil)
	require.NoError(t, err)

	_, cancel := context.WithCancel(context.Background())
	pump := &micPump{track: track, meter: audio.NewLevelMeter(), cancel: cancel}

	s.mu.Lock()
	s.connected = true
	s.publishing = true
	s.mic = pump
	s.mu.Unlock()

	require.NoError(t, s.Close())
	assert.False(t, s.Publishing())

	// track must be released even though the pump never unwound
	err = track.WriteSample(msdk.PCM16Sample(make([]int16, 480)))
	require.Error(t, err)
}

func TestSinkRemovalIgnoresReplacedTrack(t *testing.T) {
	s := NewSession(Config{URL: "ws://localhost:7880", Room: "demo", Identity: "alice"})

	sink := &Sink{
		Info:  RemoteInfo{Identity: "bob", ParticipantSID: "PA_1", TrackSID: "TR_new"},
		meter: audio.NewLevelMeter(),
	}
	s.mu.Lock()
	s.sinks["PA_1"] = sink
	s.mu.Unlock()

	// unsubscribe of the replaced track must not touch the current sink
	require.Nil(t, s.takeSink("PA_1", "TR_old"))
	require.Len(t, s.Sinks(), 1)

	got := s.takeSink("PA_1", "TR_new")
	require.Same(t, sink, got)
	require.Empty(t, s.Sinks())
	require.Nil(t, s.takeSink("PA_1", "TR_new"))
}

func TestSessionText(t *testing.T) {
	s := NewSession(Config{URL: "ws://localhost:7880", Room: "demo", Identity: "alice"})

	require.ErrorIs(t, s.SendText("hello", TopicChat), ErrNotConnected)

	s.OnText(TopicChat, func(ev TextEvent) {})
	s.OnText("status", func(ev TextEvent) {})
	assert.Len(t, s.textHandlers, 2)

	// re-registering a topic replaces its handler
	s.OnText(TopicChat, func(ev TextEvent) {})
	assert.Len(t, s.textHandlers, 2)
}
