// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package roomlink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"

	"github.com/minhdq/roomlink/audio"
)

// ParticipantEvent notifies join and leave of remote participants.
type ParticipantEvent struct {
	Identity string
	SID      string
	Joined   bool
}

// SinkEvent notifies sink lifecycle, one sink per remote audio track.
type SinkEvent struct {
	Sink    *Sink
	Created bool
}

// Session is a single connection to a room. Zero value is not usable, create
// with NewSession. All methods are safe for concurrent use.
type Session struct {
	conf Config
	log  *slog.Logger

	tokens *TokenClient

	connectOpts []lksdk.ConnectOption
	sinkFactory SinkWriterFactory
	sinkVolume  float64
	sinkMuted   bool
	rtpTap      RTPTapFunc

	mu        sync.Mutex
	room      *lksdk.Room
	connected bool
	dialing   bool

	publishing bool
	mic        *micPump

	// sinks keyed by remote participant SID
	sinks map[string]*Sink

	onParticipant func(ev ParticipantEvent)
	onSink        func(ev SinkEvent)

	// text stream handlers keyed by topic, registered on Dial
	textHandlers map[string]func(ev TextEvent)
}

func NewSession(conf Config, opts ...Option) *Session {
	if conf.Name == "" {
		conf.Name = conf.Identity
	}

	s := &Session{
		conf:         conf,
		log:          slog.Default(),
		sinkVolume:   1.0,
		sinks:        map[string]*Sink{},
		textHandlers: map[string]func(ev TextEvent){},
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("room", conf.Room, "identity", conf.Identity)

	s.tokens = &TokenClient{Endpoint: conf.TokenEndpoint}
	return s
}

// OnParticipant registers participant join/leave hook. Must be set before Dial.
func (s *Session) OnParticipant(fn func(ev ParticipantEvent)) {
	s.onParticipant = fn
}

// OnSink registers sink create/remove hook. Must be set before Dial.
func (s *Session) OnSink(fn func(ev SinkEvent)) {
	s.onSink = fn
}

// Dial resolves a join token and connects. On failure session stays
// disconnected and Dial can be retried.
func (s *Session) Dial(ctx context.Context) error {
	s.mu.Lock()
	if s.connected || s.dialing {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	// holds off concurrent dialers while connecting without the lock
	s.dialing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.dialing = false
		s.mu.Unlock()
	}()

	token, err := s.resolveToken(ctx)
	if err != nil {
		return err
	}

	room, err := lksdk.ConnectToRoomWithToken(
		s.conf.URL,
		token,
		s.roomCallback(),
		append([]lksdk.ConnectOption{lksdk.WithAutoSubscribe(true)}, s.connectOpts...)...,
	)
	if err != nil {
		return fmt.Errorf("room connect failed: %w", err)
	}

	for topic, fn := range s.textHandlers {
		if err := room.RegisterTextStreamHandler(topic, s.textStreamHandler(topic, fn)); err != nil {
			s.log.Error("Failed to register text stream handler", "error", err, "topic", topic)
		}
	}

	s.mu.Lock()
	s.room = room
	s.connected = true
	s.mu.Unlock()

	s.log.Info("Connected to room", "url", s.conf.URL)
	return nil
}

func (s *Session) resolveToken(ctx context.Context) (string, error) {
	if s.conf.Token != "" {
		return s.conf.Token, nil
	}

	if s.conf.TokenEndpoint != "" {
		token, err := s.tokens.Fetch(ctx, s.conf.Identity, s.conf.Room, s.conf.Name)
		if err == nil {
			return token, nil
		}
		s.log.Warn("Token endpoint failed, falling back to placeholder token", "error", err)
	}

	// Last resort. See PlaceholderToken docs.
	return PlaceholderToken(s.conf.Identity, s.conf.Room), nil
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) Publishing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishing
}

// Sinks returns snapshot of active remote audio sinks.
func (s *Session) Sinks() []*Sink {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Sink, 0, len(s.sinks))
	for _, sink := range s.sinks {
		out = append(out, sink)
	}
	return out
}

// Close disconnects and unconditionally releases microphone and all sinks.
// Safe to call multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}
	s.connected = false
	room := s.room
	s.room = nil

	mic := s.mic
	s.mic = nil
	s.publishing = false

	sinks := s.sinks
	s.sinks = map[string]*Sink{}
	s.mu.Unlock()

	if mic != nil {
		mic.stop()
		// pump goroutine may be blocked in a source read, release the
		// track here instead of waiting for it
		if room != nil && mic.pub != nil {
			room.LocalParticipant.UnpublishTrack(mic.pub.SID())
		}
		mic.track.Close()
	}
	for _, sink := range sinks {
		sink.Close()
		s.fireSink(SinkEvent{Sink: sink, Created: false})
	}
	if room != nil {
		room.Disconnect()
	}

	s.log.Info("Disconnected from room")
	return nil
}

func (s *Session) roomCallback() *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed:   s.onTrackSubscribed,
			OnTrackUnsubscribed: s.onTrackUnsubscribed,
		},
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			s.log.Info("Participant connected", "participant", rp.Identity())
			s.fireParticipant(ParticipantEvent{Identity: rp.Identity(), SID: rp.SID(), Joined: true})
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			s.log.Info("Participant disconnected", "participant", rp.Identity())
			s.fireParticipant(ParticipantEvent{Identity: rp.Identity(), SID: rp.SID(), Joined: false})
		},
		OnReconnecting: func() {
			s.log.Warn("Reconnecting to room")
		},
		OnReconnected: func() {
			s.log.Info("Reconnected to room")
		},
		OnDisconnected: func() {
			s.log.Info("Room disconnected")
			s.Close()
		},
	}
}

func (s *Session) onTrackSubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}

	info := RemoteInfo{
		Identity:       rp.Identity(),
		ParticipantSID: rp.SID(),
		TrackSID:       pub.SID(),
		TrackName:      pub.Name(),
	}
	s.log.Info("Audio track subscribed", "participant", info.Identity, "track", info.TrackSID)

	sink, err := s.newSink(track, info)
	if err != nil {
		s.log.Error("Failed to create audio sink", "error", err, "participant", info.Identity)
		return
	}

	s.mu.Lock()
	// one sink per remote audio track, replace stale sink of same participant
	if old, ok := s.sinks[info.ParticipantSID]; ok {
		s.mu.Unlock()
		old.Close()
		s.fireSink(SinkEvent{Sink: old, Created: false})
		s.mu.Lock()
	}
	s.sinks[info.ParticipantSID] = sink
	s.mu.Unlock()

	s.fireSink(SinkEvent{Sink: sink, Created: true})
}

func (s *Session) onTrackUnsubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}

	sink := s.takeSink(rp.SID(), pub.SID())
	if sink == nil {
		return
	}

	s.log.Info("Audio track unsubscribed", "participant", rp.Identity(), "track", pub.SID())
	sink.Close()
	s.fireSink(SinkEvent{Sink: sink, Created: false})
}

// takeSink removes and returns the sink of participantSID, nil when there is
// none or when trackSID belongs to a track that was already replaced by a
// newer subscription of the same participant.
func (s *Session) takeSink(participantSID, trackSID string) *Sink {
	s.mu.Lock()
	defer s.mu.Unlock()

	sink, ok := s.sinks[participantSID]
	if !ok || sink.Info.TrackSID != trackSID {
		return nil
	}
	delete(s.sinks, participantSID)
	return sink
}

func (s *Session) fireParticipant(ev ParticipantEvent) {
	if s.onParticipant != nil {
		s.onParticipant(ev)
	}
}

func (s *Session) fireSink(ev SinkEvent) {
	if s.onSink != nil {
		s.onSink(ev)
	}
}

// MicrophoneLevel reports outgoing audio level 0..100, 0 when not publishing.
func (s *Session) MicrophoneLevel() int {
	s.mu.Lock()
	mic := s.mic
	s.mu.Unlock()

	if mic == nil {
		return 0
	}
	return mic.meter.Level()
}

// MicrophoneMeter exposes the outgoing level meter for polling, nil when not
// publishing.
func (s *Session) MicrophoneMeter() *audio.LevelMeter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mic == nil {
		return nil
	}
	return s.mic.meter
}
