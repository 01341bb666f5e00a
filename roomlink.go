// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

// Package roomlink is a headless LiveKit room audio participant. It connects
// to a room, publishes a microphone PCM source and plays remote participants
// audio into pluggable sinks, with per sink volume, mute and level metering.
//
// WebRTC transport, opus and jitter handling are fully delegated to the
// LiveKit SDK. This package only does audio plumbing around it.
package roomlink

import (
	"errors"
	"log/slog"
	"time"

	lkpacer "github.com/livekit/mediatransportutil/pkg/pacer"
	lksdk "github.com/livekit/server-sdk-go/v2"
)

var (
	ErrNotConnected      = errors.New("roomlink: not connected")
	ErrAlreadyConnected  = errors.New("roomlink: already connected")
	ErrAlreadyPublishing = errors.New("roomlink: already publishing")
	ErrNotPublishing     = errors.New("roomlink: not publishing")
)

const (
	// RoomSampleRate is rate of all audio crossing the room boundary.
	RoomSampleRate = 48000

	// micFrameDur is packetization interval of the published microphone.
	micFrameDur = 20 * time.Millisecond
)

// Config describes the room to join. It mirrors the connect form of the
// browser demo: server URL, room name, identity and optional explicit token.
type Config struct {
	// URL of the LiveKit server, ws:// or wss://
	URL string

	Room     string
	Identity string
	// Name is display name, defaults to Identity.
	Name string

	// Token joins with an explicit pre-signed token. When empty the token is
	// requested from TokenEndpoint, and if that fails an unsigned placeholder
	// token is used as last resort. The placeholder is not a valid credential
	// and only works against servers with auth disabled.
	Token string

	// TokenEndpoint is the token service URL, e.g. http://localhost:8000/api/token
	TokenEndpoint string
}

type Option func(s *Session)

func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// WithSinkFactory sets writer factory for remote audio sinks. Default sinks
// discard audio after metering.
func WithSinkFactory(f SinkWriterFactory) Option {
	return func(s *Session) {
		s.sinkFactory = f
	}
}

// WithSinkVolume sets initial volume applied to new sinks, range 0..1.
func WithSinkVolume(vol float64) Option {
	return func(s *Session) {
		s.sinkVolume = vol
	}
}

// WithSinkMuted starts new sinks muted.
func WithSinkMuted(muted bool) Option {
	return func(s *Session) {
		s.sinkMuted = muted
	}
}

// WithPacer smooths outgoing media with a leaky bucket pacer.
func WithPacer(bitrate int, maxLatency time.Duration) Option {
	return func(s *Session) {
		factory := lkpacer.NewPacerFactory(
			lkpacer.LeakyBucketPacer,
			lkpacer.WithBitrate(bitrate),
			lkpacer.WithMaxLatency(maxLatency),
		)
		s.connectOpts = append(s.connectOpts, lksdk.WithPacer(factory))
	}
}

// WithRTPTap switches sinks into raw mode: instead of decoding to PCM, RTP
// packets of subscribed audio tracks are handed to fn as they arrive. Volume
// and metering do not apply in raw mode.
func WithRTPTap(fn RTPTapFunc) Option {
	return func(s *Session) {
		s.rtpTap = fn
	}
}
