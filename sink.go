// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package roomlink

import (
	"context"
	"io"
	"sync"

	msdk "github.com/livekit/media-sdk"
	lkmedia "github.com/livekit/server-sdk-go/v2/pkg/media"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/minhdq/roomlink/audio"
)

// RemoteInfo identifies remote audio track behind a sink.
type RemoteInfo struct {
	Identity       string
	ParticipantSID string
	TrackSID       string
	TrackName      string
}

// SinkWriterFactory builds playback writer for a new remote audio track.
// Writer receives mono 16 bit LPCM at RoomSampleRate and is closed on sink
// teardown.
type SinkWriterFactory func(info RemoteInfo) (io.WriteCloser, error)

// RTPTapFunc receives raw RTP packets in raw sink mode.
type RTPTapFunc func(info RemoteInfo, pkt *rtp.Packet)

// DiscardSinkFactory meters audio and throws it away.
func DiscardSinkFactory(info RemoteInfo) (io.WriteCloser, error) {
	return nopWriteCloser{io.Discard}, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Sink is playback endpoint of one remote audio track. SDK decodes opus and
// handles jitter, sink applies gain and metering and forwards LPCM to its
// writer.
type Sink struct {
	Info RemoteInfo

	gain   *audio.Gain
	meter  *audio.LevelMeter
	writer io.WriteCloser
	remote *lkmedia.PCMRemoteTrack

	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (s *Session) newSink(track *webrtc.TrackRemote, info RemoteInfo) (*Sink, error) {
	sink := &Sink{
		Info:  info,
		meter: audio.NewLevelMeter(),
	}

	if s.rtpTap != nil {
		ctx, cancel := context.WithCancel(context.Background())
		sink.cancel = cancel
		go sink.runRTPTap(ctx, track, s.rtpTap)
		return sink, nil
	}

	factory := s.sinkFactory
	if factory == nil {
		factory = DiscardSinkFactory
	}
	writer, err := factory(info)
	if err != nil {
		return nil, err
	}

	sink.writer = writer
	sink.gain = audio.NewGainWriter(io.MultiWriter(sink.meter, writer))
	sink.gain.SetVolume(s.sinkVolume)
	sink.gain.Mute(s.sinkMuted)

	remote, err := lkmedia.NewPCMRemoteTrack(track, &sinkPCMWriter{sink: sink},
		lkmedia.WithTargetSampleRate(RoomSampleRate),
		lkmedia.WithTargetChannels(1),
		lkmedia.WithHandleJitter(true),
	)
	if err != nil {
		writer.Close()
		return nil, err
	}
	sink.remote = remote
	return sink, nil
}

func (sk *Sink) runRTPTap(ctx context.Context, track *webrtc.TrackRemote, tap RTPTapFunc) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		tap(sk.Info, pkt)
	}
}

// SetVolume adjusts playback volume 0..1. No-op in raw mode.
func (sk *Sink) SetVolume(vol float64) {
	if sk.gain != nil {
		sk.gain.SetVolume(vol)
	}
}

func (sk *Sink) Volume() float64 {
	if sk.gain == nil {
		return 0
	}
	return sk.gain.Volume()
}

// Mute silences the sink without tearing it down.
func (sk *Sink) Mute(mute bool) {
	if sk.gain != nil {
		sk.gain.Mute(mute)
	}
}

func (sk *Sink) Muted() bool {
	return sk.gain != nil && sk.gain.Muted()
}

// Level reports playback level 0..100 after gain.
func (sk *Sink) Level() int {
	return sk.meter.Level()
}

// Close releases decoder and playback writer. Safe to call multiple times.
func (sk *Sink) Close() error {
	var err error
	sk.closeOnce.Do(func() {
		if sk.cancel != nil {
			sk.cancel()
		}
		if sk.remote != nil {
			sk.remote.Close()
		}
		if sk.writer != nil {
			err = sk.writer.Close()
		}
	})
	return err
}

// sinkPCMWriter adapts SDK PCM16 frames onto the sink byte pipeline.
type sinkPCMWriter struct {
	sink *Sink
}

func (w *sinkPCMWriter) WriteSample(sample msdk.PCM16Sample) error {
	if len(sample) == 0 {
		return nil
	}
	_, err := w.sink.gain.Write(audio.SamplesToBytes([]int16(sample)))
	return err
}

func (w *sinkPCMWriter) Close() error {
	return nil
}
