// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package roomlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	msdk "github.com/livekit/media-sdk"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	lkmedia "github.com/livekit/server-sdk-go/v2/pkg/media"

	"github.com/minhdq/roomlink/audio"
)

// MicSource is the outgoing "microphone": any mono 16 bit LPCM reader and
// its sample rate. SDK resamples and encodes to opus internally.
type MicSource struct {
	Reader     io.Reader
	SampleRate int
}

// NewWavSource wraps a wav stream as microphone source. Only mono 16 bit
// PCM wav is accepted.
func NewWavSource(r io.Reader) (MicSource, error) {
	dec := audio.NewWavReader(r)
	if err := dec.ReadHeaders(); err != nil {
		return MicSource{}, fmt.Errorf("wav headers: %w", err)
	}
	if err := dec.ValidatePCM16(); err != nil {
		return MicSource{}, err
	}
	if dec.NumChannels != 1 {
		return MicSource{}, fmt.Errorf("only mono wav supported, got %d channels", dec.NumChannels)
	}
	return MicSource{Reader: dec, SampleRate: int(dec.SampleRate)}, nil
}

// NewToneSource generates endless sine tone. Useful for testing rooms
// without real capture hardware.
func NewToneSource(freq float64, sampleRate int) MicSource {
	return MicSource{
		Reader:     &toneReader{freq: freq, sampleRate: sampleRate},
		SampleRate: sampleRate,
	}
}

type toneReader struct {
	freq       float64
	sampleRate int
	pos        int
}

func (t *toneReader) Read(b []byte) (int, error) {
	n := len(b) / audio.BytesPerSample
	for i := 0; i < n; i++ {
		s := int16(16000 * math.Sin(2*math.Pi*t.freq*float64(t.pos)/float64(t.sampleRate)))
		b[2*i] = byte(s)
		b[2*i+1] = byte(s >> 8)
		t.pos++
	}
	return n * audio.BytesPerSample, nil
}

// NewChanSource adapts a frame channel as microphone source, used to publish
// voice agent replies back into the room. Reader blocks until frames arrive
// and returns io.EOF when channel closes.
func NewChanSource(frames <-chan []int16, sampleRate int) MicSource {
	return MicSource{
		Reader:     &chanReader{frames: frames},
		SampleRate: sampleRate,
	}
}

type chanReader struct {
	frames  <-chan []int16
	pending []byte
}

func (c *chanReader) Read(b []byte) (int, error) {
	if len(c.pending) == 0 {
		frame, ok := <-c.frames
		if !ok {
			return 0, io.EOF
		}
		c.pending = audio.SamplesToBytes(frame)
	}
	n := copy(b, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// micPump moves LPCM frames from source to the published track on a ticker.
type micPump struct {
	track  *lkmedia.PCMLocalTrack
	pub    *lksdk.LocalTrackPublication
	meter  *audio.LevelMeter
	cancel context.CancelFunc
}

// stop does not wait for the pump goroutine. Source reads can block and the
// goroutine unwinds on its own once the read returns.
func (p *micPump) stop() {
	p.cancel()
}

// PublishMicrophone starts publishing source as the microphone track.
// Gated on connected state, only one microphone per session. Publishing
// stops on source EOF, Unpublish or Close.
func (s *Session) PublishMicrophone(ctx context.Context, src MicSource) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if s.publishing {
		s.mu.Unlock()
		return ErrAlreadyPublishing
	}
	room := s.room
	s.mu.Unlock()

	if src.Reader == nil || src.SampleRate <= 0 {
		return fmt.Errorf("invalid microphone source")
	}

	track, err := lkmedia.NewPCMLocalTrack(src.SampleRate, 1, nil)
	if err != nil {
		return fmt.Errorf("create microphone track: %w", err)
	}

	pub, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   "microphone",
		Source: livekit.TrackSource_MICROPHONE,
	})
	if err != nil {
		track.Close()
		return fmt.Errorf("publish microphone track: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	pump := &micPump{
		track:  track,
		pub:    pub,
		meter:  audio.NewLevelMeter(),
		cancel: cancel,
	}

	s.mu.Lock()
	if s.publishing || !s.connected {
		// lost the race to another publisher or to Close
		s.mu.Unlock()
		cancel()
		room.LocalParticipant.UnpublishTrack(pub.SID())
		track.Close()
		return ErrAlreadyPublishing
	}
	s.publishing = true
	s.mic = pump
	s.mu.Unlock()

	s.log.Info("Microphone published", "track", pub.SID(), "sample_rate", src.SampleRate)

	go s.runMicPump(pumpCtx, pump, src)
	return nil
}

func (s *Session) runMicPump(ctx context.Context, pump *micPump, src MicSource) {
	frameBytes := audio.FrameBytes(src.SampleRate, 1, micFrameDur)
	buf := make([]byte, frameBytes)

	// Ticker corrects for slow reads, same pacing as file playback
	ticker := time.NewTicker(micFrameDur)
	defer ticker.Stop()

	for {
		n, err := io.ReadFull(src.Reader, buf)
		if n > 0 {
			pump.meter.Write(buf[:n])
			sample := msdk.PCM16Sample(audio.BytesToSamples(buf[:n]))
			if werr := pump.track.WriteSample(sample); werr != nil {
				if ctx.Err() == nil {
					s.log.Error("Microphone write failed", "error", werr)
				}
				break
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.log.Error("Microphone source read failed", "error", err)
			}
			break
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	// source drained, release the track
	if err := s.unpublishPump(pump); err != nil && !errors.Is(err, ErrNotPublishing) {
		s.log.Error("Microphone unpublish failed", "error", err)
	}
}

// Unpublish stops the microphone and removes its track from the room.
func (s *Session) Unpublish() error {
	s.mu.Lock()
	pump := s.mic
	s.mu.Unlock()
	if pump == nil {
		return ErrNotPublishing
	}

	pump.cancel()
	return s.unpublishPump(pump)
}

func (s *Session) unpublishPump(pump *micPump) error {
	s.mu.Lock()
	if s.mic != pump {
		s.mu.Unlock()
		return ErrNotPublishing
	}
	s.mic = nil
	s.publishing = false
	room := s.room
	s.mu.Unlock()

	var err error
	if room != nil {
		err = room.LocalParticipant.UnpublishTrack(pump.pub.SID())
	}
	pump.track.Close()

	s.log.Info("Microphone unpublished", "track", pump.pub.SID())
	return err
}
