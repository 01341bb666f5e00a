// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package audio

import (
	"io"
	"math"
	"sync/atomic"
)

/*
	Gain provides volume and mute control over audio stream.
	Volume and mute are independent settings, mute wins.
*/

type Gain struct {
	reader io.Reader
	writer io.Writer

	muted  atomic.Bool
	volume atomic.Uint64 // math.Float64bits, 0..1
}

func NewGain(reader io.Reader, writer io.Writer) *Gain {
	g := &Gain{
		reader: reader,
		writer: writer,
	}
	g.volume.Store(math.Float64bits(1.0))
	return g
}

func NewGainReader(reader io.Reader) *Gain {
	return NewGain(reader, nil)
}

func NewGainWriter(writer io.Writer) *Gain {
	return NewGain(nil, writer)
}

func (g *Gain) Read(b []byte) (n int, err error) {
	n, err = g.reader.Read(b)
	if err != nil {
		return n, err
	}
	g.apply(b[:n])
	return n, err
}

func (g *Gain) Write(b []byte) (n int, err error) {
	g.apply(b)
	return g.writer.Write(b)
}

// apply scales 16 bit samples in place.
func (g *Gain) apply(b []byte) {
	if g.muted.Load() {
		for i := range b {
			b[i] = 0
		}
		return
	}

	vol := math.Float64frombits(g.volume.Load())
	if vol == 1.0 {
		return
	}

	for i := 0; i+1 < len(b); i += 2 {
		s := int16(uint16(b[i]) | uint16(b[i+1])<<8)
		s = int16(float64(s) * vol)
		b[i] = byte(s)
		b[i+1] = byte(s >> 8)
	}
}

// SetVolume sets scale in range 0..1. Values outside are clamped.
func (g *Gain) SetVolume(vol float64) {
	vol = math.Max(0, math.Min(1, vol))
	g.volume.Store(math.Float64bits(vol))
}

func (g *Gain) Volume() float64 {
	return math.Float64frombits(g.volume.Load())
}

func (g *Gain) Mute(mute bool) {
	g.muted.Store(mute)
}

func (g *Gain) Muted() bool {
	return g.muted.Load()
}
