// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package audio

import (
	"bytes"
	"io"
	"os"
	"path"
	"testing"

	"github.com/go-audio/riff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWavWriterHeader(t *testing.T) {
	f, err := os.OpenFile(path.Join(t.TempDir(), "writer.wav"), os.O_CREATE|os.O_RDWR, 0755)
	require.NoError(t, err)
	defer f.Close()

	w := NewWavWriter(f, 48000, 1)
	lpcm := SamplesToBytes(sine(48000, 440, 480))
	n, err := w.Write(lpcm)
	require.NoError(t, err)
	require.Equal(t, len(lpcm), n)
	require.NoError(t, w.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	p := riff.New(f)
	require.NoError(t, p.ParseHeaders())
	for {
		chunk, err := p.NextChunk()
		require.NoError(t, err)
		if chunk.ID != riff.FmtID {
			chunk.Drain()
			continue
		}
		require.NoError(t, chunk.DecodeWavHeader(p))
		break
	}

	assert.EqualValues(t, 48000, p.SampleRate)
	assert.EqualValues(t, 1, p.NumChannels)
	assert.EqualValues(t, 16, p.BitsPerSample)
	assert.EqualValues(t, FormatPCM, p.WavAudioFormat)
}

func TestWavWriterUlaw(t *testing.T) {
	f, err := os.OpenFile(path.Join(t.TempDir(), "ulaw.wav"), os.O_CREATE|os.O_RDWR, 0755)
	require.NoError(t, err)
	defer f.Close()

	w := NewWavWriter(f, 8000, 1)
	w.AudioFormat = FormatUlaw

	lpcm := SamplesToBytes(sine(8000, 440, 160))
	n, err := w.Write(lpcm)
	require.NoError(t, err)
	// reports consumed LPCM bytes
	require.Equal(t, len(lpcm), n)
	require.NoError(t, w.Close())

	stat, err := f.Stat()
	require.NoError(t, err)
	// stored half the payload plus 44 byte header
	assert.EqualValues(t, 44+len(lpcm)/2, stat.Size())
}

func TestWavRoundtrip(t *testing.T) {
	fname := path.Join(t.TempDir(), "roundtrip.wav")
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_RDWR, 0755)
	require.NoError(t, err)

	samples := sine(48000, 200, 960)
	w := NewWavWriter(f, 48000, 1)
	_, err = w.Write(SamplesToBytes(samples))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	f, err = os.Open(fname)
	require.NoError(t, err)
	defer f.Close()

	r := NewWavReader(f)
	require.NoError(t, r.ReadHeaders())
	require.NoError(t, r.ValidatePCM16())
	assert.EqualValues(t, 48000, r.SampleRate)
	assert.Equal(t, len(samples)*2, r.DataSize)

	var data bytes.Buffer
	_, err = io.Copy(&data, r)
	require.NoError(t, err)
	assert.Equal(t, samples, BytesToSamples(data.Bytes()))
}

func TestG711Encode(t *testing.T) {
	lpcm := SamplesToBytes([]int16{0, 1000, -1000, 32000})

	ulaw := make([]byte, len(lpcm)/2)
	n, err := EncodeUlawTo(ulaw, lpcm)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	decoded := make([]byte, len(lpcm))
	n, err = DecodeUlawTo(decoded, ulaw)
	require.NoError(t, err)
	require.Equal(t, len(lpcm), n)

	// lossy codec, check sign and rough magnitude
	out := BytesToSamples(decoded)
	assert.InDelta(t, 0, out[0], 10)
	assert.InDelta(t, 1000, out[1], 100)
	assert.InDelta(t, -1000, out[2], 100)

	_, err = EncodeUlawTo(make([]byte, 1), lpcm)
	assert.ErrorIs(t, err, io.ErrShortBuffer)
}
