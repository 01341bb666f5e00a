// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package audio

import (
	"fmt"
	"io"

	"github.com/go-audio/riff"
)

// WavReader is streaming wav decoder. After ReadHeaders, Read returns raw
// LPCM from the data chunk. Non fmt and non data chunks are drained.
type WavReader struct {
	riff.Parser
	chunkData *riff.Chunk

	DataSize int
}

func NewWavReader(r io.Reader) *WavReader {
	parser := riff.New(r)
	return &WavReader{Parser: *parser}
}

// ReadHeaders parses riff headers until data chunk is found.
func (r *WavReader) ReadHeaders() error {
	if err := r.readFmt(); err != nil {
		return err
	}
	return r.readDataChunk()
}

func (r *WavReader) readFmt() error {
	if err := r.Parser.ParseHeaders(); err != nil {
		return err
	}
	for {
		chunk, err := r.NextChunk()
		if err != nil {
			return err
		}

		if chunk.ID != riff.FmtID {
			chunk.Drain()
			continue
		}
		return chunk.DecodeWavHeader(&r.Parser)
	}
}

func (r *WavReader) readDataChunk() error {
	for {
		chunk, err := r.NextChunk()
		if err != nil {
			return err
		}

		if chunk.ID != riff.DataFormatID {
			chunk.Drain()
			continue
		}
		r.chunkData = chunk
		r.DataSize = chunk.Size
		return nil
	}
}

// ValidatePCM16 checks that stream carries uncompressed 16 bit PCM.
func (r *WavReader) ValidatePCM16() error {
	if r.WavAudioFormat != FormatPCM {
		return fmt.Errorf("wav audio format must be PCM, got %d", r.WavAudioFormat)
	}
	if r.BitsPerSample != 16 {
		return fmt.Errorf("only 16 bit PCM supported, got bitdepth=%d", r.BitsPerSample)
	}
	return nil
}

// Read returns PCM underneath.
func (r *WavReader) Read(buf []byte) (n int, err error) {
	if r.chunkData == nil {
		if err := r.readDataChunk(); err != nil {
			return 0, err
		}
	}
	return r.chunkData.Read(buf)
}
