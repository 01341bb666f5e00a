// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package audio

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Wav audio format codes.
const (
	FormatPCM  = 1
	FormatAlaw = 6
	FormatUlaw = 7
)

// WavWriter streams LPCM into a wav container. Input is always 16 bit LPCM.
// With FormatUlaw or FormatAlaw samples are compressed to 8 bit G711 before
// writing. Header is written lazily and fixed up with final sizes on Close,
// so writer must be io.WriteSeeker.
type WavWriter struct {
	SampleRate  int
	NumChans    int
	AudioFormat int

	W io.WriteSeeker

	headersWritten bool
	dataSize       int64
	g711Buf        []byte
}

func NewWavWriter(w io.WriteSeeker, sampleRate int, numChans int) *WavWriter {
	return &WavWriter{
		SampleRate:  sampleRate,
		NumChans:    numChans,
		AudioFormat: FormatPCM,
		W:           w,
	}
}

func (ww *WavWriter) bitDepth() int {
	if ww.AudioFormat == FormatPCM {
		return 16
	}
	return 8
}

func (ww *WavWriter) Write(lpcm []byte) (int, error) {
	if !ww.headersWritten {
		if _, err := ww.writeHeader(); err != nil {
			return 0, err
		}
		ww.headersWritten = true
	}

	data := lpcm
	switch ww.AudioFormat {
	case FormatPCM:
	case FormatUlaw, FormatAlaw:
		if cap(ww.g711Buf) < len(lpcm)/2 {
			ww.g711Buf = make([]byte, len(lpcm)/2)
		}
		buf := ww.g711Buf[:len(lpcm)/2]

		encode := EncodeUlawTo
		if ww.AudioFormat == FormatAlaw {
			encode = EncodeAlawTo
		}
		n, err := encode(buf, lpcm)
		if err != nil {
			return 0, err
		}
		data = buf[:n]
	default:
		return 0, fmt.Errorf("unsupported wav audio format %d", ww.AudioFormat)
	}

	n, err := ww.W.Write(data)
	ww.dataSize += int64(n)
	if err != nil {
		return n, err
	}
	// Report consumed LPCM bytes not stored bytes
	return len(lpcm), nil
}

func (ww *WavWriter) writeHeader() (int, error) {
	const (
		headerSize   = 44
		fmtChunkSize = 16
	)

	bitsPerSample := ww.bitDepth()
	numChannels := ww.NumChans
	sampleRate := ww.SampleRate
	fileSize := ww.dataSize + headerSize - 8

	header := make([]byte, headerSize)
	copy(header[0:4], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:8], uint32(fileSize))
	copy(header[8:12], []byte("WAVE"))

	copy(header[12:16], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:20], fmtChunkSize)
	binary.LittleEndian.PutUint16(header[20:22], uint16(ww.AudioFormat))
	binary.LittleEndian.PutUint16(header[22:24], uint16(numChannels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*bitsPerSample*numChannels/8))
	binary.LittleEndian.PutUint16(header[32:34], uint16(bitsPerSample*numChannels/8))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitsPerSample))

	copy(header[36:40], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:44], uint32(ww.dataSize))

	return ww.W.Write(header)
}

// Close rewrites the header with final data size.
func (ww *WavWriter) Close() error {
	if _, err := ww.W.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := ww.writeHeader()
	return err
}
