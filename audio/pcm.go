// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

// Package audio provides LPCM plumbing for roomlink: sample conversion,
// buffering, resampling, gain control, level metering and wav streaming.
// All functions operate on 16 bit little endian signed PCM unless stated
// otherwise.
package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// BytesPerSample is fixed. Only 16 bit PCM is supported.
	BytesPerSample = 2
)

// FrameSamples returns number of samples per channel for given frame duration.
func FrameSamples(sampleRate int, dur time.Duration) int {
	return int(int64(sampleRate) * int64(dur) / int64(time.Second))
}

// FrameBytes returns LPCM byte size of a frame.
func FrameBytes(sampleRate int, numChannels int, dur time.Duration) int {
	return FrameSamples(sampleRate, dur) * numChannels * BytesPerSample
}

func SamplesByteToInt16(input []byte, output []int16) int {
	if len(output) < len(input)/2 {
		panic("SamplesByteToInt16 output is too small buffer")
	}

	j := 0
	for i := 0; i+1 < len(input); i, j = i+2, j+1 {
		output[j] = int16(binary.LittleEndian.Uint16(input[i : i+2]))
	}
	return j
}

func SamplesInt16ToBytes(input []int16, output []byte) int {
	if len(output) < len(input)*2 {
		panic(fmt.Sprintf("SamplesInt16ToBytes output is too small buffer. expected=%d, received=%d", len(input)*2, len(output)))
	}

	j := 0
	for _, sample := range input {
		binary.LittleEndian.PutUint16(output[j:j+2], uint16(sample))
		j += 2
	}
	return len(input) * 2
}

// BytesToSamples is allocating version of SamplesByteToInt16.
func BytesToSamples(input []byte) []int16 {
	out := make([]int16, len(input)/2)
	SamplesByteToInt16(input, out)
	return out
}

// SamplesToBytes is allocating version of SamplesInt16ToBytes.
func SamplesToBytes(input []int16) []byte {
	out := make([]byte, len(input)*2)
	SamplesInt16ToBytes(input, out)
	return out
}
