// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package audio

import (
	"sync"
)

// Buffer accumulates PCM samples and hands them out in fixed size chunks.
// Producers push decoded frames of arbitrary size, consumer pulls exact
// chunk sizes for packetization. Safe for one producer and one consumer.
type Buffer struct {
	mu        sync.Mutex
	samples   []int16
	chunkSize int
}

func NewBuffer(chunkSize int) *Buffer {
	return &Buffer{
		samples:   make([]int16, 0, chunkSize*4),
		chunkSize: chunkSize,
	}
}

func (b *Buffer) Push(frame []int16) {
	b.mu.Lock()
	b.samples = append(b.samples, frame...)
	b.mu.Unlock()
}

// Chunk returns exactly chunkSize samples or false when not enough buffered.
func (b *Buffer) Chunk() ([]int16, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.samples) < b.chunkSize {
		return nil, false
	}
	chunk := make([]int16, b.chunkSize)
	copy(chunk, b.samples[:b.chunkSize])
	b.samples = b.samples[b.chunkSize:]
	return chunk, true
}

// PaddedChunk drains whatever is buffered into a zero padded chunk. Always
// returns chunkSize samples, silence when buffer is empty.
func (b *Buffer) PaddedChunk() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	chunk := make([]int16, b.chunkSize)
	n := copy(chunk, b.samples)
	b.samples = b.samples[n:]
	return chunk
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}
