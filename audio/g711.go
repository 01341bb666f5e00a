// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package audio

import (
	"io"

	"github.com/zaf/g711"
)

// G711 helpers encode 16 bit LPCM into 8 bit telephony codecs in place of
// caller provided buffers. Used by WavWriter for compact recordings.

func EncodeUlawTo(ulaw []byte, lpcm []byte) (int, error) {
	if len(ulaw)*2 < len(lpcm) {
		return 0, io.ErrShortBuffer
	}

	n := 0
	for i, j := 0, 0; j+1 < len(lpcm); i, j = i+1, j+2 {
		ulaw[i] = g711.EncodeUlawFrame(int16(lpcm[j]) | int16(lpcm[j+1])<<8)
		n++
	}
	return n, nil
}

func DecodeUlawTo(lpcm []byte, ulaw []byte) (int, error) {
	if len(lpcm) < len(ulaw)*2 {
		return 0, io.ErrShortBuffer
	}

	n := 0
	for i, j := 0, 0; i < len(ulaw); i, j = i+1, j+2 {
		frame := g711.DecodeUlawFrame(ulaw[i])
		lpcm[j] = byte(frame)
		lpcm[j+1] = byte(frame >> 8)
		n += 2
	}
	return n, nil
}

func EncodeAlawTo(alaw []byte, lpcm []byte) (int, error) {
	if len(alaw)*2 < len(lpcm) {
		return 0, io.ErrShortBuffer
	}

	n := 0
	for i, j := 0, 0; j+1 < len(lpcm); i, j = i+1, j+2 {
		alaw[i] = g711.EncodeAlawFrame(int16(lpcm[j]) | int16(lpcm[j+1])<<8)
		n++
	}
	return n, nil
}

func DecodeAlawTo(lpcm []byte, alaw []byte) (int, error) {
	if len(lpcm) < len(alaw)*2 {
		return 0, io.ErrShortBuffer
	}

	n := 0
	for i, j := 0, 0; i < len(alaw); i, j = i+1, j+2 {
		frame := g711.DecodeAlawFrame(alaw[i])
		lpcm[j] = byte(frame)
		lpcm[j+1] = byte(frame >> 8)
		n += 2
	}
	return n, nil
}
