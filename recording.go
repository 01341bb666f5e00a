// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package roomlink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/minhdq/roomlink/audio"
)

// NewWavSinkFactory returns sink factory storing each remote track as wav
// file under dir, one file per track named <identity>_<trackSID>.wav.
// Format is audio.FormatPCM for plain LPCM or audio.FormatUlaw and
// audio.FormatAlaw for G711 compressed recordings.
func NewWavSinkFactory(dir string, format int) SinkWriterFactory {
	return func(info RemoteInfo) (io.WriteCloser, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}

		name := sanitizeFileName(info.Identity) + "_" + sanitizeFileName(info.TrackSID) + ".wav"
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}

		ww := audio.NewWavWriter(f, RoomSampleRate, 1)
		ww.AudioFormat = format

		log.Debug().Str("file", f.Name()).Str("identity", info.Identity).Msg("Recording remote track")
		return &wavFileSink{ww: ww, f: f}, nil
	}
}

// wavFileSink owns both wav writer and file. Closing fixes riff sizes in
// header before file is closed.
type wavFileSink struct {
	ww *audio.WavWriter
	f  *os.File
}

func (s *wavFileSink) Write(b []byte) (int, error) {
	return s.ww.Write(b)
}

func (s *wavFileSink) Close() error {
	if err := s.ww.Close(); err != nil {
		s.f.Close()
		return fmt.Errorf("finalize wav header: %w", err)
	}
	return s.f.Close()
}

func sanitizeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		}
		return '_'
	}, s)
}
