// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package audio

import (
	"context"
	"math"
	"sync"
	"time"
)

// LevelMeter taps a 16 bit LPCM stream and tracks mean sample magnitude as
// percent 0..100. It is an io.Writer so it can be chained anywhere in audio
// pipeline. Poll it on a ticker to drive level indicator.
type LevelMeter struct {
	mu        sync.Mutex
	level     float64
	smoothing float64
}

func NewLevelMeter() *LevelMeter {
	return &LevelMeter{
		smoothing: 0.3,
	}
}

func (m *LevelMeter) Write(b []byte) (int, error) {
	if len(b) < 2 {
		return len(b), nil
	}

	var sum int64
	samples := 0
	for i := 0; i+1 < len(b); i += 2 {
		s := int16(uint16(b[i]) | uint16(b[i+1])<<8)
		if s < 0 {
			if s == math.MinInt16 {
				s = math.MaxInt16
			} else {
				s = -s
			}
		}
		sum += int64(s)
		samples++
	}

	mean := float64(sum) / float64(samples)
	percent := math.Min(100, mean*100/math.MaxInt16)

	m.mu.Lock()
	m.level = m.level + m.smoothing*(percent-m.level)
	m.mu.Unlock()
	return len(b), nil
}

// Level returns smoothed level in percent, 0 to 100.
func (m *LevelMeter) Level() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(math.Round(m.level))
}

// Poll invokes fn with current level on every tick until ctx is done.
func (m *LevelMeter) Poll(ctx context.Context, interval time.Duration, fn func(level int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(m.Level())
		}
	}
}
