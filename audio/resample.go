// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package audio

import "fmt"

// Resample converts mono LPCM between sample rates using linear
// interpolation. Good enough for speech paths (48k<->16k, 24k->48k). No
// anti-alias filtering is applied.
func Resample(in []int16, srcRate int, dstRate int) []int16 {
	if srcRate == dstRate || len(in) == 0 {
		out := make([]int16, len(in))
		copy(out, in)
		return out
	}

	outLen := len(in) * dstRate / srcRate
	out := make([]int16, outLen)

	step := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(idx)
		s := float64(in[idx])*(1-frac) + float64(in[idx+1])*frac
		out[i] = int16(s)
	}
	return out
}

// ResampleBytes is Resample over raw 16 bit LPCM bytes.
func ResampleBytes(in []byte, srcRate int, dstRate int) ([]byte, error) {
	if len(in)%2 != 0 {
		return nil, fmt.Errorf("lpcm length must be even, got %d", len(in))
	}
	return SamplesToBytes(Resample(BytesToSamples(in), srcRate, dstRate)), nil
}
