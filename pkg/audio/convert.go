package audio

import (
	"encoding/binary"
	"math"
)

// PCM16 converts normalised float64 samples to 16-bit signed little-endian
// PCM bytes. Samples outside [-1.0, 1.0] are clipped.
func PCM16(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(math.Round(s * 32767.0))
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(v))
	}
	return out
}

// FromPCM16 converts 16-bit signed little-endian PCM bytes to normalised
// float64 samples. The input length must be even (two bytes per sample);
// any trailing odd byte is silently ignored.
func FromPCM16(pcm []byte) []float64 {
	n := len(pcm) / 2
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float64(v) / 32768.0
	}
	return samples
}

// Float32s converts normalised float64 samples to float32, the sample format
// expected by whisper.cpp inference.
func Float32s(samples []float64) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s)
	}
	return out
}
