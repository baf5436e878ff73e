package audio

import (
	"encoding/binary"
	"math"
)

// unityTolerance is how close to 1.0 a level has to be to skip scaling.
const unityTolerance = 1e-6

// ClampVolume limits level to [0, 1]. NaN is treated as silence.
func ClampVolume(level float64) float64 {
	if math.IsNaN(level) {
		return 0
	}
	return math.Max(0, math.Min(1, level))
}

// IsUnityVolume reports whether level leaves samples untouched.
func IsUnityVolume(level float64) bool {
	return math.Abs(level-1) < unityTolerance
}

// ScaleLinear16 multiplies every little-endian int16 sample of chunk by level
// and truncates the result back to int16. At unity level chunk is returned
// as is. A trailing odd byte is copied unchanged.
func ScaleLinear16(chunk []byte, level float64) []byte {
	level = ClampVolume(level)
	if IsUnityVolume(level) {
		return chunk
	}

	scaled := make([]byte, len(chunk))
	samples := len(chunk) / 2
	for i := range samples {
		sample := int16(binary.LittleEndian.Uint16(chunk[2*i:]))
		binary.LittleEndian.PutUint16(scaled[2*i:], uint16(int16(float64(sample)*level)))
	}
	if len(chunk)%2 == 1 {
		scaled[len(chunk)-1] = chunk[len(chunk)-1]
	}

	return scaled
}
