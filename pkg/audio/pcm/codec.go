package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnsupportedMIME is returned by ParseMIMEType for non-PCM payloads.
var ErrUnsupportedMIME = errors.New("pcm: unsupported mime type")

// Float32ToInt16 converts normalized float samples to signed 16-bit samples.
// Values are clamped to [-1, 1] and scaled by 0x7FFF.
func Float32ToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		s = max(-1, min(1, s))
		out[i] = int16(s * 0x7FFF)
	}
	return out
}

// Int16ToBytes encodes samples as little-endian bytes.
func Int16ToBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

// BytesToInt16 decodes little-endian bytes into samples. A trailing odd byte
// is ignored.
func BytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// Level returns the mean absolute amplitude of samples normalized to [0, 1].
// An empty slice has level 0.
func Level(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(samples)) / 32768
}

// EncodeBase64 encodes raw PCM bytes for the wire.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 decodes a base64 PCM payload.
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("pcm: decode base64: %w", err)
	}
	return b, nil
}

// ParseMIMEType extracts the sample rate from a MIME type such as
// "audio/pcm;rate=24000". A PCM type without a rate parameter defaults to
// 24000 Hz, the model output rate.
func ParseMIMEType(mime string) (int, error) {
	parts := strings.Split(mime, ";")
	base := strings.ToLower(strings.TrimSpace(parts[0]))
	if base != "audio/pcm" && base != "audio/l16" {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedMIME, mime)
	}
	rate := 24000
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(k, "rate") {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%w: bad rate in %q", ErrUnsupportedMIME, mime)
		}
		rate = n
	}
	return rate, nil
}
