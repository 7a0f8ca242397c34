package resampler

import (
	"fmt"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Converter resamples consecutive chunks of 16-bit mono PCM from one sample
// rate to another. Filter state is carried between chunks so a stream of
// chunks converts without seams. Converter is safe for concurrent use.
type Converter struct {
	srcRate int
	dstRate int

	mu        sync.Mutex
	resampler resampling.Resampler
}

// NewConverter creates a Converter from srcRate to dstRate. When the rates
// are equal the converter passes data through unchanged.
func NewConverter(srcRate, dstRate int) (*Converter, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", srcRate, dstRate)
	}
	c := &Converter{srcRate: srcRate, dstRate: dstRate}
	if err := c.reset(); err != nil {
		return nil, err
	}
	return c, nil
}

// SrcRate returns the input sample rate.
func (c *Converter) SrcRate() int { return c.srcRate }

// DstRate returns the output sample rate.
func (c *Converter) DstRate() int { return c.dstRate }

// Convert resamples a chunk of little-endian int16 samples. A trailing odd
// byte is dropped.
func (c *Converter) Convert(data []byte) ([]byte, error) {
	data = data[:len(data)/2*2]
	if c.srcRate == c.dstRate || len(data) == 0 {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	input := make([]float64, len(data)/2)
	for i := range input {
		sample := int16(data[i*2]) | int16(data[i*2+1])<<8
		input[i] = float64(sample) / 32768.0
	}

	c.mu.Lock()
	output, err := c.resampler.Process(input)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("resampler: resample error: %w", err)
	}

	out := make([]byte, len(output)*2)
	for i, s := range output {
		sample := int16(s * 32767.0)
		if s > 1.0 {
			sample = 32767
		} else if s < -1.0 {
			sample = -32768
		}
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}
	return out, nil
}

// Reset discards filter state, e.g. after playback is interrupted.
func (c *Converter) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reset()
}

func (c *Converter) reset() error {
	if c.srcRate == c.dstRate {
		return nil
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(c.srcRate),
		OutputRate: float64(c.dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return fmt.Errorf("resampler: failed to create resampler: %w", err)
	}
	c.resampler = rs
	return nil
}
