// Package resampler converts 16-bit mono PCM chunks between sample rates
// using a pure Go resampler (no CGO/FFI dependencies).
//
// Example usage:
//
//	c, err := resampler.NewConverter(16000, 24000)
//	if err != nil {
//	    return err
//	}
//	out, err := c.Convert(chunk)
package resampler
