// Package audio groups the audio sub-packages:
//
//   - pcm: 16-bit little-endian PCM formats, chunks and encoding helpers
//   - resampler: sample rate and channel conversion
//   - portaudio: microphone and speaker streams
//
// Example:
//
//	format := pcm.L16Mono16K
//	chunk := format.DataChunk(data)
//	rate := format.SampleRate()
package audio
