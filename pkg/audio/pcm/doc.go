// Package pcm provides types and utilities for working with 16-bit mono PCM
// audio as exchanged with a realtime voice model.
//
// Key types:
//   - Format: capture (16 kHz) and playback (24 kHz) formats
//   - Chunk: Interface for audio data chunks
//   - DataChunk: Concrete implementation of Chunk for raw audio data
//
// Codec helpers convert between float samples, little-endian bytes and the
// base64 payloads carried in JSON frames:
//
//	samples := pcm.Float32ToInt16(floats)
//	payload := pcm.EncodeBase64(pcm.Int16ToBytes(samples))
//	level := pcm.Level(samples) // 0..1, used for voice activity detection
package pcm
