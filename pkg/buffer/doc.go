// Package buffer provides a thread-safe ring buffer that keeps a sliding
// window of the most recent elements.
//
// It backs the capture analysis window (the last few hundred samples used
// to measure speech energy) and the CLI log tail.
//
//	rb := buffer.RingN[int16](256)
//	rb.Write(samples)
//	window := rb.Snapshot()
package buffer
