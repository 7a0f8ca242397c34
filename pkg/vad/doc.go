// Package vad implements an energy-threshold voice activity detector.
//
// The detector is driven by periodic level samples (see pcm.Level) and
// reports debounced speech intervals as ActivityStart/ActivityEnd events.
package vad
