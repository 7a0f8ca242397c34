// Package playback plays model audio parts back to back.
//
// A Sequencer decodes each base64 PCM part, resamples it to the output rate
// when needed and hands it to a Speaker, strictly in arrival order. Interrupt
// drops everything queued and cancels the chunk being played.
package playback
