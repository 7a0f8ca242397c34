// Package turn interprets the Live event stream and tracks conversation state.
//
// A Machine owns the SessionState of one conversation and the model turn
// currently being received. Explicit transitions (BeginConnect, SocketOpen,
// SetupSent, BeginClose, Closed) come from the caller; everything else is
// driven by Dispatch in the order the transport delivered events.
//
// Effects are reported through Handler callbacks: status strings,
// transcripts, audio parts to play, interruptions and forced disconnects.
package turn
