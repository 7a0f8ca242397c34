// Package voicechat runs a spoken conversation with a Live model.
//
// An Orchestrator owns one conversation at a time. Connect opens a session
// and sends setup; StartListening captures microphone audio and forwards it
// only while the voice activity detector reports speech, bracketed by
// activity markers. Model audio is played back in order and cut off when the
// service reports an interruption. Authentication errors and remote closes
// tear the session down.
//
// Every connection keeps a bounded debug log that is handed to
// Handler.OnLogExport when the session is torn down.
package voicechat
