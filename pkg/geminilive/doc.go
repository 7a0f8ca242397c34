// Package geminilive provides a client for the Gemini Live API.
//
// The Live API streams microphone audio to a native-audio model over one
// WebSocket and streams spoken responses back. A session is opened with a
// setup message; audio, activity markers and text are only accepted once the
// service acknowledges setup.
//
// # Connecting
//
//	client := geminilive.NewClient(apiKey)
//	session, err := client.Connect(ctx, geminilive.DefaultSetup())
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
// Connect returns as soon as the socket is open and setup has been written.
// The acknowledgement arrives as a SetupComplete event:
//
//	for ev, err := range session.Events() {
//	    if err != nil {
//	        log.Printf("bad frame: %v", err)
//	        continue
//	    }
//	    switch ev := ev.(type) {
//	    case geminilive.SetupComplete:
//	        // ready to stream
//	    case geminilive.ModelAudio:
//	        play(ev.MIMEType, ev.Data)
//	    case geminilive.Closed:
//	        return
//	    }
//	}
//
// # Streaming
//
// With automatic activity detection disabled, the caller brackets each
// utterance with SendActivityStart and SendActivityEnd and streams
// 16 kHz PCM with SendAudio in between. SendText sends a complete text turn.
//
// # Errors
//
// Handshake failures wrap ErrConnectionFailed. Error frames arrive as
// ServerError events carrying an *Error; errors.Is(err, ErrAuthentication)
// reports credential rejections. The session never reconnects on its own.
package geminilive
