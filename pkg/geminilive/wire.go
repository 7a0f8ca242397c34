package geminilive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Outbound frames.

type clientMessage struct {
	Setup         *wireSetup         `json:"setup,omitempty"`
	RealtimeInput *wireRealtimeInput `json:"realtimeInput,omitempty"`
	ClientContent *wireClientContent `json:"clientContent,omitempty"`
}

type wireSetup struct {
	Model  string          `json:"model"`
	Config wireSetupConfig `json:"config"`
}

type wireSetupConfig struct {
	ResponseModalities      []string                 `json:"responseModalities"`
	SpeechConfig            *wireSpeechConfig        `json:"speechConfig,omitempty"`
	SystemInstruction       *wireContent             `json:"systemInstruction,omitempty"`
	EnableAffectiveDialog   bool                     `json:"enableAffectiveDialog,omitempty"`
	Proactivity             *wireProactivity         `json:"proactivity,omitempty"`
	InputAudioTranscription *struct{}                `json:"inputAudioTranscription,omitempty"`
	RealtimeInputConfig     *wireRealtimeInputConfig `json:"realtimeInputConfig,omitempty"`
}

type wireSpeechConfig struct {
	VoiceConfig  wireVoiceConfig `json:"voiceConfig"`
	LanguageCode string          `json:"languageCode,omitempty"`
}

type wireVoiceConfig struct {
	PrebuiltVoiceConfig struct {
		VoiceName string `json:"voiceName"`
	} `json:"prebuiltVoiceConfig"`
}

type wireProactivity struct {
	ProactiveAudio bool `json:"proactiveAudio"`
}

type wireRealtimeInputConfig struct {
	AutomaticActivityDetection wireActivityDetection `json:"automaticActivityDetection"`
	ActivityHandling           string                `json:"activityHandling,omitempty"`
}

type wireActivityDetection struct {
	Disabled                 bool   `json:"disabled"`
	StartOfSpeechSensitivity string `json:"startOfSpeechSensitivity,omitempty"`
	EndOfSpeechSensitivity   string `json:"endOfSpeechSensitivity,omitempty"`
	PrefixPaddingMs          int64  `json:"prefixPaddingMs,omitempty"`
	SilenceDurationMs        int64  `json:"silenceDurationMs,omitempty"`
}

type wireRealtimeInput struct {
	Media         *wireBlob `json:"media,omitempty"`
	ActivityStart *struct{} `json:"activityStart,omitempty"`
	ActivityEnd   *struct{} `json:"activityEnd,omitempty"`
}

type wireBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wireClientContent struct {
	Turns        []wireContent `json:"turns"`
	TurnComplete bool          `json:"turnComplete"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text       string    `json:"text,omitempty"`
	InlineData *wireBlob `json:"inlineData,omitempty"`
}

func setupMessage(s Setup, defaultModel string) clientMessage {
	model := s.Model
	if model == "" {
		model = defaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	cfg := wireSetupConfig{
		ResponseModalities:    []string{"AUDIO"},
		EnableAffectiveDialog: s.EnableAffectiveDialog,
	}
	if s.Voice != "" {
		sc := &wireSpeechConfig{LanguageCode: s.LanguageCode}
		sc.VoiceConfig.PrebuiltVoiceConfig.VoiceName = s.Voice
		cfg.SpeechConfig = sc
	}
	if s.SystemInstruction != "" {
		cfg.SystemInstruction = &wireContent{Parts: []wirePart{{Text: s.SystemInstruction}}}
	}
	if s.ProactiveAudio {
		cfg.Proactivity = &wireProactivity{ProactiveAudio: true}
	}
	if s.InputTranscription {
		cfg.InputAudioTranscription = &struct{}{}
	}
	ad := s.ActivityDetection
	cfg.RealtimeInputConfig = &wireRealtimeInputConfig{
		AutomaticActivityDetection: wireActivityDetection{
			Disabled:                 ad.Disabled,
			StartOfSpeechSensitivity: ad.StartSensitivity,
			EndOfSpeechSensitivity:   ad.EndSensitivity,
			PrefixPaddingMs:          ad.PrefixPadding.Milliseconds(),
			SilenceDurationMs:        ad.SilenceDuration.Milliseconds(),
		},
		ActivityHandling: s.ActivityHandling,
	}
	return clientMessage{Setup: &wireSetup{Model: model, Config: cfg}}
}

// Inbound frames.

type serverMessage struct {
	SetupComplete json.RawMessage    `json:"setupComplete"`
	ServerContent *wireServerContent `json:"serverContent"`
	Error         *wireError         `json:"error"`
	GoAway        *wireGoAway        `json:"goAway"`
	UsageMetadata json.RawMessage    `json:"usageMetadata"`
}

type wireServerContent struct {
	Interrupted        bool               `json:"interrupted"`
	TurnComplete       bool               `json:"turnComplete"`
	GenerationComplete bool               `json:"generationComplete"`
	ModelTurn          *wireContent       `json:"modelTurn"`
	InputTranscription *wireTranscription `json:"inputTranscription"`
}

type wireTranscription struct {
	Text     string `json:"text"`
	IsFinal  bool   `json:"isFinal"`
	Finished bool   `json:"finished"`
}

type wireError struct {
	Code    json.RawMessage `json:"code"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
}

type wireGoAway struct {
	TimeLeft string `json:"timeLeft"`
}

// decodeFrame decodes one inbound frame into zero or more events, in the
// order they must be processed.
func decodeFrame(data []byte) ([]Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: frame is not a JSON object", ErrProtocol)
	}
	var msg serverMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	var events []Event
	if msg.SetupComplete != nil && !bytes.Equal(msg.SetupComplete, []byte("null")) && !bytes.Equal(msg.SetupComplete, []byte("false")) {
		events = append(events, SetupComplete{})
	}
	if sc := msg.ServerContent; sc != nil {
		events = append(events, decodeServerContent(sc)...)
	}
	if msg.Error != nil {
		events = append(events, ServerError{Err: msg.Error.toError()})
	}
	if msg.GoAway != nil {
		left, _ := time.ParseDuration(msg.GoAway.TimeLeft)
		events = append(events, GoAway{TimeLeft: left})
	}
	known := msg.SetupComplete != nil || msg.ServerContent != nil ||
		msg.Error != nil || msg.GoAway != nil || msg.UsageMetadata != nil
	if !known {
		return nil, fmt.Errorf("%w: unrecognized frame", ErrProtocol)
	}
	return events, nil
}

func decodeServerContent(sc *wireServerContent) []Event {
	var events []Event
	if sc.Interrupted {
		// Parts that arrive with an interruption belong to the cancelled
		// response and are dropped.
		events = append(events, Interrupted{})
	} else if sc.ModelTurn != nil {
		var texts []string
		var audio []Event
		for _, p := range sc.ModelTurn.Parts {
			if p.Text != "" {
				texts = append(texts, p.Text)
			}
			if p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "audio/") {
				audio = append(audio, ModelAudio{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data})
			}
		}
		if len(texts) > 0 {
			events = append(events, ModelText{Text: strings.Join(texts, " ")})
		}
		events = append(events, audio...)
	}
	if t := sc.InputTranscription; t != nil && t.Text != "" {
		events = append(events, InputTranscription{Text: t.Text, Final: t.IsFinal || t.Finished})
	}
	if sc.TurnComplete {
		events = append(events, TurnComplete{})
	}
	return events
}

func (w *wireError) toError() *Error {
	e := &Error{Status: w.Status, Message: w.Message}
	code := bytes.TrimSpace(w.Code)
	if len(code) == 0 {
		return e
	}
	if code[0] == '"' {
		var s string
		if json.Unmarshal(code, &s) == nil {
			if n, err := strconv.Atoi(s); err == nil {
				e.Code = n
			} else if e.Status == "" {
				e.Status = s
			}
		}
		return e
	}
	var n int
	if json.Unmarshal(code, &n) == nil {
		e.Code = n
	}
	return e
}
