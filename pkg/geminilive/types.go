package geminilive

import "time"

// Models and voices.
const (
	// ModelNativeAudioDialog is the native audio dialog model.
	ModelNativeAudioDialog = "gemini-2.5-flash-preview-native-audio-dialog"

	// ModelLive is the half-cascade live model.
	ModelLive = "gemini-live-2.5-flash-preview"

	DefaultVoice    = "Zephyr"
	DefaultLanguage = "en-US"
)

// Activity detection sensitivities.
const (
	StartSensitivityHigh = "START_SENSITIVITY_HIGH"
	StartSensitivityLow  = "START_SENSITIVITY_LOW"
	EndSensitivityHigh   = "END_SENSITIVITY_HIGH"
	EndSensitivityLow    = "END_SENSITIVITY_LOW"

	// ActivityHandlingInterrupt lets user speech interrupt the model.
	ActivityHandlingInterrupt = "INTERRUPTION"
	// ActivityHandlingNoInterrupt keeps the model talking over user speech.
	ActivityHandlingNoInterrupt = "NO_INTERRUPTION"
)

// Setup describes the session requested by Connect.
type Setup struct {
	// Model is the model name, with or without the "models/" prefix.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// SystemInstruction is the system prompt.
	SystemInstruction string `json:"system_instruction,omitempty" yaml:"system_instruction,omitempty"`

	// Voice is the prebuilt voice name.
	Voice string `json:"voice,omitempty" yaml:"voice,omitempty"`

	// LanguageCode is the speech language, e.g. "en-US".
	LanguageCode string `json:"language_code,omitempty" yaml:"language_code,omitempty"`

	EnableAffectiveDialog bool `json:"enable_affective_dialog,omitempty" yaml:"enable_affective_dialog,omitempty"`
	ProactiveAudio        bool `json:"proactive_audio,omitempty" yaml:"proactive_audio,omitempty"`

	// InputTranscription requests transcripts of the user's speech.
	InputTranscription bool `json:"input_transcription,omitempty" yaml:"input_transcription,omitempty"`

	ActivityDetection ActivityDetection `json:"activity_detection" yaml:"activity_detection"`

	// ActivityHandling is one of the ActivityHandling* constants.
	ActivityHandling string `json:"activity_handling,omitempty" yaml:"activity_handling,omitempty"`
}

// ActivityDetection configures server-side voice activity detection.
type ActivityDetection struct {
	Disabled         bool          `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	StartSensitivity string        `json:"start_sensitivity,omitempty" yaml:"start_sensitivity,omitempty"`
	EndSensitivity   string        `json:"end_sensitivity,omitempty" yaml:"end_sensitivity,omitempty"`
	PrefixPadding    time.Duration `json:"prefix_padding,omitempty" yaml:"prefix_padding,omitempty"`
	SilenceDuration  time.Duration `json:"silence_duration,omitempty" yaml:"silence_duration,omitempty"`
}

// DefaultSetup returns the session settings used by the voice assistant.
func DefaultSetup() Setup {
	return Setup{
		Model:                 ModelNativeAudioDialog,
		Voice:                 DefaultVoice,
		LanguageCode:          DefaultLanguage,
		EnableAffectiveDialog: true,
		ProactiveAudio:        true,
		InputTranscription:    true,
		ActivityDetection: ActivityDetection{
			StartSensitivity: StartSensitivityHigh,
			EndSensitivity:   EndSensitivityHigh,
			PrefixPadding:    500 * time.Millisecond,
			SilenceDuration:  800 * time.Millisecond,
		},
		ActivityHandling: ActivityHandlingInterrupt,
	}
}
