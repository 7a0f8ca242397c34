// Package portaudio provides microphone and speaker streams backed by the
// PortAudio library.
//
// Requires portaudio installed via pkg-config (brew install portaudio,
// apt install portaudio19-dev).
package portaudio

import (
	"errors"
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"
)

var (
	initMu  sync.Mutex
	initRef int
)

// Initialize initializes PortAudio. Calls are reference counted; each
// successful Initialize must be paired with Terminate.
func Initialize() error {
	initMu.Lock()
	defer initMu.Unlock()
	if initRef == 0 {
		if err := pa.Initialize(); err != nil {
			return fmt.Errorf("portaudio: initialize: %w", err)
		}
	}
	initRef++
	return nil
}

// Terminate releases PortAudio once every Initialize has been matched.
func Terminate() error {
	initMu.Lock()
	defer initMu.Unlock()
	if initRef == 0 {
		return nil
	}
	initRef--
	if initRef == 0 {
		if err := pa.Terminate(); err != nil {
			return fmt.Errorf("portaudio: terminate: %w", err)
		}
	}
	return nil
}

// Using runs fn with PortAudio initialized.
func Using(fn func() error) (err error) {
	if err = Initialize(); err != nil {
		return err
	}
	defer func() {
		if e := Terminate(); e != nil {
			err = errors.Join(err, e)
		}
	}()
	return fn()
}

// DeviceInfo describes an audio device.
type DeviceInfo struct {
	Index             int     `json:"index" yaml:"index"`
	Name              string  `json:"name" yaml:"name"`
	HostAPI           string  `json:"host_api,omitempty" yaml:"host_api,omitempty"`
	MaxInputChannels  int     `json:"max_input_channels" yaml:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels" yaml:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate" yaml:"default_sample_rate"`
	DefaultInput      bool    `json:"default_input,omitempty" yaml:"default_input,omitempty"`
	DefaultOutput     bool    `json:"default_output,omitempty" yaml:"default_output,omitempty"`
}

// Devices lists the available audio devices. PortAudio must be initialized.
func Devices() ([]DeviceInfo, error) {
	devs, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	var in, out *pa.DeviceInfo
	if d, err := pa.DefaultInputDevice(); err == nil {
		in = d
	}
	if d, err := pa.DefaultOutputDevice(); err == nil {
		out = d
	}
	infos := make([]DeviceInfo, 0, len(devs))
	for _, d := range devs {
		info := DeviceInfo{
			Index:             d.Index,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			DefaultInput:      in != nil && in.Index == d.Index,
			DefaultOutput:     out != nil && out.Index == d.Index,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		infos = append(infos, info)
	}
	return infos, nil
}
