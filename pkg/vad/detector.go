package vad

import (
	"sync"
	"time"
)

// Event is the result of feeding one level sample to a Detector.
type Event int

const (
	// None means the sample did not change the reported activity.
	None Event = iota
	// ActivityStart marks the beginning of a reported speech interval.
	ActivityStart
	// ActivityEnd marks the end of a reported speech interval.
	ActivityEnd
)

func (e Event) String() string {
	switch e {
	case None:
		return "none"
	case ActivityStart:
		return "activity_start"
	case ActivityEnd:
		return "activity_end"
	}
	return "unknown"
}

// Detector turns a sequence of signal levels into speech intervals.
//
// A level above the threshold marks the speaker as speaking. Speech is
// reported with ActivityStart only once it has lasted MinSpeechDuration, so
// short blips are never reported. An interval closes after the level stays at
// or below the threshold for longer than SilenceDuration; ActivityEnd is
// emitted only for intervals that were reported. Starts and ends therefore
// strictly alternate.
//
// The detector keeps no clock of its own: each call to Observe carries the
// sample time. It is safe for concurrent use.
type Detector struct {
	mu  sync.Mutex
	cfg Config

	speaking     bool
	reported     bool
	speechStart  time.Time
	silenceStart time.Time
}

// NewDetector creates a Detector with the given settings.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Config returns the current settings.
func (d *Detector) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// SetConfig replaces the settings. They apply from the next Observe call.
func (d *Detector) SetConfig(cfg Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
}

// Open reports whether an ActivityStart has been emitted without a matching
// ActivityEnd.
func (d *Detector) Open() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reported
}

// Observe feeds a level measured at now.
func (d *Detector) Observe(level float64, now time.Time) Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	if level > d.cfg.SilenceThreshold {
		if !d.speaking {
			d.speaking = true
			d.speechStart = now
		}
		d.silenceStart = time.Time{}
	} else if d.speaking {
		if d.silenceStart.IsZero() {
			d.silenceStart = now
		} else if now.Sub(d.silenceStart) > d.cfg.SilenceDuration {
			ended := d.reported
			d.resetLocked()
			if ended {
				return ActivityEnd
			}
			return None
		}
	}

	if d.speaking && !d.reported {
		speechEnd := now
		if !d.silenceStart.IsZero() {
			speechEnd = d.silenceStart
		}
		if speechEnd.Sub(d.speechStart) >= d.cfg.MinSpeechDuration {
			d.reported = true
			return ActivityStart
		}
	}
	return None
}

// Flush closes any open interval. It returns ActivityEnd if an interval had
// been reported, None otherwise. Detector state is cleared either way.
func (d *Detector) Flush() Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	ended := d.reported
	d.resetLocked()
	if ended {
		return ActivityEnd
	}
	return None
}

// Reset clears all state without emitting anything.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
}

func (d *Detector) resetLocked() {
	d.speaking = false
	d.reported = false
	d.speechStart = time.Time{}
	d.silenceStart = time.Time{}
}
