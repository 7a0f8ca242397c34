package vad

import (
	"testing"
	"time"
)

type timedEvent struct {
	at time.Duration
	ev Event
}

// feed drives the detector with one level per 100ms tick starting at t=0 and
// returns every non-None event with its offset.
func feed(d *Detector, levels []float64) []timedEvent {
	base := time.Unix(1700000000, 0)
	var out []timedEvent
	for i, l := range levels {
		at := time.Duration(i) * 100 * time.Millisecond
		if ev := d.Observe(l, base.Add(at)); ev != None {
			out = append(out, timedEvent{at, ev})
		}
	}
	return out
}

func levels(pairs ...any) []float64 {
	var out []float64
	for i := 0; i < len(pairs); i += 2 {
		l := pairs[i].(float64)
		n := pairs[i+1].(int)
		for range n {
			out = append(out, l)
		}
	}
	return out
}

func TestDetectorScenarios(t *testing.T) {
	tests := []struct {
		name   string
		levels []float64
		want   []timedEvent
	}{
		{
			name:   "speech then silence",
			levels: levels(0.02, 5, 0.0, 20),
			want:   []timedEvent{{300 * time.Millisecond, ActivityStart}, {1600 * time.Millisecond, ActivityEnd}},
		},
		{
			name:   "short blip is discarded",
			levels: levels(0.0, 2, 0.05, 2, 0.0, 20),
			want:   nil,
		},
		{
			name:   "speech exactly at minimum",
			levels: levels(0.02, 3, 0.0, 20),
			want:   []timedEvent{{300 * time.Millisecond, ActivityStart}, {1400 * time.Millisecond, ActivityEnd}},
		},
		{
			name:   "short pause keeps interval open",
			levels: levels(0.02, 5, 0.0, 6, 0.02, 5, 0.0, 20),
			want:   []timedEvent{{300 * time.Millisecond, ActivityStart}, {2700 * time.Millisecond, ActivityEnd}},
		},
		{
			name:   "level equal to threshold is silence",
			levels: levels(0.01, 10),
			want:   nil,
		},
		{
			name:   "two separate utterances",
			levels: levels(0.3, 4, 0.0, 12, 0.3, 4, 0.0, 12),
			want: []timedEvent{
				{300 * time.Millisecond, ActivityStart},
				{1500 * time.Millisecond, ActivityEnd},
				{1900 * time.Millisecond, ActivityStart},
				{3100 * time.Millisecond, ActivityEnd},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(DefaultConfig())
			got := feed(d, tt.levels)
			if len(got) != len(tt.want) {
				t.Fatalf("events = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d = %v@%v, want %v@%v", i, got[i].ev, got[i].at, tt.want[i].ev, tt.want[i].at)
				}
			}
		})
	}
}

func TestDetectorAlternates(t *testing.T) {
	d := NewDetector(DefaultConfig())
	pattern := levels(0.2, 4, 0.0, 3, 0.2, 1, 0.0, 15, 0.5, 2, 0.0, 12, 0.2, 8, 0.0, 11)
	var open bool
	for _, e := range feed(d, pattern) {
		switch e.ev {
		case ActivityStart:
			if open {
				t.Fatalf("start while open at %v", e.at)
			}
			open = true
		case ActivityEnd:
			if !open {
				t.Fatalf("end without start at %v", e.at)
			}
			open = false
		}
	}
	if open != d.Open() {
		t.Errorf("Open() = %v, tracked %v", d.Open(), open)
	}
}

func TestDetectorFlush(t *testing.T) {
	d := NewDetector(DefaultConfig())
	if ev := d.Flush(); ev != None {
		t.Errorf("Flush() on idle detector = %v", ev)
	}
	feed(d, levels(0.2, 5))
	if !d.Open() {
		t.Fatal("expected open interval")
	}
	if ev := d.Flush(); ev != ActivityEnd {
		t.Errorf("Flush() = %v, want ActivityEnd", ev)
	}
	if d.Open() {
		t.Error("interval still open after Flush")
	}
	if ev := d.Flush(); ev != None {
		t.Errorf("second Flush() = %v", ev)
	}

	// Speech shorter than the minimum is dropped silently.
	feed(d, levels(0.2, 2))
	if ev := d.Flush(); ev != None {
		t.Errorf("Flush() of unreported speech = %v", ev)
	}
}

func TestDetectorSetConfig(t *testing.T) {
	d := NewDetector(DefaultConfig())
	base := time.Unix(0, 0)
	if ev := d.Observe(0.05, base); ev != None {
		t.Fatalf("Observe = %v", ev)
	}
	d.Reset()

	cfg := d.Config()
	cfg.SilenceThreshold = 0.1
	cfg.MinSpeechDuration = 0
	d.SetConfig(cfg)
	if ev := d.Observe(0.05, base); ev != None {
		t.Errorf("level below new threshold reported %v", ev)
	}
	if ev := d.Observe(0.2, base.Add(100*time.Millisecond)); ev != ActivityStart {
		t.Errorf("Observe with zero min speech = %v, want ActivityStart", ev)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"default", DefaultConfig(), true},
		{"threshold too high", Config{SilenceThreshold: 1.5}, false},
		{"negative threshold", Config{SilenceThreshold: -0.1}, false},
		{"negative silence", Config{SilenceDuration: -time.Second}, false},
		{"negative min speech", Config{MinSpeechDuration: -time.Second}, false},
	}
	for _, tt := range tests {
		if err := tt.cfg.Validate(); (err == nil) != tt.ok {
			t.Errorf("%s: Validate() = %v", tt.name, err)
		}
	}
}

func TestPatchApply(t *testing.T) {
	off := false
	threshold := 0.05
	cfg := Patch{Enabled: &off, SilenceThreshold: &threshold}.Apply(DefaultConfig())
	if cfg.Enabled {
		t.Error("Enabled not patched")
	}
	if cfg.SilenceThreshold != 0.05 {
		t.Errorf("SilenceThreshold = %v", cfg.SilenceThreshold)
	}
	if cfg.SilenceDuration != DefaultSilenceDuration || cfg.MinSpeechDuration != DefaultMinSpeechDuration {
		t.Errorf("unpatched fields changed: %+v", cfg)
	}
}
