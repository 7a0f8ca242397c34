package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.FrameSent(FrameAudio)
	m.FrameSent(FrameAudio)
	m.FrameSent(FrameActivityStart)
	m.FrameDropped()
	m.ChunkPlayed(500 * time.Millisecond)
	m.ChunkPlayed(250 * time.Millisecond)
	m.Interrupted()
	m.SetSessionState(3)
	m.TurnClosed("completed")

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"wonderchat_frames_sent_total", map[string]string{"kind": FrameAudio}, 2},
		{"wonderchat_frames_sent_total", map[string]string{"kind": FrameActivityStart}, 1},
		{"wonderchat_capture_frames_dropped_total", nil, 1},
		{"wonderchat_chunks_played_total", nil, 2},
		{"wonderchat_playback_seconds_total", nil, 0.75},
		{"wonderchat_interruptions_total", nil, 1},
		{"wonderchat_session_state", nil, 3},
		{"wonderchat_turns_total", map[string]string{"status": "completed"}, 1},
	}
	for _, tt := range tests {
		if got := counterValue(t, reg, tt.name, tt.labels); got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.FrameSent(FrameText)
	m.FrameDropped()
	m.SendFailed()
	m.EventReceived("x")
	m.ProtocolError()
	m.ServerError()
	m.TurnClosed("completed")
	m.ChunkPlayed(time.Second)
	m.DecodeError()
	m.Interrupted()
	m.SetQueueLen(1)
	m.SetSessionState(1)
	m.Connected(time.Second)
	m.Activity(time.Second)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Interrupted()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "wonderchat_interruptions_total 1") {
		t.Errorf("scrape does not contain the interruption counter:\n%s", body)
	}
}
