package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/haivivi/wonderchat/pkg/cli"
	"github.com/haivivi/wonderchat/pkg/geminilive"
	"github.com/haivivi/wonderchat/pkg/profile"
	"github.com/haivivi/wonderchat/pkg/storage"
	"github.com/haivivi/wonderchat/pkg/transcript"
	"github.com/haivivi/wonderchat/pkg/vad"
)

func TestLiveSetup(t *testing.T) {
	child := &profile.Profile{Name: "Mia", Age: 7, Type: profile.TypeADHD}

	setup := liveSetup(&cli.Context{}, nil, liveOptions{})
	def := geminilive.DefaultSetup()
	if setup.Model != def.Model || setup.Voice != def.Voice || setup.LanguageCode != def.LanguageCode {
		t.Errorf("empty context changed defaults: %+v", setup)
	}
	if setup.SystemInstruction != profile.LiveInstruction(nil) {
		t.Error("instruction without profile")
	}

	setup = liveSetup(&cli.Context{Model: "ctx-model", Voice: "Puck", Language: "de-DE"}, child, liveOptions{Voice: "Kore"})
	if setup.Model != "ctx-model" {
		t.Errorf("Model = %q", setup.Model)
	}
	if setup.Voice != "Kore" {
		t.Errorf("Voice = %q, flag should win", setup.Voice)
	}
	if setup.LanguageCode != "de-DE" {
		t.Errorf("LanguageCode = %q", setup.LanguageCode)
	}
	if !strings.Contains(setup.SystemInstruction, "Mia") {
		t.Errorf("instruction does not mention the child: %q", setup.SystemInstruction)
	}
}

func TestLiveVAD(t *testing.T) {
	threshold := 0.05
	c := &cli.Context{VAD: &vad.Patch{SilenceThreshold: &threshold}}

	cfg := liveVAD(c, liveOptions{})
	if !cfg.Enabled || cfg.SilenceThreshold != threshold {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.SilenceDuration != vad.DefaultConfig().SilenceDuration {
		t.Errorf("SilenceDuration = %v, want default", cfg.SilenceDuration)
	}
	if cfg := liveVAD(c, liveOptions{NoVAD: true}); cfg.Enabled {
		t.Error("--no-vad should disable detection")
	}
	if cfg := liveVAD(&cli.Context{}, liveOptions{}); cfg != vad.DefaultConfig() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func sampleMessages() []*transcript.Message {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	return []*transcript.Message{
		{Seq: 1, Role: transcript.RoleUser, Kind: transcript.KindText, Content: "hi", CreatedAt: at},
		{Seq: 2, Role: transcript.RoleAssistant, Kind: transcript.KindText, Content: "Hello!", CreatedAt: at.Add(time.Second)},
	}
}

func TestSessionSpan(t *testing.T) {
	msgs := sampleMessages()
	if got := sessionSpan(msgs); got != time.Second {
		t.Errorf("sessionSpan = %v, want 1s", got)
	}
	if got := cli.FormatDuration(sessionSpan(msgs)); got != "1.0s" {
		t.Errorf("formatted span = %q, want 1.0s", got)
	}
	if got := sessionSpan(msgs[:1]); got != 0 {
		t.Errorf("single message span = %v, want 0", got)
	}
	if got := sessionSpan(nil); got != 0 {
		t.Errorf("empty span = %v, want 0", got)
	}
}

func TestEncodeTranscript(t *testing.T) {
	msgs := sampleMessages()

	txt, err := encodeTranscript(msgs, "txt")
	if err != nil {
		t.Fatal(err)
	}
	want := "[10:00:00] You: hi\n[10:00:01] WonderChat: Hello!\n"
	if string(txt) != want {
		t.Errorf("txt = %q, want %q", txt, want)
	}

	data, err := encodeTranscript(msgs, "json")
	if err != nil {
		t.Fatal(err)
	}
	var decoded []transcript.Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 2 || decoded[1].Content != "Hello!" {
		t.Errorf("decoded = %+v", decoded)
	}

	if _, err := encodeTranscript(msgs, "pdf"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestNewArchive(t *testing.T) {
	if a, err := newArchive(&cli.Context{}); a != nil || err != nil {
		t.Errorf("no export: %v, %v", a, err)
	}

	dir := t.TempDir()
	a, err := newArchive(&cli.Context{Export: &cli.ExportConfig{Dir: dir}})
	if err != nil {
		t.Fatal(err)
	}
	p, err := a.SaveDebugLog(context.Background(), "s1", "line")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(p)))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "line" {
		t.Errorf("archived %q", data)
	}

	s3, err := newArchive(&cli.Context{Export: &cli.ExportConfig{Bucket: "b", S3: storage.S3Config{Region: "us-east-1", Endpoint: "http://localhost:9000", PathStyle: true}}})
	if err != nil || s3 == nil {
		t.Errorf("bucket export: %v, %v", s3, err)
	}
}

func TestExportTarget(t *testing.T) {
	tests := []struct {
		e    *cli.ExportConfig
		want string
	}{
		{nil, "-"},
		{&cli.ExportConfig{Dir: "/logs"}, "/logs"},
		{&cli.ExportConfig{Bucket: "b", Prefix: "kids"}, "s3://b/kids"},
	}
	for _, tt := range tests {
		if got := exportTarget(tt.e); got != tt.want {
			t.Errorf("exportTarget(%+v) = %q, want %q", tt.e, got, tt.want)
		}
	}
}

func TestApplyContextFlags(t *testing.T) {
	flags := pflag.NewFlagSet("add-context", pflag.ContinueOnError)
	contextFlags(flags)
	err := flags.Parse([]string{
		"--api-key", "key",
		"--voice", "Puck",
		"--vad-threshold", "0.04",
		"--vad-silence", "800ms",
		"--export-bucket", "logs",
		"--s3-region", "us-east-1",
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := &cli.Context{Model: "kept"}
	if err := applyContextFlags(flags, ctx); err != nil {
		t.Fatal(err)
	}
	if ctx.APIKey != "key" || ctx.Voice != "Puck" || ctx.Model != "kept" {
		t.Errorf("ctx = %+v", ctx)
	}
	if ctx.VAD == nil || *ctx.VAD.SilenceThreshold != 0.04 || *ctx.VAD.SilenceDuration != 800*time.Millisecond {
		t.Errorf("VAD = %+v", ctx.VAD)
	}
	if ctx.VAD.Enabled != nil {
		t.Error("Enabled should stay unset")
	}
	if ctx.Export == nil || ctx.Export.Bucket != "logs" || ctx.Export.S3.Region != "us-east-1" {
		t.Errorf("Export = %+v", ctx.Export)
	}
}

func TestApplyContextFlagsRejectsBadVAD(t *testing.T) {
	flags := pflag.NewFlagSet("add-context", pflag.ContinueOnError)
	contextFlags(flags)
	if err := flags.Parse([]string{"--vad-threshold", "2"}); err != nil {
		t.Fatal(err)
	}
	if err := applyContextFlags(flags, &cli.Context{}); err == nil {
		t.Error("threshold above 1 accepted")
	}
	if flags.Lookup("api-key") == nil || configAddContextCmd.Flags().Lookup("api-key") == nil {
		t.Error("add-context does not register the context flags")
	}
}

func TestLiveViewPlain(t *testing.T) {
	var buf bytes.Buffer
	v := newLiveView(&buf, false)

	v.setStatus("Connected")
	v.setStatus("Connected")
	v.setInterim("hel")
	v.addUser("hello")
	v.addAssistant("Hi there!")
	v.addError(errors.New("boom"))

	out := buf.String()
	if n := strings.Count(out, "Connected"); n != 1 {
		t.Errorf("status printed %d times", n)
	}
	for _, want := range []string{"You: hello", "WonderChat: Hi there!", "Error: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hel\n") {
		t.Error("interim text should not be printed in plain mode")
	}
	if got := len(v.lines.Snapshot()); got != 3 {
		t.Errorf("kept %d lines, want 3", got)
	}
}

func TestLiveViewTUI(t *testing.T) {
	t.Setenv("COLUMNS", "60")
	t.Setenv("LINES", "20")
	var buf bytes.Buffer
	v := newLiveView(&buf, true)

	v.setInterim("what is a")
	v.logs.Write([]byte("level=INFO msg=connected\n"))
	v.setStatus("Listening...")

	out := buf.String()
	last := out[strings.LastIndex(out, "\x1b[2J"):]
	for _, want := range []string{"WonderChat", "Listening...", "what is a", "msg=connected"} {
		if !strings.Contains(last, want) {
			t.Errorf("frame missing %q:\n%s", want, last)
		}
	}
}
