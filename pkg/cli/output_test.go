package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

var history = []message{
	{Role: "user", Content: "hi"},
	{Role: "assistant", Content: "Hello friend!"},
	{Role: "user", Content: "what is a dinosaur?"},
}

func TestOutputFormats(t *testing.T) {
	tests := []struct {
		name   string
		format OutputFormat
		value  any
		want   string
	}{
		{"json", FormatJSON, message{"user", "hi"}, "{\n  \"role\": \"user\",\n  \"content\": \"hi\"\n}\n"},
		{"yaml", FormatYAML, message{"user", "hi"}, "role: user\ncontent: hi\n"},
		{"default yaml", "", message{"user", "hi"}, "role: user\ncontent: hi\n"},
		{"raw string", FormatRaw, "hello", "hello\n"},
		{"raw bytes", FormatRaw, []byte("pcm"), "pcm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Output(tt.value, OutputOptions{Format: tt.format, Writer: &buf}); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestOutputUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Output("x", OutputOptions{Format: "xml", Writer: &buf}); err == nil {
		t.Error("expected error for xml")
	}
}

func TestOutputQuery(t *testing.T) {
	var buf bytes.Buffer
	err := Output(history, OutputOptions{
		Format: FormatRaw,
		Query:  `.[] | select(.role == "user") | .content`,
		Writer: &buf,
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := "hi\nwhat is a dinosaur?\n"; buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestQuery(t *testing.T) {
	got, err := Query(history, `map(select(.role == "assistant")) | length`)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("Query = %v, want [1]", got)
	}

	if _, err := Query(history, `.[`); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Query(history, `.[0] | error("boom")`); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("runtime error = %v", err)
	}
}

func TestOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := Output(message{"user", "hi"}, OutputOptions{Format: FormatJSON, File: path}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"content": "hi"`) {
		t.Errorf("file = %s", data)
	}
}
