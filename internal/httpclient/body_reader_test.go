package httpclient

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestNewBodySource(t *testing.T) {
	dir := t.TempDir()
	payload := filepath.Join(dir, "challenge.json")
	if err := os.WriteFile(payload, []byte(`{"challenge":"abc"}`), 0o600); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	tests := []struct {
		name     string
		inline   string
		path     string
		wantBody string
		wantErr  bool
	}{
		{name: "empty", wantBody: ""},
		{name: "inline", inline: `{"a":1}`, wantBody: `{"a":1}`},
		{name: "file", path: payload, wantBody: `{"challenge":"abc"}`},
		{name: "file with whitespace path", path: "  " + payload + " ", wantBody: `{"challenge":"abc"}`},
		{name: "both", inline: "x", path: payload, wantErr: true},
		{name: "missing file", path: filepath.Join(dir, "missing.json"), wantErr: true},
		{name: "directory", path: dir, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewBodySource(tt.inline, tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBodySource() error = %v", err)
			}
			reader, err := src.NewReader()
			if err != nil {
				t.Fatalf("NewReader() error = %v", err)
			}
			data, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			_ = reader.Close()
			if string(data) != tt.wantBody {
				t.Fatalf("body = %q, want %q", data, tt.wantBody)
			}
			length, ok := src.ContentLength()
			if !ok || length != int64(len(tt.wantBody)) {
				t.Fatalf("ContentLength() = %d,%v want %d", length, ok, len(tt.wantBody))
			}
		})
	}
}

func TestFileBodySourceReadOnce(t *testing.T) {
	dir := t.TempDir()
	payload := filepath.Join(dir, "quote.json")
	if err := os.WriteFile(payload, []byte("first"), 0o600); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	src, err := NewBodySource("", payload)
	if err != nil {
		t.Fatalf("NewBodySource() error = %v", err)
	}
	if err := os.WriteFile(payload, []byte("second"), 0o600); err != nil {
		t.Fatalf("rewrite payload: %v", err)
	}
	reader, _ := src.NewReader()
	data, _ := io.ReadAll(reader)
	if string(data) != "first" {
		t.Fatalf("expected payload captured at load time, got %q", data)
	}
}
