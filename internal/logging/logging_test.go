package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/nhle/todo-client/internal/model"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    log.Level
		wantErr bool
	}{
		{in: "", want: log.InfoLevel},
		{in: "debug", want: log.DebugLevel},
		{in: " WARN ", want: log.WarnLevel},
		{in: "error", want: log.ErrorLevel},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    log.Formatter
		wantErr bool
	}{
		{in: "", want: log.TextFormatter},
		{in: "json", want: log.JSONFormatter},
		{in: "LOGFMT", want: log.LogfmtFormatter},
		{in: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "client.log")

	logger, err := New(model.LogConfig{Level: "debug", Format: "logfmt", Path: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("request sent", "method", "GET")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "request sent") || !strings.Contains(string(data), "method=GET") {
		t.Errorf("log file = %q, want message with method field", data)
	}
}

func TestNewWithoutPathDiscards(t *testing.T) {
	logger, err := New(model.LogConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("nothing to see")
	if err := logger.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(model.LogConfig{Level: "chatty"}); err == nil {
		t.Error("New with bad level: want error")
	}
}
