package shared

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestConfigureLogger(t *testing.T) {
	tc := []struct {
		name    string
		level   string
		want    log.Level
		wantErr bool
	}{
		{name: "empty keeps level", level: "", want: log.InfoLevel},
		{name: "debug", level: "debug", want: log.DebugLevel},
		{name: "mixed case", level: "WARN", want: log.WarnLevel},
		{name: "unknown", level: "loud", want: log.InfoLevel, wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLogger(&bytes.Buffer{})
			err := ConfigureLogger(l, LogConfig{Level: tt.level})
			if (err != nil) != tt.wantErr {
				t.Fatalf("ConfigureLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := l.GetLevel(); got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	l := WithLogger(NewLogger(&buf), "component", "ingest")
	l.Info("hello")

	if !strings.Contains(buf.String(), "component=ingest") {
		t.Errorf("expected child logger fields in output, got %q", buf.String())
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("GenerateID() returned duplicate IDs")
	}
	if !ValidID(a) {
		t.Errorf("ValidID(%q) = false", a)
	}
	if ValidID("not-a-uuid") {
		t.Error("ValidID() accepted garbage")
	}
}

func TestOpenCommand(t *testing.T) {
	for _, goos := range []string{"darwin", "linux", "windows"} {
		t.Run(goos, func(t *testing.T) {
			cmd, err := openCommand(goos, "http://localhost:3000")
			if err != nil {
				t.Fatalf("openCommand() error = %v", err)
			}
			if got := cmd.Args[len(cmd.Args)-1]; got != "http://localhost:3000" {
				t.Errorf("last arg = %q, want the URL", got)
			}
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		if _, err := openCommand("plan9", "http://localhost"); err == nil {
			t.Error("expected error for unsupported platform")
		}
	})
}
