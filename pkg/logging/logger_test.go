package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetupWritesAtConfiguredLevel(t *testing.T) {
	tests := []struct {
		level   LogLevel
		emit    func(zerolog.Logger)
		visible bool
	}{
		{LevelDebug, func(l zerolog.Logger) { l.Debug().Msg("attempt sent") }, true},
		{LevelInfo, func(l zerolog.Logger) { l.Debug().Msg("attempt sent") }, false},
		{LevelInfo, func(l zerolog.Logger) { l.Info().Msg("attempt sent") }, true},
		{LevelWarn, func(l zerolog.Logger) { l.Info().Msg("attempt sent") }, false},
		{LevelWarn, func(l zerolog.Logger) { l.Warn().Msg("attempt sent") }, true},
		{LevelError, func(l zerolog.Logger) { l.Warn().Msg("attempt sent") }, false},
		{LevelDisabled, func(l zerolog.Logger) { l.Error().Msg("attempt sent") }, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.emit(Setup(Config{Level: tt.level, Output: buf}))

			if got := strings.Contains(buf.String(), "attempt sent"); got != tt.visible {
				t.Errorf("visible = %v, want %v (output %q)", got, tt.visible, buf.String())
			}
		})
	}
}

func TestSetupPretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})
	logger.Info().Str("operation", "places.get").Msg("done")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Errorf("pretty output should not be JSON: %q", out)
	}
	if !strings.Contains(out, "places.get") || !strings.Contains(out, "done") {
		t.Errorf("missing field in %q", out)
	}
}

func TestSetupNilOutputFallsBack(t *testing.T) {
	Setup(Config{Level: LevelError})

	if zerolog.GlobalLevel() != zerolog.ErrorLevel {
		t.Errorf("global level = %v, want error", zerolog.GlobalLevel())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"trace", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{" WARNING ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		wantLevel  LogLevel
		wantPretty bool
	}{
		{"empty", nil, LevelInfo, false},
		{"level", map[string]string{EnvLevel: " Debug "}, LevelDebug, false},
		{"pretty_true", map[string]string{EnvPretty: "true"}, LevelInfo, true},
		{"pretty_false", map[string]string{EnvPretty: "0"}, LevelInfo, false},
		{"pretty_any_value", map[string]string{EnvPretty: "yes"}, LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnv(func(k string) string { return tt.env[k] })
			if cfg.Level != tt.wantLevel {
				t.Errorf("Level = %q, want %q", cfg.Level, tt.wantLevel)
			}
			if cfg.Pretty != tt.wantPretty {
				t.Errorf("Pretty = %v, want %v", cfg.Pretty, tt.wantPretty)
			}
			if cfg.Output == nil {
				t.Error("Output should default to stderr")
			}
		})
	}
}

func TestNewLoggerUsesGlobal(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger(ComponentProxy)
	logger.Info().Msg("listening")

	out := buf.String()
	if !strings.Contains(out, `"component":"proxy"`) || !strings.Contains(out, "listening") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestComponent(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	buf := &bytes.Buffer{}
	parent := zerolog.New(buf).With().Str("service", "checkout").Logger()
	logger := Component(parent, ComponentRetry)
	logger.Warn().Int("attempt", 2).Msg("retrying")

	out := buf.String()
	for _, want := range []string{`"component":"retry"`, `"service":"checkout"`, `"attempt":2`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}
