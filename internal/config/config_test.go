package config_test

import (
	"testing"

	"github.com/MrWong99/tieredmem/internal/config"
)

func TestLogLevel_IsValid(t *testing.T) {
	cases := []struct {
		level config.LogLevel
		want  bool
	}{
		{config.LogDebug, true},
		{config.LogInfo, true},
		{config.LogWarn, true},
		{config.LogError, true},
		{config.LogLevel("trace"), false},
		{config.LogLevel(""), false},
	}
	for _, tc := range cases {
		if got := tc.level.IsValid(); got != tc.want {
			t.Errorf("LogLevel(%q).IsValid() = %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestBackend_IsValid(t *testing.T) {
	cases := []struct {
		backend config.Backend
		want    bool
	}{
		{config.BackendPostgres, true},
		{config.BackendEmbedded, true},
		{config.Backend("sqlite"), false},
	}
	for _, tc := range cases {
		if got := tc.backend.IsValid(); got != tc.want {
			t.Errorf("Backend(%q).IsValid() = %v, want %v", tc.backend, got, tc.want)
		}
	}
}
