package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return NewManager(path)
}

const validYAML = `
logging:
  level: debug
  console: true
storage:
  path: ./build.db
  busy_timeout: 2s
trigger:
  enabled: true
  timezone: UTC
schedulers:
  - name: l10n-nightly
    builders: [linux-l10n]
    platform: linux
    branch: mozilla-central
    nightly: "0 3 * * *"
  - name: l10n-osx
    builders: [osx-l10n]
    platform: macosx64
    locales:
      fr: []
      ja-JP-mac: [osx]
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.yaml", validYAML)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Trigger.Enabled {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.Schedulers) != 2 {
		t.Fatalf("schedulers = %d", len(cfg.Schedulers))
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return committed config")
	}

	list := cfg.Schedulers[1].LocaleList()
	if list == nil || list.Len() != 2 {
		t.Fatalf("locale list = %+v", list)
	}
	if !list.Restrictions("ja-JP-mac").Has("osx") {
		t.Fatal("explicit restriction lost")
	}
	if cfg.Schedulers[0].LocaleList() != nil {
		t.Fatal("expected nil list when no explicit locales configured")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.yaml", validYAML+"\nbogus_key: 1\n")
	if _, err := m.Parse(); err == nil || !strings.Contains(err.Error(), "bogus_key") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing storage path",
			yaml: "trigger: {enabled: true}\nschedulers: []\n",
			want: "storage.path",
		},
		{
			name: "bad platform",
			yaml: "storage: {path: x}\nschedulers:\n  - {name: a, builders: [b], platform: android, branch: m}\n",
			want: "platform",
		},
		{
			name: "no locale source",
			yaml: "storage: {path: x}\nschedulers:\n  - {name: a, builders: [b], platform: linux}\n",
			want: "branch is required",
		},
		{
			name: "duplicate name",
			yaml: "storage: {path: x}\nschedulers:\n  - {name: a, builders: [b], platform: linux, branch: m}\n  - {name: a, builders: [b], platform: linux, branch: m}\n",
			want: "duplicate",
		},
		{
			name: "no builders",
			yaml: "storage: {path: x}\nschedulers:\n  - {name: a, builders: [], platform: linux, branch: m}\n",
			want: "builders",
		},
		{
			name: "bad duration",
			yaml: "storage: {path: x, busy_timeout: nope}\nschedulers: []\n",
			want: "busy_timeout",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := writeConfig(t, "c.yaml", tt.yaml)
			_, err := m.Parse()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("fetch.timeout", "", 300*time.Second)
	if err != nil || d != 300*time.Second {
		t.Fatalf("default not applied: %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("fetch.timeout", "10s", 300*time.Second)
	if err != nil || d != 10*time.Second {
		t.Fatalf("explicit value lost: %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.json", `{
  "storage": {"path": "./build.db"},
  "trigger": {"enabled": false},
  "schedulers": [
    {"name": "a", "builders": ["b"], "platform": "win32", "branch": "m"}
  ]
}`)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Schedulers[0].Platform != "win32" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
