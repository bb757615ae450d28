package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
[[adapters]]
name = "epic_game"
type = "web"
enabled = true
schedule = ["5 0 * * *"]
source = "epic"
offer_type = "game"
duration = "claimable"
platform = "pc"

[adapters.settings]
url = "https://store.epicgames.com/free-games"
item_selector = ".offer-card"
title_selector = ".title"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Scheduler.Tick != "5s" {
		t.Errorf("tick = %q, want default 5s", cfg.Scheduler.Tick)
	}
	if cfg.Scheduler.RunTimeout != "10m" {
		t.Errorf("run_timeout = %q, want default 10m", cfg.Scheduler.RunTimeout)
	}
	if cfg.Browser.IdleTimeout != "3m" {
		t.Errorf("idle_timeout = %q, want default 3m", cfg.Browser.IdleTimeout)
	}
	if cfg.Storage.Path != "./lootscraper.db" {
		t.Errorf("storage path = %q, want default", cfg.Storage.Path)
	}
	if Duration(cfg.Scheduler.Tick) != 5*time.Second {
		t.Errorf("Duration(%q) = %s", cfg.Scheduler.Tick, Duration(cfg.Scheduler.Tick))
	}
}

func TestLoadParsesAdapter(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Adapters) != 1 {
		t.Fatalf("adapters = %d, want 1", len(cfg.Adapters))
	}
	a := cfg.Adapters[0]
	if a.Source != model.SourceEpic || a.Platform != model.PlatformPC {
		t.Errorf("source/platform = %s/%s", a.Source, a.Platform)
	}
	if a.Settings.ItemSelector != ".offer-card" {
		t.Errorf("item selector = %q", a.Settings.ItemSelector)
	}
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no enabled adapter",
			content: strings.Replace(minimalConfig, "enabled = true", "enabled = false", 1),
			wantErr: "at least one adapter",
		},
		{
			name:    "bad adapter type",
			content: strings.Replace(minimalConfig, `type = "web"`, `type = "carrier_pigeon"`, 1),
			wantErr: "invalid type",
		},
		{
			name:    "missing schedule",
			content: strings.Replace(minimalConfig, `schedule = ["5 0 * * *"]`, "schedule = []", 1),
			wantErr: "schedule is required",
		},
		{
			name:    "duplicate adapter name",
			content: minimalConfig + minimalConfig,
			wantErr: "duplicate name",
		},
		{
			name: "bad tick duration",
			content: `[scheduler]
tick = "five seconds"
` + minimalConfig,
			wantErr: "scheduler.tick",
		},
		{
			name: "telegram enabled without token",
			content: minimalConfig + `
[telegram]
enabled = true
`,
			wantErr: "telegram.token",
		},
		{
			name: "upload enabled without endpoint",
			content: minimalConfig + `
[upload]
enabled = true
`,
			wantErr: "upload.endpoint",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
