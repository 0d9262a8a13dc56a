package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/l1jgo/workbench/internal/config"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	body := `
[editor]
history_capacity = 20
coalesce_window = "250ms"

[logging]
format = "json"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := config.Default()
	want.Editor.HistoryCapacity = 20
	want.Editor.CoalesceWindow = 250 * time.Millisecond
	want.Logging.Format = "json"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := config.LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(config.Default(), cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad toml":       "[editor\n",
		"zero capacity":  "[editor]\nhistory_capacity = 0\n",
		"negative scale": "[editor]\ndefault_scale = -2.0\n",
		"zero tick":      "[simulation]\ntick_rate = \"0s\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.toml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := config.LoadOrDefault(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestSaveCreatesDirAndRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".workbench", "nested", "settings.toml")
	cfg := config.Default()
	cfg.Editor.DefaultScale = 0.25
	cfg.Input.Bindings = "keys.yaml"
	if err := config.Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv(config.EnvPath, "/etc/workbench.toml")
	if got := config.Resolve("cli.toml"); got != "cli.toml" {
		t.Errorf("flag ignored: %s", got)
	}
	if got := config.Resolve(""); got != "/etc/workbench.toml" {
		t.Errorf("env ignored: %s", got)
	}
	t.Setenv(config.EnvPath, "")
	if got := config.Resolve(""); !strings.HasSuffix(got, "settings.toml") {
		t.Errorf("default = %s", got)
	}
}
