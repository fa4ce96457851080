package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreUsedWithNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultThreadLineLimit != 10 {
		t.Errorf("DefaultThreadLineLimit = %d, want 10", cfg.DefaultThreadLineLimit)
	}
	if cfg.RenderIntervalMs != 100 {
		t.Errorf("RenderIntervalMs = %d, want 100", cfg.RenderIntervalMs)
	}
}

func TestLoadOverridesFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "buildconsole.yaml")
	contents := "default_thread_line_limit: 4\nrender_interval_ms: 250\nlocale: en-GB\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultThreadLineLimit != 4 {
		t.Errorf("DefaultThreadLineLimit = %d, want 4", cfg.DefaultThreadLineLimit)
	}
	if cfg.RenderIntervalMs != 250 {
		t.Errorf("RenderIntervalMs = %d, want 250", cfg.RenderIntervalMs)
	}
	if cfg.RenderInterval() != 250*time.Millisecond {
		t.Errorf("RenderInterval() = %v, want 250ms", cfg.RenderInterval())
	}
	// Fields absent from the file keep their defaults.
	if cfg.ThreadLineLimitOnError != 2 {
		t.Errorf("ThreadLineLimitOnError = %d, want default 2", cfg.ThreadLineLimitOnError)
	}
}

func TestParseLocaleFallsBackOnGarbage(t *testing.T) {
	cfg := Config{Locale: "not-a-locale!!"}
	tag := cfg.ParseLocale()
	if tag.String() == "" {
		t.Errorf("ParseLocale returned zero tag")
	}
}

func TestParseTimeZoneFallsBackToLocal(t *testing.T) {
	cfg := Config{TimeZone: "Nowhere/Fake"}
	if got := cfg.ParseTimeZone(); got != time.Local {
		t.Errorf("ParseTimeZone = %v, want time.Local", got)
	}
}
