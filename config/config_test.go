package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/amefumi/abodial/domain/colorfilter"
)

func TestLoad_MissingFileDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.ini"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WindowProcess != "D2R.exe" || cfg.StaleAfter != 40*time.Millisecond || cfg.WindowWidth != 1280 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.Colors) != 22 {
		t.Fatalf("expected full default palette, got %d", len(cfg.Colors))
	}
	if cfg.Pinned() {
		t.Fatalf("defaults should not pin the window")
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.ini")
	doc := `[general]
debug = true

[game]
window_process = Game.exe
fixed_left = 10
fixed_top = 20

[capture]
stale_after_ms = 25
discovery_interval_ms = 500
backend = Display

[templates]
paths = a, b/c
elements_file = custom.yaml

[run]
watch = InGame, PlayBtn
interval_ms = 100

[colors]
Purple = 130, 50, 50, 160, 255, 255
red = -10, 100, 100, 10, 255, 255
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Debug || cfg.WindowProcess != "Game.exe" || !cfg.Pinned() || cfg.FixedTop != 20 {
		t.Fatalf("unexpected game settings %+v", cfg)
	}
	if cfg.StaleAfter != 25*time.Millisecond || cfg.DiscoveryInterval != 500*time.Millisecond {
		t.Fatalf("unexpected capture settings %v %v", cfg.StaleAfter, cfg.DiscoveryInterval)
	}
	if cfg.CaptureBackend != "display" {
		t.Fatalf("backend not loaded: %q", cfg.CaptureBackend)
	}
	if !slices.Equal(cfg.TemplatePaths, []string{"a", "b/c"}) || cfg.ElementsFile != "custom.yaml" {
		t.Fatalf("unexpected template settings %v %q", cfg.TemplatePaths, cfg.ElementsFile)
	}
	if !slices.Equal(cfg.Watch, []string{"InGame", "PlayBtn"}) || cfg.WatchInterval != 100*time.Millisecond {
		t.Fatalf("unexpected watch settings %v %v", cfg.Watch, cfg.WatchInterval)
	}
	if got := cfg.Colors["purple"]; got.HueLow != 130 || got.HueHigh != 160 {
		t.Fatalf("custom color not loaded: %+v", got)
	}
	if got := cfg.Colors["red"]; got.HueLow != -10 {
		t.Fatalf("default color not overridden: %+v", got)
	}
	if _, ok := cfg.Colors["gold"]; !ok {
		t.Fatalf("defaults dropped")
	}
}

func TestLoad_BadColor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.ini")
	if err := os.WriteFile(path, []byte("[colors]\nbad = -5, 0, 0, 190, 255, 255\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for double-wrapping range")
	}
}

func TestValidate_Clamps(t *testing.T) {
	c := &Config{FixedLeft: 5, FixedTop: -3, Colors: map[string]colorfilter.Range{
		"bad": {HueLow: -1, HueHigh: 181},
	}}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for invalid color")
	}
	if c.WindowWidth != 1280 || c.StaleAfter != 40*time.Millisecond || c.DiscoveryInterval != time.Second {
		t.Fatalf("not clamped: %+v", c)
	}
	if c.Pinned() {
		t.Fatalf("half-pinned window should be unpinned")
	}
	if _, ok := c.Colors["bad"]; ok {
		t.Fatalf("invalid color kept")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ini")
	c := DefaultConfig()
	c.Watch = []string{"InGame"}
	c.FixedLeft, c.FixedTop = 0, 0
	if err := c.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.Pinned() || !slices.Equal(got.Watch, c.Watch) || got.Colors["red"] != c.Colors["red"] {
		t.Fatalf("round trip mismatch %+v", got)
	}
}
