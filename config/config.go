package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/amefumi/abodial/domain/colorfilter"
)

// Config holds runtime configuration for capture, matching and the watch
// loop. It is loaded from an INI file and may be overridden by flags.
type Config struct {
	Debug bool

	// Target window
	WindowProcess string
	// FixedLeft/FixedTop >= 0 pin the client area at that screen origin
	// instead of locating the process window.
	FixedLeft    int
	FixedTop     int
	WindowWidth  int
	WindowHeight int

	// Capture
	StaleAfter        time.Duration
	DiscoveryInterval time.Duration
	// CaptureBackend is "screen" (primary monitor) or "display" (all monitors).
	CaptureBackend string

	// Templates and element catalog
	TemplatePaths      []string
	TemplateExtensions []string
	ElementsFile       string

	// Watch loop
	Watch         []string
	WatchInterval time.Duration

	// Named HSV bands, keys lower-case.
	Colors map[string]colorfilter.Range
}

// DefaultColors is the stock palette for the target client.
func DefaultColors() map[string]colorfilter.Range {
	raw := map[string][6]int{
		"black":              {0, 0, 0, 180, 255, 15},
		"gold_numbers":       {0, 0, 65, 180, 255, 255},
		"item_highlight":     {90, 235, 130, 115, 255, 160},
		"white":              {0, 0, 230, 180, 20, 255},
		"gray":               {0, 0, 90, 180, 20, 130},
		"blue":               {114, 100, 165, 125, 132, 255},
		"green":              {56, 190, 190, 63, 255, 255},
		"yellow":             {27, 110, 190, 33, 145, 255},
		"gold":               {20, 75, 140, 26, 95, 230},
		"orange":             {20, 190, 190, 23, 255, 255},
		"red":                {-9, 110, 100, 12, 255, 255},
		"health_potion":      {170, 100, 76, 190, 255, 255},
		"mana_potion":        {105, 20, 76, 135, 255, 255},
		"rejuv_potion":       {140, 50, 40, 160, 255, 255},
		"skill_charges":      {70, 30, 25, 150, 163, 255},
		"health_globe_red":   {178, 110, 20, 183, 255, 255},
		"health_globe_green": {47, 90, 20, 54, 255, 255},
		"mana_globe":         {117, 120, 20, 121, 255, 255},
		"blue_slot":          {102, 194, 18, 138, 230, 54},
		"green_slot":         {33, 181, 18, 87, 258, 69},
		"red_slot":           {161, 204, 28, 197, 240, 64},
		"tab_text":           {0, 0, 125, 180, 255, 255},
	}
	out := make(map[string]colorfilter.Range, len(raw))
	for name, v := range raw {
		out[name] = colorfilter.Range{
			HueLow: v[0], SatLow: v[1], ValLow: v[2],
			HueHigh: v[3], SatHigh: v[4], ValHigh: v[5],
		}
	}
	return out
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:              false,
		WindowProcess:      "D2R.exe",
		FixedLeft:          -1,
		FixedTop:           -1,
		WindowWidth:        1280,
		WindowHeight:       720,
		StaleAfter:         40 * time.Millisecond,
		DiscoveryInterval:  time.Second,
		CaptureBackend:     "screen",
		TemplatePaths:      []string{"assets/templates"},
		TemplateExtensions: []string{".png"},
		ElementsFile:       "",
		WatchInterval:      250 * time.Millisecond,
		Colors:             DefaultColors(),
	}
}

// Validate clamps values to safe ranges. Colour bands that break the
// wraparound rules are dropped and reported.
func (c *Config) Validate() error {
	if c.WindowWidth <= 0 {
		c.WindowWidth = 1280
	}
	if c.WindowHeight <= 0 {
		c.WindowHeight = 720
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 40 * time.Millisecond
	}
	if c.DiscoveryInterval <= 0 {
		c.DiscoveryInterval = time.Second
	}
	if c.CaptureBackend == "" {
		c.CaptureBackend = "screen"
	}
	if c.WatchInterval <= 0 {
		c.WatchInterval = 250 * time.Millisecond
	}
	if len(c.TemplateExtensions) == 0 {
		c.TemplateExtensions = []string{".png"}
	}
	if c.FixedLeft < 0 || c.FixedTop < 0 {
		c.FixedLeft, c.FixedTop = -1, -1
	}
	if c.Colors == nil {
		c.Colors = DefaultColors()
	}
	var errs []error
	for name, rng := range c.Colors {
		if err := rng.Validate(); err != nil {
			delete(c.Colors, name)
			errs = append(errs, fmt.Errorf("color %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Pinned reports whether the window position is fixed in configuration.
func (c *Config) Pinned() bool {
	return c.FixedLeft >= 0 && c.FixedTop >= 0
}

// Load reads configuration from an INI file. A missing file yields
// DefaultConfig(). On a parse error the defaults are returned with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	f, err := ini.Load(path)
	if err != nil {
		return cfg, err
	}

	general := f.Section("general")
	cfg.Debug = general.Key("debug").MustBool(cfg.Debug)

	game := f.Section("game")
	cfg.WindowProcess = game.Key("window_process").MustString(cfg.WindowProcess)
	cfg.FixedLeft = game.Key("fixed_left").MustInt(cfg.FixedLeft)
	cfg.FixedTop = game.Key("fixed_top").MustInt(cfg.FixedTop)

	ui := f.Section("ui")
	cfg.WindowWidth = ui.Key("window_width").MustInt(cfg.WindowWidth)
	cfg.WindowHeight = ui.Key("window_height").MustInt(cfg.WindowHeight)

	capt := f.Section("capture")
	cfg.StaleAfter = time.Duration(capt.Key("stale_after_ms").MustInt(int(cfg.StaleAfter/time.Millisecond))) * time.Millisecond
	cfg.DiscoveryInterval = time.Duration(capt.Key("discovery_interval_ms").MustInt(int(cfg.DiscoveryInterval/time.Millisecond))) * time.Millisecond
	cfg.CaptureBackend = strings.ToLower(capt.Key("backend").MustString(cfg.CaptureBackend))

	tpl := f.Section("templates")
	if tpl.HasKey("paths") {
		cfg.TemplatePaths = trimmed(tpl.Key("paths").Strings(","))
	}
	if tpl.HasKey("extensions") {
		cfg.TemplateExtensions = trimmed(tpl.Key("extensions").Strings(","))
	}
	cfg.ElementsFile = tpl.Key("elements_file").MustString(cfg.ElementsFile)

	run := f.Section("run")
	if run.HasKey("watch") {
		cfg.Watch = trimmed(run.Key("watch").Strings(","))
	}
	cfg.WatchInterval = time.Duration(run.Key("interval_ms").MustInt(int(cfg.WatchInterval/time.Millisecond))) * time.Millisecond

	for _, key := range f.Section("colors").Keys() {
		vals, err := key.StrictInts(",")
		if err != nil {
			return cfg, fmt.Errorf("config: color %s: %w", key.Name(), err)
		}
		rng, err := colorfilter.FromSlice(vals)
		if err != nil {
			return cfg, fmt.Errorf("config: color %s: %w", key.Name(), err)
		}
		cfg.Colors[strings.ToLower(key.Name())] = rng
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration to path in INI format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f := ini.Empty()
	set := func(section, key, value string) error {
		_, err := f.Section(section).NewKey(key, value)
		return err
	}
	ms := func(d time.Duration) string { return strconv.FormatInt(d.Milliseconds(), 10) }
	entries := [][3]string{
		{"general", "debug", strconv.FormatBool(c.Debug)},
		{"game", "window_process", c.WindowProcess},
		{"game", "fixed_left", strconv.Itoa(c.FixedLeft)},
		{"game", "fixed_top", strconv.Itoa(c.FixedTop)},
		{"ui", "window_width", strconv.Itoa(c.WindowWidth)},
		{"ui", "window_height", strconv.Itoa(c.WindowHeight)},
		{"capture", "stale_after_ms", ms(c.StaleAfter)},
		{"capture", "discovery_interval_ms", ms(c.DiscoveryInterval)},
		{"capture", "backend", c.CaptureBackend},
		{"templates", "paths", strings.Join(c.TemplatePaths, ",")},
		{"templates", "extensions", strings.Join(c.TemplateExtensions, ",")},
		{"templates", "elements_file", c.ElementsFile},
		{"run", "watch", strings.Join(c.Watch, ",")},
		{"run", "interval_ms", ms(c.WatchInterval)},
	}
	for _, e := range entries {
		if err := set(e[0], e[1], e[2]); err != nil {
			return err
		}
	}
	for _, name := range slices.Sorted(maps.Keys(c.Colors)) {
		r := c.Colors[name]
		v := fmt.Sprintf("%d,%d,%d,%d,%d,%d", r.HueLow, r.SatLow, r.ValLow, r.HueHigh, r.SatHigh, r.ValHigh)
		if err := set("colors", name, v); err != nil {
			return err
		}
	}
	return f.SaveTo(path)
}

func trimmed(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
