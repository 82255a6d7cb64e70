package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/decker502/seqanim/pkg/embedded"
	"github.com/decker502/seqanim/pkg/trail"
)

func TestDefaultEngineConfigValid(t *testing.T) {
	cfg := DefaultEngineConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	p, err := cfg.TrailSettings().Policy()
	if err != nil || p != trail.Fade(800) {
		t.Errorf("default trail policy: got %v (%v), want fade(800)", p, err)
	}
}

func TestParseEngineConfig(t *testing.T) {
	tests := []struct {
		name        string
		yamlContent string
		wantErr     bool
		errContains string
		validate    func(*testing.T, *EngineConfig)
	}{
		{
			name: "partial override keeps defaults",
			yamlContent: `
canvas:
  width: 800
trail:
  mode: persistent
props:
  trackedEnds:
    club: 1
`,
			validate: func(t *testing.T, cfg *EngineConfig) {
				if cfg.Canvas.Width != 800 || cfg.Canvas.Height != 640 {
					t.Errorf("canvas: got %dx%d, want 800x640", cfg.Canvas.Width, cfg.Canvas.Height)
				}
				if cfg.Trail.Capacity != 256 {
					t.Errorf("trail capacity: got %d, want default 256", cfg.Trail.Capacity)
				}
				if cfg.TrackedEnds("club") != 1 {
					t.Errorf("club ends: got %d, want 1", cfg.TrackedEnds("club"))
				}
				if cfg.TrackedEnds("staff") != 2 {
					t.Errorf("staff ends: got %d, want default 2", cfg.TrackedEnds("staff"))
				}
			},
		},
		{
			name:        "unknown easing",
			yamlContent: "easing: bounce\n",
			wantErr:     true,
			errContains: "unknown easing",
		},
		{
			name:        "fade without duration",
			yamlContent: "trail:\n  mode: fade\n  fadeDurationMs: 0\n",
			wantErr:     true,
			errContains: "invalid trail policy",
		},
		{
			name:        "too few steps",
			yamlContent: "prerender:\n  steps: 1\n",
			wantErr:     true,
			errContains: "steps must be >= 2",
		},
		{
			name:        "tracked ends out of range",
			yamlContent: "props:\n  trackedEnds:\n    staff: 3\n",
			wantErr:     true,
			errContains: "trackedEnds",
		},
		{
			name:        "max points below capacity",
			yamlContent: "trail:\n  capacity: 100\n  maxPoints: 10\n",
			wantErr:     true,
			errContains: "maxPoints",
		},
		{
			name:        "malformed yaml",
			yamlContent: "canvas: [",
			wantErr:     true,
			errContains: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseEngineConfig([]byte(tt.yamlContent))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q should contain %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadEngineConfigFromFile(t *testing.T) {
	embedded.Init(nil)
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte("easing: inOutSine\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadEngineConfig(path)
	if err != nil {
		t.Fatalf("LoadEngineConfig failed: %v", err)
	}
	if cfg.Easing != "inOutSine" {
		t.Errorf("easing: got %q", cfg.Easing)
	}
	if got := cfg.EasingFunc()(0.5); got < 0.49 || got > 0.51 {
		t.Errorf("inOutSine(0.5): got %v", got)
	}

	if _, err := LoadEngineConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestLoadEngineConfigEmbedded(t *testing.T) {
	embedded.Init(fstest.MapFS{
		"data/engine.yaml": {Data: []byte("prerender:\n  steps: 30\n")},
	})
	defer embedded.Init(nil)

	cfg, err := LoadEngineConfig(DefaultEnginePath)
	if err != nil {
		t.Fatalf("LoadEngineConfig failed: %v", err)
	}
	if cfg.Prerender.Steps != 30 {
		t.Errorf("steps: got %d, want 30", cfg.Prerender.Steps)
	}
	ps := cfg.PrerenderSettings()
	if ps.PropHalfLength != 0.35 || ps.TrailCapacity != 256 {
		t.Errorf("PrerenderSettings: got %+v", ps)
	}
}
