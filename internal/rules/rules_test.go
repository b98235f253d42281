package rules

import "testing"

func TestPatchAppliesOnlySetFields(t *testing.T) {
	cfg := Defaults(TypeSpam)
	enabled := true
	threshold := 8
	patch := Patch{Enabled: &enabled, Threshold: &threshold}
	patch.ApplyTo(&cfg)

	if !cfg.Enabled {
		t.Fatalf("expected enabled after patch")
	}
	if cfg.Threshold != 8 {
		t.Fatalf("expected threshold 8, got %d", cfg.Threshold)
	}
	if cfg.WindowSeconds != Defaults(TypeSpam).WindowSeconds {
		t.Fatalf("window changed by unrelated patch: %d", cfg.WindowSeconds)
	}
	if cfg.Action != Defaults(TypeSpam).Action {
		t.Fatalf("action changed by unrelated patch: %s", cfg.Action)
	}
}

func TestPatchLogChannel(t *testing.T) {
	cfg := Defaults(TypeFlood)
	id := "c-log"
	Patch{LogChannelID: &id}.ApplyTo(&cfg)
	if cfg.LogChannelID != "c-log" {
		t.Fatalf("log channel not applied: %q", cfg.LogChannelID)
	}

	cleared := ""
	Patch{LogChannelID: &cleared}.ApplyTo(&cfg)
	if cfg.LogChannelID != "" {
		t.Fatalf("log channel not cleared: %q", cfg.LogChannelID)
	}
}

func TestDefaultsStartDisabled(t *testing.T) {
	for _, rule := range Types() {
		if Defaults(rule).Enabled {
			t.Fatalf("rule %s enabled by default", rule)
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		rule    Type
		mutate  func(*Config)
		wantErr bool
	}{
		{"spam defaults", TypeSpam, func(*Config) {}, false},
		{"raid defaults", TypeRaid, func(*Config) {}, false},
		{"zero threshold", TypeFlood, func(c *Config) { c.Threshold = 0 }, true},
		{"negative window", TypeSpam, func(c *Config) { c.WindowSeconds = -1 }, true},
		{"unknown action", TypeLink, func(c *Config) { c.Action = "obliterate" }, true},
		{"mute without duration", TypeFlood, func(c *Config) { c.Action = ActionMute; c.MuteMinutes = 0 }, true},
		{"mute over ceiling", TypeSpam, func(c *Config) { c.Action = ActionMute; c.MuteMinutes = 29 * 24 * 60 }, true},
		{"mute in range", TypeSpam, func(c *Config) { c.Action = ActionMute; c.MuteMinutes = 30 }, false},
	}

	for _, tc := range cases {
		cfg := Defaults(tc.rule)
		tc.mutate(&cfg)
		err := Validate(tc.rule, cfg)
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}
