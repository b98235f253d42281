package storage

import (
	"context"
	"testing"
	"time"

	"aegisguard/internal/rules"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestGetRuleConfigReturnsDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cfg, err := store.GetRuleConfig(ctx, "guild-1", rules.TypeSpam)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.Threshold != rules.Defaults(rules.TypeSpam).Threshold || cfg.Enabled {
		t.Fatalf("expected defaults for missing row, got %+v", cfg)
	}
}

func TestUpsertRuleConfigPartialMerge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	enabled := true
	threshold := 7
	if _, err := store.UpsertRuleConfig(ctx, "guild-1", rules.TypeSpam, rules.Patch{Enabled: &enabled, Threshold: &threshold}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	window := 12
	if _, err := store.UpsertRuleConfig(ctx, "guild-1", rules.TypeSpam, rules.Patch{WindowSeconds: &window}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	cfg, err := store.GetRuleConfig(ctx, "guild-1", rules.TypeSpam)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !cfg.Enabled || cfg.Threshold != 7 || cfg.WindowSeconds != 12 {
		t.Fatalf("partial merge lost fields: %+v", cfg)
	}
	if cfg.Action != rules.Defaults(rules.TypeSpam).Action {
		t.Fatalf("untouched action changed: %s", cfg.Action)
	}
}

func TestUpsertRuleConfigRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	zero := 0
	if _, err := store.UpsertRuleConfig(ctx, "guild-1", rules.TypeFlood, rules.Patch{Threshold: &zero}); err == nil {
		t.Fatalf("expected validation error")
	}

	cfg, err := store.GetRuleConfig(ctx, "guild-1", rules.TypeFlood)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.Threshold != rules.Defaults(rules.TypeFlood).Threshold {
		t.Fatalf("rejected upsert still wrote a row: %+v", cfg)
	}
}

func TestRuleConfigsScopedPerGuild(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	enabled := true
	if _, err := store.UpsertRuleConfig(ctx, "guild-1", rules.TypeInvite, rules.Patch{Enabled: &enabled}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	other, err := store.GetRuleConfig(ctx, "guild-2", rules.TypeInvite)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if other.Enabled {
		t.Fatalf("guild-2 picked up guild-1 config")
	}
}

func TestPanelRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.GetPanel(ctx, "guild-1", "raid"); err != nil || ok {
		t.Fatalf("expected no panel, ok=%t err=%v", ok, err)
	}

	record := PanelRecord{GuildID: "guild-1", PanelType: "raid", ChannelID: "chan-1", MessageID: "msg-1"}
	if err := store.SetPanel(ctx, record); err != nil {
		t.Fatalf("set: %v", err)
	}

	// A second set replaces the single record for the pair.
	record.MessageID = "msg-2"
	if err := store.SetPanel(ctx, record); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, ok, err := store.GetPanel(ctx, "guild-1", "raid")
	if err != nil || !ok {
		t.Fatalf("get: ok=%t err=%v", ok, err)
	}
	if got.MessageID != "msg-2" || got.ChannelID != "chan-1" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if err := store.ClearPanel(ctx, "guild-1", "raid"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := store.GetPanel(ctx, "guild-1", "raid"); ok {
		t.Fatalf("record survived clear")
	}
	if err := store.ClearPanel(ctx, "guild-1", "raid"); err != nil {
		t.Fatalf("clearing absent record should not fail: %v", err)
	}
}

func TestListPanels(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.SetPanel(ctx, PanelRecord{GuildID: "g1", PanelType: "raid", ChannelID: "c1", MessageID: "m1"})
	_ = store.SetPanel(ctx, PanelRecord{GuildID: "g1", PanelType: "lockdown", ChannelID: "c2", MessageID: "m2"})
	_ = store.SetPanel(ctx, PanelRecord{GuildID: "g2", PanelType: "raid", ChannelID: "c3", MessageID: "m3"})

	records, err := store.ListPanels(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
}

func TestModerationLogs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i, action := range []string{"kick", "ban", "kick"} {
		err := store.AddModerationLog(ctx, ModerationLog{
			GuildID:     "guild-1",
			Action:      action,
			TargetID:    "user-1",
			ModeratorID: "mod-1",
			Reason:      "test",
			CreatedAt:   now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	logs, err := store.ListModerationLogs(ctx, "guild-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(logs))
	}
	if logs[0].Action != "kick" {
		t.Fatalf("expected newest first, got %s", logs[0].Action)
	}

	counts, err := store.CountModerationLogs(ctx, "guild-1", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["kick"] != 2 || counts["ban"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestLockedChannels(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	lock := LockedChannel{
		ChannelID: "chan-1",
		GuildID:   "guild-1",
		Reason:    "raid",
		LockedBy:  "mod-1",
		PrevAllow: 1024,
	}
	if err := store.AddLockedChannel(ctx, lock); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, ok, err := store.GetLockedChannel(ctx, "chan-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%t err=%v", ok, err)
	}
	if got.PrevAllow != 1024 || got.Reason != "raid" {
		t.Fatalf("unexpected lock: %+v", got)
	}

	locks, err := store.ListLockedChannels(ctx, "guild-1")
	if err != nil || len(locks) != 1 {
		t.Fatalf("list: %v %d", err, len(locks))
	}

	if err := store.RemoveLockedChannel(ctx, "chan-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := store.GetLockedChannel(ctx, "chan-1"); ok {
		t.Fatalf("lock survived remove")
	}
}
