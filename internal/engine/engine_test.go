package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"aegisguard/internal/counter"
	"aegisguard/internal/rules"
)

type fakeSource struct {
	configs map[rules.Type]rules.Config
	err     error
}

func (f *fakeSource) GetRuleConfig(_ context.Context, _ string, rule rules.Type) (rules.Config, error) {
	if f.err != nil {
		return rules.Config{}, f.err
	}
	if cfg, ok := f.configs[rule]; ok {
		return cfg, nil
	}
	return rules.Defaults(rule), nil
}

func newEvaluator(source *fakeSource) (*Evaluator, *counter.Windows) {
	windows := counter.NewWindows()
	return New(source, windows, zap.NewNop()), windows
}

func enabledRaid() rules.Config {
	cfg := rules.Defaults(rules.TypeRaid)
	cfg.Enabled = true
	cfg.Threshold = 3
	cfg.WindowSeconds = 60
	return cfg
}

func TestEvaluateJoinDisabledAllows(t *testing.T) {
	eval, _ := newEvaluator(&fakeSource{configs: map[rules.Type]rules.Config{}})
	verdict := eval.EvaluateJoin(context.Background(), JoinEvent{GuildID: "g1", UserID: "u1"}, time.Now())
	if verdict.Triggered {
		t.Fatalf("disabled rule triggered: %+v", verdict)
	}
}

func TestEvaluateJoinConfigErrorAllows(t *testing.T) {
	eval, windows := newEvaluator(&fakeSource{err: errors.New("db gone")})
	now := time.Now()
	verdict := eval.EvaluateJoin(context.Background(), JoinEvent{GuildID: "g1", UserID: "u1"}, now)
	if verdict.Triggered {
		t.Fatalf("config read failure should allow, got %+v", verdict)
	}
	if count := windows.Count("join:g1", now, time.Minute); count != 0 {
		t.Fatalf("failed read should not record a join, count %d", count)
	}
}

func TestEvaluateJoinAccountAgeKick(t *testing.T) {
	eval, windows := newEvaluator(&fakeSource{configs: map[rules.Type]rules.Config{rules.TypeRaid: enabledRaid()}})
	now := time.Now()

	verdict := eval.EvaluateJoin(context.Background(), JoinEvent{
		GuildID:        "g1",
		UserID:         "u1",
		AccountCreated: now.Add(-2 * time.Hour),
	}, now)

	if !verdict.Triggered || verdict.Action != rules.ActionKick || verdict.Burst {
		t.Fatalf("expected account-age kick, got %+v", verdict)
	}
	if count := windows.Count("join:g1", now, time.Minute); count != 0 {
		t.Fatalf("account-age kick should not advance the join window, count %d", count)
	}
}

func TestEvaluateJoinBurstFiresAndResets(t *testing.T) {
	eval, windows := newEvaluator(&fakeSource{configs: map[rules.Type]rules.Config{rules.TypeRaid: enabledRaid()}})
	now := time.Now()
	aged := now.Add(-48 * time.Hour)

	for i := 0; i < 2; i++ {
		verdict := eval.EvaluateJoin(context.Background(), JoinEvent{GuildID: "g1", UserID: "u", AccountCreated: aged}, now.Add(time.Duration(i)*time.Second))
		if verdict.Triggered {
			t.Fatalf("join %d should not trigger yet: %+v", i, verdict)
		}
	}

	verdict := eval.EvaluateJoin(context.Background(), JoinEvent{GuildID: "g1", UserID: "u", AccountCreated: aged}, now.Add(2*time.Second))
	if !verdict.Triggered || !verdict.Burst {
		t.Fatalf("expected burst at threshold, got %+v", verdict)
	}
	if verdict.Action != "" {
		t.Fatalf("burst is detection only, the triggering member must not be actioned: %+v", verdict)
	}

	if count := windows.Count("join:g1", now.Add(3*time.Second), time.Minute); count != 0 {
		t.Fatalf("burst should reset the window, count %d", count)
	}
}

func TestEvaluateJoinSeparateGuilds(t *testing.T) {
	eval, _ := newEvaluator(&fakeSource{configs: map[rules.Type]rules.Config{rules.TypeRaid: enabledRaid()}})
	now := time.Now()
	aged := now.Add(-48 * time.Hour)

	eval.EvaluateJoin(context.Background(), JoinEvent{GuildID: "g1", AccountCreated: aged}, now)
	eval.EvaluateJoin(context.Background(), JoinEvent{GuildID: "g1", AccountCreated: aged}, now)
	verdict := eval.EvaluateJoin(context.Background(), JoinEvent{GuildID: "g2", AccountCreated: aged}, now)
	if verdict.Triggered {
		t.Fatalf("guild windows leaked: %+v", verdict)
	}
}

func TestEvaluateMessageSpamThreshold(t *testing.T) {
	spam := rules.Defaults(rules.TypeSpam)
	spam.Enabled = true
	spam.Threshold = 3
	eval, _ := newEvaluator(&fakeSource{configs: map[rules.Type]rules.Config{rules.TypeSpam: spam}})
	now := time.Now()
	event := MessageEvent{GuildID: "g1", ChannelID: "c1", UserID: "u1", Content: "hello"}

	for i := 0; i < 2; i++ {
		if verdicts := eval.EvaluateMessage(context.Background(), event, now.Add(time.Duration(i)*time.Second)); len(verdicts) != 0 {
			t.Fatalf("message %d triggered early: %+v", i, verdicts)
		}
	}

	verdicts := eval.EvaluateMessage(context.Background(), event, now.Add(2*time.Second))
	if len(verdicts) != 1 || verdicts[0].Rule != rules.TypeSpam || verdicts[0].Action != rules.ActionDelete {
		t.Fatalf("expected spam delete verdict, got %+v", verdicts)
	}
}

func TestEvaluateMessageFloodBypassSkipsCounting(t *testing.T) {
	flood := rules.Defaults(rules.TypeFlood)
	flood.Enabled = true
	flood.Threshold = 2
	flood.BypassChannels = []string{"c-exempt"}
	eval, windows := newEvaluator(&fakeSource{configs: map[rules.Type]rules.Config{rules.TypeFlood: flood}})
	now := time.Now()

	exempt := MessageEvent{GuildID: "g1", ChannelID: "c-exempt", UserID: "u1", Content: "x"}
	for i := 0; i < 5; i++ {
		if verdicts := eval.EvaluateMessage(context.Background(), exempt, now); len(verdicts) != 0 {
			t.Fatalf("bypassed channel triggered: %+v", verdicts)
		}
	}
	if count := windows.Count("anti_flood:g1:u1", now, time.Minute); count != 0 {
		t.Fatalf("bypassed messages were counted: %d", count)
	}
}

func TestEvaluateMessageFloodRoleBypass(t *testing.T) {
	flood := rules.Defaults(rules.TypeFlood)
	flood.Enabled = true
	flood.Threshold = 1
	flood.BypassRoles = []string{"r-mod"}
	eval, _ := newEvaluator(&fakeSource{configs: map[rules.Type]rules.Config{rules.TypeFlood: flood}})

	event := MessageEvent{GuildID: "g1", ChannelID: "c1", UserID: "u1", RoleIDs: []string{"r-member", "r-mod"}, Content: "x"}
	if verdicts := eval.EvaluateMessage(context.Background(), event, time.Now()); len(verdicts) != 0 {
		t.Fatalf("role bypass ignored: %+v", verdicts)
	}
}

func TestEvaluateMessageLinkAndInviteIndependent(t *testing.T) {
	link := rules.Defaults(rules.TypeLink)
	link.Enabled = true
	invite := rules.Defaults(rules.TypeInvite)
	invite.Enabled = true
	invite.Action = rules.ActionWarn
	eval, _ := newEvaluator(&fakeSource{configs: map[rules.Type]rules.Config{
		rules.TypeLink:   link,
		rules.TypeInvite: invite,
	}})

	event := MessageEvent{GuildID: "g1", ChannelID: "c1", UserID: "u1", Content: "join https://discord.gg/abc now"}
	verdicts := eval.EvaluateMessage(context.Background(), event, time.Now())
	if len(verdicts) != 2 {
		t.Fatalf("expected independent link and invite verdicts, got %+v", verdicts)
	}

	byRule := make(map[rules.Type]Verdict)
	for _, v := range verdicts {
		byRule[v.Rule] = v
	}
	if byRule[rules.TypeLink].Action != rules.ActionDelete {
		t.Fatalf("link verdict wrong: %+v", byRule[rules.TypeLink])
	}
	if byRule[rules.TypeInvite].Action != rules.ActionWarn {
		t.Fatalf("invite verdict wrong: %+v", byRule[rules.TypeInvite])
	}
}

func TestEvaluateMessageMuteCarriesDuration(t *testing.T) {
	spam := rules.Defaults(rules.TypeSpam)
	spam.Enabled = true
	spam.Threshold = 1
	spam.Action = rules.ActionMute
	spam.MuteMinutes = 15
	eval, _ := newEvaluator(&fakeSource{configs: map[rules.Type]rules.Config{rules.TypeSpam: spam}})

	verdicts := eval.EvaluateMessage(context.Background(), MessageEvent{GuildID: "g1", ChannelID: "c1", UserID: "u1", Content: "x"}, time.Now())
	if len(verdicts) != 1 || verdicts[0].MuteFor != 15*time.Minute {
		t.Fatalf("expected 15m mute, got %+v", verdicts)
	}
}

func TestVerdictsCarryConfiguredLogChannel(t *testing.T) {
	raid := enabledRaid()
	raid.LogChannelID = "c-log"
	link := rules.Defaults(rules.TypeLink)
	link.Enabled = true
	link.LogChannelID = "c-log"
	eval, _ := newEvaluator(&fakeSource{configs: map[rules.Type]rules.Config{
		rules.TypeRaid: raid,
		rules.TypeLink: link,
	}})
	now := time.Now()

	join := eval.EvaluateJoin(context.Background(), JoinEvent{GuildID: "g1", UserID: "u1", AccountCreated: now.Add(-time.Hour)}, now)
	if !join.Triggered || join.LogChannel != "c-log" {
		t.Fatalf("join verdict missing log channel: %+v", join)
	}

	verdicts := eval.EvaluateMessage(context.Background(), MessageEvent{GuildID: "g1", ChannelID: "c1", UserID: "u1", Content: "https://x.com"}, now)
	if len(verdicts) != 1 || verdicts[0].LogChannel != "c-log" {
		t.Fatalf("message verdict missing log channel: %+v", verdicts)
	}
}

func TestEvaluateMessageConfigErrorAllowsAll(t *testing.T) {
	eval, _ := newEvaluator(&fakeSource{err: errors.New("db gone")})
	verdicts := eval.EvaluateMessage(context.Background(), MessageEvent{GuildID: "g1", ChannelID: "c1", UserID: "u1", Content: "discord.gg/abc https://x.com"}, time.Now())
	if len(verdicts) != 0 {
		t.Fatalf("config failure should disable rules, got %+v", verdicts)
	}
}
