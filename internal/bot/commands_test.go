package bot

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestCommandDefinitionNamesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, cmd := range commandDefinitions() {
		if cmd.Name == "" || cmd.Description == "" {
			t.Fatalf("command %q missing name or description", cmd.Name)
		}
		if seen[cmd.Name] {
			t.Fatalf("duplicate command name %q", cmd.Name)
		}
		seen[cmd.Name] = true
	}
}

// Discord rejects definitions where a required option follows an optional one.
func TestCommandOptionsOrderRequiredFirst(t *testing.T) {
	for _, cmd := range commandDefinitions() {
		optionalSeen := false
		for _, opt := range cmd.Options {
			if opt.Required && optionalSeen {
				t.Fatalf("command %q: required option %q after an optional one", cmd.Name, opt.Name)
			}
			if !opt.Required {
				optionalSeen = true
			}
		}
	}
}

func TestModerationCommandsCarryPermissionGates(t *testing.T) {
	for _, cmd := range commandDefinitions() {
		if cmd.DefaultMemberPermissions == nil {
			t.Fatalf("command %q has no default permission gate", cmd.Name)
		}
	}
}

func TestOptionHelpers(t *testing.T) {
	options := optionMap([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "reason", Type: discordgo.ApplicationCommandOptionString, Value: "spamming"},
	})
	if got := optionString(options, "reason"); got != "spamming" {
		t.Fatalf("optionString = %q", got)
	}
	if got := optionString(options, "missing"); got != "" {
		t.Fatalf("optionString on absent option = %q", got)
	}
}

func TestMentionList(t *testing.T) {
	if got := mentionList([]string{"1", "2"}, "<#%s>"); got != "<#1> <#2>" {
		t.Fatalf("mentionList = %q", got)
	}
}
