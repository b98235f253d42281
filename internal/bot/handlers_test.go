package bot

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func modalData(inputID, value string) discordgo.ModalSubmitInteractionData {
	return discordgo.ModalSubmitInteractionData{Components: []discordgo.MessageComponent{
		&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.TextInput{CustomID: inputID, Value: value},
		}},
	}}
}

func TestModalIntRejectsGarbage(t *testing.T) {
	if _, err := modalInt(modalData("threshold", "lots"), "threshold"); err == nil {
		t.Fatalf("non-numeric input must come back as an error, not be dropped")
	}
}

func TestModalIntEmptyMeansUnset(t *testing.T) {
	value, err := modalInt(modalData("threshold", ""), "threshold")
	if err != nil || value != nil {
		t.Fatalf("empty input should be nil without error, got %v %v", value, err)
	}
}

func TestModalIntParsesNumber(t *testing.T) {
	value, err := modalInt(modalData("window", " 15 "), "window")
	if err != nil || value == nil || *value != 15 {
		t.Fatalf("expected 15, got %v %v", value, err)
	}
}

func TestSplitIDList(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
		set  bool
	}{
		{"", nil, false},
		{"none", []string{}, true},
		{"123, 456", []string{"123", "456"}, true},
		{"<#123>,<@&456>", []string{"123", "456"}, true},
		{" 123 ", []string{"123"}, true},
	}
	for _, tc := range cases {
		got, set := splitIDList(tc.raw)
		if set != tc.set || len(got) != len(tc.want) {
			t.Fatalf("splitIDList(%q) = %v set=%t", tc.raw, got, set)
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Fatalf("splitIDList(%q)[%d] = %q, want %q", tc.raw, i, got[i], tc.want[i])
			}
		}
	}
}

func TestParseChannelRef(t *testing.T) {
	if id, set := parseChannelRef("<#123>"); !set || id != "123" {
		t.Fatalf("mention not parsed: %q %t", id, set)
	}
	if id, set := parseChannelRef("none"); !set || id != "" {
		t.Fatalf("none should clear: %q %t", id, set)
	}
	if _, set := parseChannelRef(""); set {
		t.Fatalf("empty input should mean unset")
	}
}
