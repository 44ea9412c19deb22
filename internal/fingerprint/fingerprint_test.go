package fingerprint

import (
	"strings"
	"testing"
)

func TestNormalize_StripsCasePunctuationAndMentions(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SPAM!!", "spam"},
		{"spam", "spam"},
		{"S p-A_m.", "spam"},
		{"hello <@123456> world", "helloworld"},
		{"hello <:emoji:9876> world", "helloworld"},
		{"<#42>", ""},
		{"", ""},
		{"...!!!", ""},
		{"Abc123", "abc123"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCompute_EquivalentTextsCollide(t *testing.T) {
	pairs := [][2]string{
		{"SPAM!!", "spam"},
		{"h e l l o", "HELLO"},
		{"no <@999> mentions", "NO MENTIONS!"},
	}
	for _, p := range pairs {
		if Compute(p[0], nil) != Compute(p[1], nil) {
			t.Fatalf("expected %q and %q to fingerprint identically", p[0], p[1])
		}
	}
}

func TestCompute_DistinctTextsDiffer(t *testing.T) {
	if Compute("spam", nil) == Compute("ham", nil) {
		t.Fatal("distinct normalized texts produced the same fingerprint")
	}
}

func TestCompute_ScopeSeparatesGuildsAndChannels(t *testing.T) {
	base := &Scope{Salt: "s3cret", GuildID: "g1", ChannelID: "c1"}
	otherGuild := &Scope{Salt: "s3cret", GuildID: "g2", ChannelID: "c1"}
	otherChannel := &Scope{Salt: "s3cret", GuildID: "g1", ChannelID: "c2"}
	otherSalt := &Scope{Salt: "different", GuildID: "g1", ChannelID: "c1"}

	got := Compute("spam", base)
	if got == Compute("spam", nil) {
		t.Fatal("scoped fingerprint matched global fingerprint")
	}
	if got == Compute("spam", otherGuild) {
		t.Fatal("scoped fingerprint collided across guilds")
	}
	if got == Compute("spam", otherChannel) {
		t.Fatal("scoped fingerprint collided across channels")
	}
	if got == Compute("spam", otherSalt) {
		t.Fatal("scoped fingerprint collided across salts")
	}
	// Same scope, same normalized text: stable.
	if got != Compute("S-P-A-M", base) {
		t.Fatal("scoped fingerprint not deterministic for equivalent text")
	}
}

func TestCompute_EmptyNormalizedTextIsDeterministic(t *testing.T) {
	a := Compute("!!!", nil)
	b := Compute("???", nil)
	if a != b {
		t.Fatal("empty normalized inputs should share one fingerprint")
	}
}

func TestFingerprint_StringIs32LowerHex(t *testing.T) {
	s := Compute("anything", nil).String()
	if len(s) != 32 {
		t.Fatalf("hex length = %d, want 32", len(s))
	}
	if s != strings.ToLower(s) {
		t.Fatalf("hex not lowercase: %q", s)
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("non-hex rune %q in %q", r, s)
		}
	}
}
