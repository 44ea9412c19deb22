// Package fingerprint normalizes message text and hashes it into a 128-bit
// digest used for duplicate detection. Two messages whose text differs only
// in case, punctuation, whitespace, or angle-bracketed mention/emoji syntax
// produce the same fingerprint under the same scope.
//
// This is a dedup index, not a security boundary: the hash is a fast
// non-cryptographic murmur3 and needs no second-preimage resistance. The
// salt, however, is process-wide secret state loaded once at startup and
// must never be logged or exposed.
package fingerprint

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/twmb/murmur3"
)

// strippedRE removes platform mention/emoji spans (<...>) and every
// character that is not ASCII alphanumeric.
var strippedRE = regexp.MustCompile(`<(.*?)>|[^a-zA-Z0-9]`)

// Scope salts a fingerprint with guild/channel identity so that identical
// text in different private guilds or channels does not collide, and a
// leaked global-mode fingerprint cannot be used to guess private-mode
// content without the salt.
type Scope struct {
	Salt      string
	GuildID   string
	ChannelID string
}

// Fingerprint is a 128-bit content digest.
type Fingerprint struct {
	Hi uint64
	Lo uint64
}

// String renders the fingerprint as 32 lowercase hex characters, the form
// stored in the registry.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x%016x", f.Hi, f.Lo)
}

// Normalize lowercases text, removes angle-bracket-delimited spans, and
// strips all remaining non-alphanumeric characters. Empty output is valid:
// repeated empty/near-empty spam is a real abuse pattern and still
// fingerprints deterministically.
func Normalize(text string) string {
	return strippedRE.ReplaceAllString(strings.ToLower(text), "")
}

// Compute fingerprints text. A nil scope means global mode: the normalized
// text is hashed alone. With a scope, the hash input is
// salt || normalized_text || guild_id || channel_id.
func Compute(text string, scope *Scope) Fingerprint {
	norm := Normalize(text)
	var input string
	if scope == nil {
		input = norm
	} else {
		input = scope.Salt + norm + scope.GuildID + scope.ChannelID
	}
	hi, lo := murmur3.Sum128([]byte(input))
	return Fingerprint{Hi: hi, Lo: lo}
}
