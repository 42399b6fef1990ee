// Package discovery extracts candidate mint addresses from chat text and
// tracks the most recent valid address per chat.
package discovery

import (
	"regexp"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

var (
	// pumpPattern matches a full-message pump.fun style mint: base58
	// alphabet with the "pump" suffix.
	pumpPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}pump$`)

	// loosePattern picks long alphanumeric runs out of free-form text.
	loosePattern = regexp.MustCompile(`[A-Za-z0-9]{40,}`)
)

// Scraper finds Solana mint addresses in arbitrary message text.
type Scraper struct{}

// NewScraper creates a Scraper.
func NewScraper() *Scraper {
	return &Scraper{}
}

// Scan returns the first valid mint address found in text, or "" if none.
// A message that is exactly a pump-suffixed address wins outright;
// otherwise every long token in the text is tried in order. Loose
// candidates are held to a stricter standard (on-curve point) to keep
// random hex strings and URLs out of the book.
func (s *Scraper) Scan(text string) string {
	if pumpPattern.MatchString(text) && decodes32(text) {
		return text
	}
	for _, candidate := range loosePattern.FindAllString(text, -1) {
		if decodes32(candidate) && onCurve(candidate) {
			return candidate
		}
	}
	return ""
}

// decodes32 reports whether s is base58 for exactly 32 bytes.
func decodes32(s string) bool {
	raw, err := base58.Decode(s)
	return err == nil && len(raw) == 32
}

// onCurve reports whether s decodes to a valid ed25519 point. Mint
// accounts created from keypairs always are; most non-address lookalikes
// that survive the base58 decode are not.
func onCurve(s string) bool {
	raw, err := base58.Decode(s)
	if err != nil {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}
