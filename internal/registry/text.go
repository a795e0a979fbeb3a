package registry

import (
	"regexp"
	"strings"
)

var (
	youSaidPrefix = regexp.MustCompile(`(?i)^\s*you\s*said\s*[:：]?\s*`)
	cjkSaidPrefix = regexp.MustCompile(`^\s*(你说|您说|你說|您說)\s*[:：]?\s*`)
)

// NormalizeText collapses whitespace runs to single spaces, trims, and
// removes the screen-reader prefix some sites put in front of user turns.
func NormalizeText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = youSaidPrefix.ReplaceAllString(s, "")
	s = cjkSaidPrefix.ReplaceAllString(s, "")
	return s
}
