package registry

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

const (
	hashPrefixUnits = 256
	fnvOffset32     = 0x811c9dc5
	fnvPrime32      = 0x01000193
)

var zeroWidth = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")

// StableHash derives a short id from message text: FNV-1a over the UTF-16
// code units of the first 256 units of the normalized text, in base 36.
// Hashing code units rather than bytes keeps ids equal to the ones the
// browser extension stores.
func StableHash(text string) string {
	s := zeroWidth.Replace(NormalizeText(text))
	units := utf16.Encode([]rune(s))
	if len(units) > hashPrefixUnits {
		units = units[:hashPrefixUnits]
	}
	h := uint32(fnvOffset32)
	for _, u := range units {
		h ^= uint32(u)
		h *= fnvPrime32
	}
	return strconv.FormatUint(uint64(h), 36)
}

// occurrences disambiguates identical hashes within one scan.
type occurrences map[string]int

func (o occurrences) next(base string) string {
	o[base]++
	return base + "-" + strconv.Itoa(o[base])
}

// reserve counts an id already assigned in an earlier scan, so a new
// duplicate of the same text gets the next free occurrence.
func (o occurrences) reserve(id string) {
	i := strings.LastIndexByte(id, '-')
	if i <= 0 {
		return
	}
	k, err := strconv.Atoi(id[i+1:])
	if err != nil || k <= 0 {
		return
	}
	base := id[:i]
	o[base] = max(o[base], k)
}
