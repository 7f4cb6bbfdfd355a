package stock

import (
	"strings"
	"unicode"
)

// NormalizeName folds a medicine name into its matching key: lower case,
// punctuation removed, runs of whitespace collapsed. A dot between two digits
// is kept so that "0.5mg" and "05mg" stay different.
// "Tapentadol  50-mg." and "tapentadol 50 mg" share the key "tapentadol 50 mg".
func NormalizeName(name string) string {
	runes := []rune(strings.ToLower(name))

	var b strings.Builder
	b.Grow(len(name))

	pendingSpace := false
	for i, r := range runes {
		keep := unicode.IsLetter(r) || unicode.IsDigit(r)
		if r == '.' && i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			keep = true
		}
		if !keep {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeBatchNo trims and upper-cases a batch number. Batch codes are
// compared case-insensitively; blank stays blank and is its own identity.
func NormalizeBatchNo(batchNo string) string {
	return strings.ToUpper(strings.TrimSpace(batchNo))
}

// MatchPolicy decides which stock rows belong to a requested medicine name.
type MatchPolicy struct {
	// Fuzzy enables substring matching (in either direction) when no row
	// matches the normalized name exactly. Note that "Tramadol" then also
	// matches "Tramadol Paracetamol" when the former has no stock rows.
	Fuzzy bool
}

// Exact reports whether candidate names the same medicine as requested.
func (MatchPolicy) Exact(requestedKey, candidateKey string) bool {
	return requestedKey != "" && requestedKey == candidateKey
}

// Loose reports substring containment in either direction.
func (MatchPolicy) Loose(requestedKey, candidateKey string) bool {
	if requestedKey == "" || candidateKey == "" {
		return false
	}
	return strings.Contains(candidateKey, requestedKey) || strings.Contains(requestedKey, candidateKey)
}
