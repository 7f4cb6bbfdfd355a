package stock

import (
	"strings"
	"time"
)

// Expiry is the expiry date as entered on a receiving form or batch card.
// It is kept as text so that an explicit "not applicable" marker and an
// unparseable value both survive a round trip to storage.
type Expiry string

// ExpiryNotApplicable marks stock that has no expiry (devices, consumables).
const ExpiryNotApplicable Expiry = "N/A"

// expiryLayouts are tried in order. Month-only layouts resolve to the last
// day of that month, which is how pack labels are read.
var expiryLayouts = []struct {
	layout    string
	monthOnly bool
}{
	{"2006-01-02", false},
	{"02/01/2006", false},
	{"02-01-2006", false},
	{"2006/01/02", false},
	{"2006-01", true},
	{"01/2006", true},
	{"01-2006", true},
	{"Jan 2006", true},
	{"Jan-2006", true},
}

// NormalizeExpiry trims the input and canonicalises the sentinel spellings.
func NormalizeExpiry(raw string) Expiry {
	s := strings.TrimSpace(raw)
	switch strings.ToUpper(strings.ReplaceAll(s, " ", "")) {
	case "N/A", "NA", "NOTAPPLICABLE":
		return ExpiryNotApplicable
	}
	return Expiry(s)
}

// IsBlank reports an absent value.
func (e Expiry) IsBlank() bool {
	return strings.TrimSpace(string(e)) == ""
}

// IsNotApplicable reports the explicit sentinel.
func (e Expiry) IsNotApplicable() bool {
	return NormalizeExpiry(string(e)) == ExpiryNotApplicable
}

// Date parses the expiry. ok is false for blank, sentinel and unparseable values.
func (e Expiry) Date() (time.Time, bool) {
	if e.IsBlank() || e.IsNotApplicable() {
		return time.Time{}, false
	}
	s := strings.TrimSpace(string(e))
	for _, l := range expiryLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		if l.monthOnly {
			t = t.AddDate(0, 1, -1)
		}
		return t, true
	}
	return time.Time{}, false
}

// IsValid reports whether the expiry is present, not the sentinel, and a real date.
func (e Expiry) IsValid() bool {
	_, ok := e.Date()
	return ok
}

// String returns the stored text.
func (e Expiry) String() string { return string(e) }

// PreferValid picks what to store when incoming data meets an existing value:
// a valid incoming date wins, otherwise a valid existing date is kept, and only
// when neither is valid the raw incoming value is used (unless it is blank).
func PreferValid(incoming, existing Expiry) Expiry {
	switch {
	case incoming.IsValid():
		return incoming
	case existing.IsValid():
		return existing
	case !incoming.IsBlank():
		return NormalizeExpiry(string(incoming))
	default:
		return existing
	}
}

// ExpiresBefore reports whether the batch has a valid expiry on or before t.
func (e Expiry) ExpiresBefore(t time.Time) bool {
	d, ok := e.Date()
	return ok && !d.After(t)
}
