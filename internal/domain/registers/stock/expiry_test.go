package stock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpiry_Date(t *testing.T) {
	tests := []struct {
		raw   string
		want  time.Time
		valid bool
	}{
		{"2027-03-15", time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"15/03/2027", time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{" 2027-02 ", time.Date(2027, 2, 28, 0, 0, 0, 0, time.UTC), true},
		{"02/2028", time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC), true},
		{"Dec 2026", time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"N/A", time.Time{}, false},
		{"n/a", time.Time{}, false},
		{"soon", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Expiry(tt.raw).Date()
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestNormalizeExpiry_Sentinel(t *testing.T) {
	assert.Equal(t, ExpiryNotApplicable, NormalizeExpiry(" na "))
	assert.Equal(t, ExpiryNotApplicable, NormalizeExpiry("Not Applicable"))
	assert.Equal(t, Expiry("2027-01-01"), NormalizeExpiry(" 2027-01-01 "))
	assert.True(t, NormalizeExpiry("N/A").IsNotApplicable())
	assert.False(t, NormalizeExpiry("N/A").IsBlank())
}

func TestPreferValid(t *testing.T) {
	tests := []struct {
		name     string
		incoming Expiry
		existing Expiry
		want     Expiry
	}{
		{"valid incoming wins", "2028-01-31", "2027-01-31", "2028-01-31"},
		{"invalid incoming keeps valid existing", "N/A", "2027-01-31", "2027-01-31"},
		{"blank incoming keeps valid existing", "", "2027-01-31", "2027-01-31"},
		{"garbage incoming keeps valid existing", "??", "2027-01-31", "2027-01-31"},
		{"neither valid takes incoming", "n/a", "", ExpiryNotApplicable},
		{"neither valid and blank incoming keeps existing", "", "N/A", "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PreferValid(tt.incoming, tt.existing))
		})
	}
}

func TestExpiry_ExpiresBefore(t *testing.T) {
	horizon := time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC)

	assert.True(t, Expiry("2026-11-30").ExpiresBefore(horizon))
	assert.True(t, Expiry("2026-10").ExpiresBefore(horizon))
	assert.False(t, Expiry("2026-12-01").ExpiresBefore(horizon))
	assert.False(t, Expiry("N/A").ExpiresBefore(horizon))
	assert.False(t, Expiry("").ExpiresBefore(horizon))
}
