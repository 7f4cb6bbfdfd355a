package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"Tapentadol  50-mg.":        "tapentadol 50 mg",
		"tapentadol 50 mg":          "tapentadol 50 mg",
		"  BUPRENORPHINE 0.4MG ":    "buprenorphine 0.4mg",
		"Clonazepam (0.5 mg)":       "clonazepam 0.5 mg",
		"Olanzapine/Fluoxetine 5mg": "olanzapine fluoxetine 5mg",
		"...":                       "",
		"":                          "",
	}

	for in, want := range tests {
		assert.Equal(t, want, NormalizeName(in), "input %q", in)
	}
}

func TestNormalizeBatchNo(t *testing.T) {
	assert.Equal(t, "AB12", NormalizeBatchNo(" ab12 "))
	assert.Equal(t, "", NormalizeBatchNo("   "))
}

func TestMatchPolicy(t *testing.T) {
	p := MatchPolicy{Fuzzy: true}

	assert.True(t, p.Exact("tramadol 50mg", "tramadol 50mg"))
	assert.False(t, p.Exact("tramadol", "tramadol 50mg"))
	assert.False(t, p.Exact("", ""))

	assert.True(t, p.Loose("tramadol", "tramadol paracetamol"))
	assert.True(t, p.Loose("tramadol 50mg tablets", "tramadol 50mg"))
	assert.False(t, p.Loose("tramadol", "tapentadol"))
	assert.False(t, p.Loose("", "tapentadol"))
}

func TestSortFIFO(t *testing.T) {
	mk := func(batchNo string, expiry Expiry) *Batch {
		b := NewBatch("Diazepam 5mg", batchNo)
		b.ExpiryDate = expiry
		return b
	}
	na := mk("NA1", "N/A")
	late := mk("L1", "2028-05-01")
	early := mk("E1", "2027-01")
	blank := mk("B1", "")

	batches := []*Batch{na, late, blank, early}
	SortFIFO(batches)

	assert.Equal(t, early, batches[0])
	assert.Equal(t, late, batches[1])
	// undated ones keep creation order
	assert.ElementsMatch(t, []*Batch{na, blank}, batches[2:])
}
