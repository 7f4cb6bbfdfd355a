package stock

import (
	"context"
	"sort"
)

// Selector picks the batch to dispense from when none was chosen by hand.
type Selector struct {
	repo   Repository
	policy MatchPolicy
}

func NewSelector(repo Repository, policy MatchPolicy) *Selector {
	return &Selector{repo: repo, policy: policy}
}

// Candidates returns in-stock batches of the medicine in dispensing order.
// Exact normalized-name matches are used when there are any; otherwise, if the
// policy allows it, batches whose name contains or is contained in the request.
func (s *Selector) Candidates(ctx context.Context, medicineName string) ([]*Batch, error) {
	key := NormalizeName(medicineName)
	if key == "" {
		return nil, nil
	}

	exact, err := s.repo.List(ctx, ListFilter{MedicineKey: key, InStockOnly: true})
	if err != nil {
		return nil, err
	}
	candidates := filterBatches(exact, func(b *Batch) bool {
		return b.CurrentStock > 0 && s.policy.Exact(key, b.MedicineKey)
	})

	if len(candidates) == 0 && s.policy.Fuzzy {
		all, err := s.repo.List(ctx, ListFilter{InStockOnly: true})
		if err != nil {
			return nil, err
		}
		candidates = filterBatches(all, func(b *Batch) bool {
			return b.CurrentStock > 0 && s.policy.Loose(key, b.MedicineKey)
		})
	}

	SortFIFO(candidates)
	return candidates, nil
}

// SelectBatch returns the first batch in dispensing order. found is false
// when no batch of the medicine has stock.
func (s *Selector) SelectBatch(ctx context.Context, medicineName string) (b *Batch, found bool, err error) {
	candidates, err := s.Candidates(ctx, medicineName)
	if err != nil {
		return nil, false, err
	}
	if len(candidates) == 0 {
		return nil, false, nil
	}
	return candidates[0], true, nil
}

// SortFIFO orders batches by ascending expiry. Batches without a valid expiry
// go after all dated ones. Ties fall back to creation time, then batch number.
func SortFIFO(batches []*Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		di, iok := batches[i].ExpiryDate.Date()
		dj, jok := batches[j].ExpiryDate.Date()
		switch {
		case iok && !jok:
			return true
		case !iok && jok:
			return false
		case iok && jok && !di.Equal(dj):
			return di.Before(dj)
		}
		if !batches[i].CreatedAt.Equal(batches[j].CreatedAt) {
			return batches[i].CreatedAt.Before(batches[j].CreatedAt)
		}
		return batches[i].BatchNo < batches[j].BatchNo
	})
}

func filterBatches(in []*Batch, keep func(*Batch) bool) []*Batch {
	out := make([]*Batch, 0, len(in))
	for _, b := range in {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}
