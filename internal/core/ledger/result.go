package ledger

import (
	"slices"

	"coin-ledger/internal/core/domain"
)

// Changes lists the batch rows a mutation touched, for persistence.
type Changes struct {
	Inserted []domain.CoinBatch
	Updated  []domain.CoinBatch
	Deleted  []string
}

// Empty reports whether no batch was touched.
func (c Changes) Empty() bool {
	return len(c.Inserted) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// Result is the outcome of one or more ledger operations applied in sequence.
type Result struct {
	State   domain.BalanceState
	Records []domain.TransactionRecord
	Changes Changes
}

// Changed reports whether the result must be persisted.
func (r Result) Changed() bool {
	return len(r.Records) > 0 || !r.Changes.Empty()
}

// Record returns the last transaction record produced, or nil.
func (r Result) Record() *domain.TransactionRecord {
	if len(r.Records) == 0 {
		return nil
	}
	return &r.Records[len(r.Records)-1]
}

// Then folds a result computed from r.State into r, so the combination can be
// persisted as a single unit.
func (r Result) Then(next Result) Result {
	out := Result{
		State:   next.State,
		Records: append(append([]domain.TransactionRecord{}, r.Records...), next.Records...),
	}

	deleted := make(map[string]bool)
	for _, id := range r.Changes.Deleted {
		deleted[id] = true
	}
	for _, id := range next.Changes.Deleted {
		deleted[id] = true
	}

	inserted := make(map[string]int)
	for _, b := range append(append([]domain.CoinBatch{}, r.Changes.Inserted...), next.Changes.Inserted...) {
		inserted[b.ID] = len(out.Changes.Inserted)
		out.Changes.Inserted = append(out.Changes.Inserted, b)
	}

	updated := make(map[string]int)
	for _, b := range append(append([]domain.CoinBatch{}, r.Changes.Updated...), next.Changes.Updated...) {
		if i, ok := inserted[b.ID]; ok {
			// Not yet stored; insert the latest version instead.
			out.Changes.Inserted[i] = b
			continue
		}
		if i, ok := updated[b.ID]; ok {
			out.Changes.Updated[i] = b
			continue
		}
		updated[b.ID] = len(out.Changes.Updated)
		out.Changes.Updated = append(out.Changes.Updated, b)
	}

	out.Changes.Inserted = slicesDeleteIDs(out.Changes.Inserted, deleted)
	out.Changes.Updated = slicesDeleteIDs(out.Changes.Updated, deleted)
	for id := range deleted {
		if _, ok := inserted[id]; ok {
			continue
		}
		out.Changes.Deleted = append(out.Changes.Deleted, id)
	}
	slices.Sort(out.Changes.Deleted)

	return out
}

func slicesDeleteIDs(batches []domain.CoinBatch, ids map[string]bool) []domain.CoinBatch {
	out := batches[:0:0]
	for _, b := range batches {
		if !ids[b.ID] {
			out = append(out, b)
		}
	}
	return out
}
