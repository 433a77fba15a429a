package inventory

import (
	"fmt"
	"sort"
)

// planReservation spreads qty over recs, most available first, and returns the
// records as they must look afterwards. It never mutates recs.
func planReservation(recs []Record, qty int) ([]Record, []Allocation, error) {
	if qty <= 0 {
		return nil, nil, nil
	}
	ordered := make([]Record, len(recs))
	copy(ordered, recs)
	sort.SliceStable(ordered, func(i, j int) bool {
		ai, aj := ordered[i].Available(), ordered[j].Available()
		if ai != aj {
			return ai > aj
		}
		return ordered[i].WarehouseCode < ordered[j].WarehouseCode
	})

	remaining := qty
	var (
		updated []Record
		allocs  []Allocation
	)
	for _, rec := range ordered {
		if remaining == 0 {
			break
		}
		take := min(remaining, rec.Available())
		if take <= 0 {
			continue
		}
		rec.Reserved += take
		updated = append(updated, rec)
		allocs = append(allocs, Allocation{WarehouseCode: rec.WarehouseCode, Qty: take})
		remaining -= take
	}
	if remaining > 0 {
		return nil, nil, fmt.Errorf("%w: %d of %d unplaced", ErrAllocationFailure, remaining, qty)
	}
	return updated, allocs, nil
}

// planRelease returns reserved stock from recs, preferred warehouse first and
// then by reserved quantity descending. Requests beyond what is reserved are capped.
func planRelease(recs []Record, qty int, preferred string) ([]Record, []Allocation) {
	if qty <= 0 {
		return nil, nil
	}
	ordered := make([]Record, 0, len(recs))
	var first *Record
	for i := range recs {
		if preferred != "" && recs[i].WarehouseCode == preferred {
			rec := recs[i]
			first = &rec
			continue
		}
		ordered = append(ordered, recs[i])
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Reserved != ordered[j].Reserved {
			return ordered[i].Reserved > ordered[j].Reserved
		}
		return ordered[i].WarehouseCode < ordered[j].WarehouseCode
	})
	if first != nil {
		ordered = append([]Record{*first}, ordered...)
	}

	remaining := qty
	var (
		updated []Record
		allocs  []Allocation
	)
	for _, rec := range ordered {
		if remaining == 0 {
			break
		}
		give := min(remaining, rec.Reserved)
		if give <= 0 {
			continue
		}
		rec.Reserved -= give
		updated = append(updated, rec)
		allocs = append(allocs, Allocation{WarehouseCode: rec.WarehouseCode, Qty: give})
		remaining -= give
	}
	return updated, allocs
}

func sumAllocations(allocs []Allocation) int {
	total := 0
	for _, a := range allocs {
		total += a.Qty
	}
	return total
}
