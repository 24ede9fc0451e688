// Package calc holds the pure ledger math: even splits in minor currency
// units, the replay-based per-participant obligation summary, and per-category
// budget aggregation. Nothing in here touches storage or the clock.
package calc

// SplitEven divides totalCents into n shares that sum exactly to totalCents.
// Each share gets the floor of the division; the remainder is handed out one
// cent at a time in list order, so no two shares differ by more than one cent.
func SplitEven(totalCents int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	base := totalCents / int64(n)
	remainder := totalCents - base*int64(n)

	shares := make([]int64, n)
	for i := range shares {
		shares[i] = base
		if int64(i) < remainder {
			shares[i]++
		}
	}
	return shares
}
