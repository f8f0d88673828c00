package approval

// Threshold is the derived approval gate for a pending request.
type Threshold struct {
	TotalMembers      int
	RequiredApprovals int
}

// ComputeThreshold derives the approval gate from the live membership count.
//
// Requiring ceil(N/3) keeps the gate proportional to group size without ever
// demanding unanimous consent for large groups, and never requires more than
// one approval for very small ones.
//
// liveMemberCount <= 0 means the directory could not produce a usable count;
// the stored fallback values take over, and if those are unusable too the
// result bottoms out at 1.
//
// This function is pure and must be re-run on every read of a pending
// request, not only at creation - membership can change while a vote is
// outstanding.
func ComputeThreshold(liveMemberCount, fallbackTotal, fallbackRequired int) Threshold {
	total := positiveOrFallback(liveMemberCount, fallbackTotal)
	if total < 1 {
		total = 1
	}

	required := positiveOrFallback(ceilThird(total), fallbackRequired)
	if required < 1 {
		required = 1
	}

	return Threshold{TotalMembers: total, RequiredApprovals: required}
}

// positiveOrFallback returns x if x > 0, else fb if fb > 0, else 1.
func positiveOrFallback(x, fb int) int {
	if x > 0 {
		return x
	}
	if fb > 0 {
		return fb
	}
	return 1
}

// ceilThird returns ceil(n/3) for n >= 0.
func ceilThird(n int) int {
	return (n + 2) / 3
}
