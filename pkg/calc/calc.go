// Package calc provides small arithmetic helpers for progress reporting.
package calc

import "math"

// Progress calculates the percentage for a given pair of numbers.
func Progress(done, total int) int {
	if total > 0 {
		return int(math.Round(float64(done) / float64(total) * 100))
	}

	return 0
}

// Remaining returns how many items are still outstanding, never negative.
func Remaining(total, completed, failed int) int {
	return max(total-completed-failed, 0)
}
