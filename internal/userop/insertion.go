package userop

// InsertionIndex returns the deterministic position the bundler
// transaction should be inserted at within the block: floor(expectedFinal/2),
// ties resolving to the lower index (spec.md §4.5). priorCount — the
// number of regular transactions the bundler has already observed at
// flush time — is carried for callers that want to log or sanity-check
// against it; the builder is the sole owner of the actual final count and
// may adjust the position TIPS proposes here.
func InsertionIndex(priorCount, expectedFinal int) int {
	return expectedFinal / 2
}
