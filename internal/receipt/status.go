package receipt

// classifyStatus maps aggregate confidence, the reconciliation outcome and
// required-field presence to a receipt status. The order matters: a
// missing required field dominates any confidence score, and a
// reconciliation mismatch forces review even at high confidence.
// Confidence alone never marks a receipt verified.
func classifyStatus(hasAmount bool, confidence float64, itemsMatch bool, reviewConfidence float64) Status {
	switch {
	case !hasAmount:
		return StatusFailed
	case confidence < reviewConfidence || !itemsMatch:
		return StatusNeedsReview
	default:
		return StatusVerified
	}
}
