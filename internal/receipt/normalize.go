package receipt

import (
	"fmt"

	"github.com/shopspring/decimal"

	"receipt-ocr-service/internal/recognition"
)

// Options configures the normalization pass. Both knobs are implementation
// constants with no principled derivation, so they stay configurable.
type Options struct {
	// Tolerance is the maximum difference, in currency units, between the
	// summed line items and the declared total that still counts as a
	// match. Covers rounding in GST-inclusive totals.
	Tolerance float64
	// ReviewConfidence is the aggregate confidence below which a record
	// is flagged for review.
	ReviewConfidence float64
}

// DefaultOptions returns the default normalization options.
func DefaultOptions() Options {
	return Options{
		Tolerance:        0.01,
		ReviewConfidence: 0.60,
	}
}

// Normalizer converts raw recognition output into normalized, validated
// Records. It is stateless and safe for concurrent use; each pass is a
// pure function over one RawResult.
type Normalizer struct {
	tolerance        decimal.Decimal
	reviewConfidence float64
}

// NewNormalizer creates a Normalizer with the given options.
func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{
		tolerance:        decimal.NewFromFloat(opts.Tolerance),
		reviewConfidence: opts.ReviewConfidence,
	}
}

// Normalize maps one raw recognition result into a Record. A low-quality
// or inconsistent result degrades to a flagged Record; Normalize never
// fails.
func (n *Normalizer) Normalize(raw *recognition.RawResult) *Record {
	fields := mapFields(raw)
	warnings := fields.Warnings

	items, itemWarnings := extractLineItems(raw.Items, n.tolerance)
	warnings = append(warnings, itemWarnings...)

	outcome := reconcileTotals(items, fields.TransactionAmount, n.tolerance)
	warnings = append(warnings, outcome.Warnings...)

	// The dedicated payment field is the strongest signal; the full
	// recognized text is the fallback.
	method := detectPaymentMethod(fields.PaymentText)
	if method == PaymentMethodUnknown {
		method = detectPaymentMethod(raw.Content)
	}

	status := classifyStatus(fields.TransactionAmount != nil, fields.Confidence, outcome.Matches, n.reviewConfidence)

	if fields.Confidence < n.reviewConfidence {
		warnings = append(warnings, fmt.Sprintf("low OCR confidence: %.2f", fields.Confidence))
	}

	record := &Record{
		MerchantName:         fields.MerchantName,
		TransactionDate:      fields.TransactionDate,
		ReceiptNumber:        fields.ReceiptNumber,
		GSTAmount:            fields.GSTAmount.InexactFloat64(),
		PaymentMethod:        method,
		Items:                items,
		OCRConfidence:        fields.Confidence,
		ReceiptStatus:        status,
		IsManuallyEntered:    false,
		ItemsTotalMatches:    outcome.Matches,
		ItemsTotalDifference: outcome.Difference.InexactFloat64(),
		ValidationWarnings:   warnings,
	}
	if fields.TransactionAmount != nil {
		amount := fields.TransactionAmount.Round(2).InexactFloat64()
		record.TransactionAmount = &amount
	}

	return record
}
