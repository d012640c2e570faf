package receipt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"receipt-ocr-service/internal/recognition"
)

// Raw field names produced by the prebuilt receipt model.
const (
	fieldMerchantName    = "MerchantName"
	fieldTotal           = "Total"
	fieldTransactionDate = "TransactionDate"
	fieldTotalTax        = "TotalTax"
	fieldTax             = "Tax"
	fieldReceiptNumber   = "ReceiptNumber"
	fieldTransactionID   = "TransactionId"
	fieldInvoiceNumber   = "InvoiceNumber"
	fieldPaymentMethod   = "PaymentMethod"
)

var (
	// Receipt numbers like "#796850" in the raw text.
	reHashNumber = regexp.MustCompile(`#(\d{5,10})`)
	// "Receipt: 12345", "Txn #12345" and friends.
	reLabeledNumber = regexp.MustCompile(`(?i)(?:receipt|rcpt|trans|txn)[\s:#-]*(\d{5,10})`)

	dateFormats = []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"02-01-2006",
	}
)

// mappedFields holds the scalar portion of a Record plus the aggregate
// confidence derived while mapping.
type mappedFields struct {
	MerchantName      *string
	TransactionAmount *decimal.Decimal
	TransactionDate   *string
	ReceiptNumber     *string
	GSTAmount         decimal.Decimal
	PaymentText       string
	Confidence        float64
	Warnings          []string
}

// mapFields translates the raw field set into the normalized scalar
// fields, substituting documented defaults for anything absent. Pure
// transformation; the raw result is only read.
func mapFields(raw *recognition.RawResult) mappedFields {
	m := mappedFields{GSTAmount: decimal.Zero}
	var confidences []float64

	if f, ok := raw.Field(fieldMerchantName); ok {
		if s, ok := textValue(f.Value); ok {
			m.MerchantName = &s
		}
		confidences = appendConfidence(confidences, f)
	}

	if f, ok := raw.Field(fieldTotal); ok {
		if d, ok := numericValue(f.Value); ok {
			m.TransactionAmount = &d
		} else {
			m.Warnings = append(m.Warnings, unparseableWarning(fieldTotal))
		}
		confidences = appendConfidence(confidences, f)
	}

	if f, ok := raw.Field(fieldTransactionDate); ok {
		if s, ok := textValue(f.Value); ok {
			if normalized, ok := normalizeDate(s); ok {
				m.TransactionDate = &normalized
			}
		}
		confidences = appendConfidence(confidences, f)
	}

	// GST comes from TotalTax when present, Tax otherwise.
	for _, name := range []string{fieldTotalTax, fieldTax} {
		f, ok := raw.Field(name)
		if !ok {
			continue
		}
		if d, ok := numericValue(f.Value); ok {
			m.GSTAmount = d.Round(2)
		} else {
			m.Warnings = append(m.Warnings, unparseableWarning(name))
		}
		confidences = appendConfidence(confidences, f)
		break
	}

	m.ReceiptNumber = extractReceiptNumber(raw, &confidences)
	if m.ReceiptNumber == nil {
		m.Warnings = append(m.Warnings, "receipt number not found")
	}

	if f, ok := raw.Field(fieldPaymentMethod); ok {
		if s, ok := textValue(f.Value); ok {
			m.PaymentText = s
		}
		confidences = appendConfidence(confidences, f)
	}

	// Aggregate confidence is the mean of the per-field scores the
	// provider actually reported. No scores at all means untrusted, so
	// the aggregate stays 0.0 rather than defaulting high.
	if len(confidences) > 0 {
		var sum float64
		for _, c := range confidences {
			sum += c
		}
		m.Confidence = sum / float64(len(confidences))
	}

	return m
}

// extractReceiptNumber tries the dedicated fields first, then falls back
// to number-looking patterns in the raw text.
func extractReceiptNumber(raw *recognition.RawResult, confidences *[]float64) *string {
	for _, name := range []string{fieldReceiptNumber, fieldTransactionID, fieldInvoiceNumber} {
		f, ok := raw.Field(name)
		if !ok {
			continue
		}
		if s, ok := textValue(f.Value); ok {
			*confidences = appendConfidence(*confidences, f)
			return &s
		}
	}

	if raw.Content != "" {
		if match := reHashNumber.FindStringSubmatch(raw.Content); match != nil {
			return &match[1]
		}
		if match := reLabeledNumber.FindStringSubmatch(raw.Content); match != nil {
			return &match[1]
		}
	}

	return nil
}

func appendConfidence(confidences []float64, f recognition.RawField) []float64 {
	if f.Confidence == nil {
		return confidences
	}
	return append(confidences, *f.Confidence)
}

func unparseableWarning(field string) string {
	return fmt.Sprintf("unparseable numeric field %q; treating as absent", field)
}

// normalizeDate reduces a recognized date to YYYY-MM-DD; unknown formats
// are treated as absent.
func normalizeDate(s string) (string, bool) {
	for _, format := range dateFormats {
		if d, err := time.Parse(format, s); err == nil {
			return d.Format("2006-01-02"), true
		}
	}
	return "", false
}

// textValue coerces a raw field value to a non-empty string.
func textValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case json.Number:
		return val.String(), true
	default:
		return "", false
	}
}

// numericValue coerces a raw field value to a decimal. Strings are
// accepted after currency markers and grouping commas are stripped, since
// recognizers regularly return amounts as text.
func numericValue(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		return d, err == nil
	case string:
		s := strings.NewReplacer("$", "", "£", "", "€", "", ",", "").Replace(val)
		s = strings.TrimSpace(s)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}
