package receipt

import "time"

// PaymentMethod is the fixed tag set a payment method is classified into.
type PaymentMethod string

const (
	PaymentMethodEftpos  PaymentMethod = "eftpos"
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodUnknown PaymentMethod = "unknown"
)

// String returns the string representation of PaymentMethod.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid checks if the payment method is one of the known tags.
func (p PaymentMethod) IsValid() bool {
	switch p {
	case PaymentMethodEftpos, PaymentMethodCard, PaymentMethodCash, PaymentMethodUnknown:
		return true
	}
	return false
}

// Status is the discrete trust classification of a normalized record.
type Status string

const (
	// StatusFailed means a required field (the transaction amount) is
	// missing; the record cannot be booked without manual intervention.
	StatusFailed Status = "failed"
	// StatusNeedsReview means the record was extracted but confidence is
	// low or the line items do not reconcile against the total.
	StatusNeedsReview Status = "needs_review"
	// StatusVerified means all required fields are present, confidence is
	// acceptable and the line items reconcile.
	StatusVerified Status = "verified"
)

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is one of the known classifications.
func (s Status) IsValid() bool {
	switch s {
	case StatusFailed, StatusNeedsReview, StatusVerified:
		return true
	}
	return false
}

// LineItem is one normalized purchased item. LineNumber is 1-based and
// sequential in receipt order.
type LineItem struct {
	LineNumber  int     `json:"line_number"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineAmount  float64 `json:"line_amount"`
	GSTAmount   float64 `json:"gst_amount"`
}

// Record is the normalized, validated receipt produced by one
// normalization pass. It is created once per pass and never mutated by
// later stages.
type Record struct {
	MerchantName      *string       `json:"merchant_name"`
	TransactionAmount *float64      `json:"transaction_amount"`
	TransactionDate   *string       `json:"transaction_date"`
	ReceiptNumber     *string       `json:"receipt_number"`
	GSTAmount         float64       `json:"gst_amount"`
	PaymentMethod     PaymentMethod `json:"payment_method"`
	Items             []LineItem    `json:"items"`
	OCRConfidence     float64       `json:"ocr_confidence"`
	ReceiptStatus     Status        `json:"receipt_status"`
	IsManuallyEntered bool          `json:"is_manually_entered"`

	ItemsTotalMatches    bool    `json:"items_total_matches"`
	ItemsTotalDifference float64 `json:"items_total_difference"`

	// ValidationWarnings lists human-readable issues found while
	// normalizing; null when the pass was clean.
	ValidationWarnings []string `json:"validation_warnings"`
}

// Extraction wraps a normalized Record together with the stored source
// document metadata.
type Extraction struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
	Record      *Record   `json:"record"`
}
