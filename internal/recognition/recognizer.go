package recognition

import "context"

// RawField is a single recognized field: the value as the provider reported
// it (string, number, or anything else JSON can carry) plus an optional
// per-field confidence score in [0.0, 1.0]. A nil Confidence means the
// provider gave no score for this field; it does not mean the field is
// trusted.
type RawField struct {
	Value      any      `json:"value"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// RawResult is the structured output of one recognition pass. Field and
// item names follow the prebuilt-receipt model vocabulary (MerchantName,
// Total, TransactionDate, ...). Content holds the full recognized text of
// the document. RawResult is read-only input to normalization; nothing
// mutates it after the recognizer returns.
type RawResult struct {
	Fields  map[string]RawField   `json:"fields"`
	Items   []map[string]RawField `json:"items"`
	Content string                `json:"content"`
}

// Field returns the named field and whether it is present.
func (r *RawResult) Field(name string) (RawField, bool) {
	f, ok := r.Fields[name]
	return f, ok
}

// Recognizer delegates optical character recognition of a receipt document
// to an external document-intelligence provider.
type Recognizer interface {
	// Recognize analyzes a receipt image or PDF and returns its raw
	// structured output. The call is fallible and time-boxed; callers
	// cancel it through ctx.
	Recognize(ctx context.Context, document []byte, contentType string) (*RawResult, error)
	// Close releases provider resources.
	Close() error
}
