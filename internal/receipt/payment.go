package receipt

import "strings"

// paymentKeywords are checked in priority order: the more specific tokens
// first, then generic card markers, then cash. First match wins.
var paymentKeywords = []struct {
	keyword string
	method  PaymentMethod
}{
	{"eftpos", PaymentMethodEftpos},
	{"visa", PaymentMethodCard},
	{"mastercard", PaymentMethodCard},
	{"american express", PaymentMethodCard},
	{"amex", PaymentMethodCard},
	{"credit", PaymentMethodCard},
	{"debit", PaymentMethodCard},
	{"card", PaymentMethodCard},
	{"cash", PaymentMethodCash},
}

// detectPaymentMethod infers a payment method tag from recognized free
// text. Matching is plain substring search over lower-cased,
// whitespace-collapsed text; an empty or unmatched input is "unknown",
// not an error.
func detectPaymentMethod(text string) PaymentMethod {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if normalized == "" {
		return PaymentMethodUnknown
	}

	for _, entry := range paymentKeywords {
		if strings.Contains(normalized, entry.keyword) {
			return entry.method
		}
	}

	return PaymentMethodUnknown
}
