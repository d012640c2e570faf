package receipt

import (
	"fmt"

	"github.com/shopspring/decimal"

	"receipt-ocr-service/internal/recognition"
)

// Raw item field names produced by the prebuilt receipt model.
const (
	itemDescription = "Description"
	itemQuantity    = "Quantity"
	itemPrice       = "Price"
	itemTotalPrice  = "TotalPrice"
	itemTax         = "Tax"
)

// extractLineItems converts the raw item array into normalized line items.
// Raw order is preserved and defines the 1-based line numbers; the
// provider's own item index is not trusted. Items are never dropped, even
// fully-defaulted ones, since a dropped item would corrupt the
// reconciliation total.
func extractLineItems(rawItems []map[string]recognition.RawField, tolerance decimal.Decimal) ([]LineItem, []string) {
	items := make([]LineItem, 0, len(rawItems))
	var warnings []string

	for i, rawItem := range rawItems {
		lineNumber := i + 1

		item := LineItem{
			LineNumber: lineNumber,
			Quantity:   1,
		}

		if f, ok := rawItem[itemDescription]; ok {
			if s, ok := textValue(f.Value); ok {
				item.Description = s
			}
		}

		quantity, quantityPresent := itemNumber(rawItem, itemQuantity, lineNumber, &warnings)
		if quantityPresent {
			item.Quantity = quantity.InexactFloat64()
		}

		unitPrice, pricePresent := itemNumber(rawItem, itemPrice, lineNumber, &warnings)
		if pricePresent {
			item.UnitPrice = unitPrice.Round(2).InexactFloat64()
		}

		lineAmount, amountPresent := itemNumber(rawItem, itemTotalPrice, lineNumber, &warnings)
		derived := decimal.Zero
		if quantityPresent && pricePresent {
			derived = quantity.Mul(unitPrice).Round(2)
		}

		switch {
		case amountPresent:
			// The provided amount wins; a material disagreement with
			// quantity x unit price is surfaced, not silently recomputed.
			item.LineAmount = lineAmount.Round(2).InexactFloat64()
			if quantityPresent && pricePresent && derived.Sub(lineAmount.Round(2)).Abs().GreaterThan(tolerance) {
				warnings = append(warnings, fmt.Sprintf(
					"line %d: amount %s disagrees with quantity x unit price (%s)",
					lineNumber, lineAmount.Round(2).StringFixed(2), derived.StringFixed(2)))
			}
		case quantityPresent && pricePresent:
			item.LineAmount = derived.InexactFloat64()
		}

		if gst, ok := itemNumber(rawItem, itemTax, lineNumber, &warnings); ok {
			item.GSTAmount = gst.Round(2).InexactFloat64()
		}

		items = append(items, item)
	}

	return items, warnings
}

// itemNumber reads a numeric item field. A present but unparseable value
// is treated as absent and reported.
func itemNumber(rawItem map[string]recognition.RawField, name string, lineNumber int, warnings *[]string) (decimal.Decimal, bool) {
	f, ok := rawItem[name]
	if !ok || f.Value == nil {
		return decimal.Zero, false
	}
	d, ok := numericValue(f.Value)
	if !ok {
		*warnings = append(*warnings, fmt.Sprintf("line %d: %s", lineNumber, unparseableWarning(name)))
		return decimal.Zero, false
	}
	return d, true
}
