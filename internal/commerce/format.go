package commerce

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCartLines renders lines as text blocks separated by blank lines:
// product title, amount in kilograms and the unit price.
func FormatCartLines(lines []CartLine) string {
	blocks := make([]string, 0, len(lines))
	for _, l := range lines {
		blocks = append(blocks, fmt.Sprintf("%s\nAmount (kg): %s\nPrice per kg: %s\n",
			l.ProductTitle, l.Amount.String(), l.FixedPrice.StringFixed(2)))
	}
	return strings.Join(blocks, "\n")
}

// Total sums Amount × FixedPrice over the lines.
func Total(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
