package extraction

import (
	"time"

	"github.com/zombor/receipt-extractor/internal/expense"
)

// Extract runs the vendor, amount and date extractors over corrected OCR text
func Extract(text string, now time.Time) expense.Fields {
	return expense.Fields{
		Vendor: ExtractVendor(text),
		Amount: ExtractAmount(text),
		Date:   ExtractDate(text, now),
	}
}
