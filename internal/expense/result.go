package expense

import (
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date form used for every date in a Result
const DateLayout = "2006-01-02"

// MaxDescriptionLength is the longest description a Result may carry, in characters
const MaxDescriptionLength = 50

// UnknownVendor is reported when no stage could name the merchant
const UnknownVendor = "Unknown Vendor"

// ParsedBy records which stage produced the final record
type ParsedBy string

const (
	ParsedByBasic            ParsedBy = "Basic"
	ParsedByPerplexityAI     ParsedBy = "PerplexityAI"
	ParsedByBasicRateLimited ParsedBy = "BasicRateLimited"
	ParsedByBasicAIFailed    ParsedBy = "BasicAIFailed"
)

// Calibrated confidence scores for results that never reached the AI service
const (
	ConfidenceBasic            = 70
	ConfidenceBasicRateLimited = 40
	ConfidenceBasicAIFailed    = 30
)

// Result is the structured expense record produced for one receipt
type Result struct {
	Vendor      string          `json:"vendor"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"` // YYYY-MM-DD
	Category    Category        `json:"category"`
	Description string          `json:"description"`
	Confidence  int             `json:"confidence"`
	ParsedBy    ParsedBy        `json:"parsed_by"`
	Reasoning   string          `json:"reasoning"`
	// Text is the corrected OCR text the fields were extracted from
	Text     string   `json:"text"`
	Warnings []string `json:"warnings,omitempty"`
}

// Fields holds the values found by the local pattern extractors
type Fields struct {
	Vendor string
	Amount decimal.Decimal
	Date   string
}

// ServiceFields holds what the AI extraction service reported. Zero values mean the service omitted the field.
type ServiceFields struct {
	Vendor      string
	Amount      decimal.Decimal
	Date        string
	Category    string
	Description string
	Confidence  int
	Reasoning   string
}

// TruncateDescription shortens s to MaxDescriptionLength characters
func TruncateDescription(s string) string {
	r := []rune(s)
	if len(r) <= MaxDescriptionLength {
		return s
	}
	return string(r[:MaxDescriptionLength])
}
