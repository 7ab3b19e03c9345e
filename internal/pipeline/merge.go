package pipeline

import (
	"github.com/zombor/receipt-extractor/internal/expense"
)

// Reasoning attached to results that did not come from the AI service
const (
	ReasoningBasic            = "Basic regex pattern matching"
	ReasoningBasicRateLimited = "Basic parsing due to rate limit prevention"
	ReasoningBasicAIFailed    = "Basic regex parsing due to AI failure"
	ReasoningAIDefault        = "AI-based extraction and categorization"
)

// Sufficient reports whether local extraction found enough to skip the AI service:
// a vendor and a strictly positive amount.
func Sufficient(fields expense.Fields) bool {
	return fields.Vendor != "" && fields.Amount.IsPositive()
}

// basicResult builds a result from the local extractor fields alone
func basicResult(fields expense.Fields, text string, parsedBy expense.ParsedBy, confidence int, reasoning string) *expense.Result {
	vendor := fields.Vendor
	if vendor == "" {
		vendor = expense.UnknownVendor
	}

	return &expense.Result{
		Vendor:      vendor,
		Amount:      fields.Amount,
		Date:        fields.Date,
		Category:    expense.Categorize(fields.Vendor, ""),
		Description: "",
		Confidence:  confidence,
		ParsedBy:    parsedBy,
		Reasoning:   reasoning,
		Text:        text,
	}
}

// mergeService prefers what the service reported and falls back to the local fields
func mergeService(fields expense.Fields, svc *expense.ServiceFields, text string) *expense.Result {
	result := &expense.Result{
		Vendor:      firstNonEmpty(svc.Vendor, fields.Vendor, expense.UnknownVendor),
		Amount:      fields.Amount,
		Date:        firstNonEmpty(svc.Date, fields.Date),
		Category:    expense.Other,
		Description: expense.TruncateDescription(svc.Description),
		Confidence:  svc.Confidence,
		ParsedBy:    expense.ParsedByPerplexityAI,
		Reasoning:   firstNonEmpty(svc.Reasoning, ReasoningAIDefault),
		Text:        text,
	}
	if svc.Amount.IsPositive() {
		result.Amount = svc.Amount
	}
	if c, ok := expense.Canonicalize(svc.Category); ok {
		result.Category = c
	}
	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
