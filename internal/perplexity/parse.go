package perplexity

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-extractor/internal/expense"
)

// Every field may be omitted; merging fills the gaps from the basic extractors.
const responseSchema = `{
  "type": "object",
  "minProperties": 1,
  "properties": {
    "vendor":      {"type": ["string", "null"]},
    "amount":      {"type": ["number", "string", "null"]},
    "date":        {"type": ["string", "null"]},
    "category":    {"type": ["string", "null"]},
    "description": {"type": ["string", "null"]},
    "confidence":  {"type": ["number", "null"]},
    "reasoning":   {"type": ["string", "null"]}
  }
}`

var schema = jsonschema.MustCompileString("extraction-response.json", responseSchema)

// First signed number in a string amount such as "Rs. 1,250.00"
var amountNumber = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)

var dateFormats = []string{
	expense.DateLayout,
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"January 2, 2006",
	"2 January 2006",
}

type response struct {
	Vendor      *string         `json:"vendor"`
	Amount      json.RawMessage `json:"amount"`
	Date        *string         `json:"date"`
	Category    *string         `json:"category"`
	Description *string         `json:"description"`
	Confidence  *float64        `json:"confidence"`
	Reasoning   *string         `json:"reasoning"`
}

// ParseResponse turns the service's message content into fields.
// Anything that is not a JSON object of the expected shape is a response format error.
func ParseResponse(content string) (*expense.ServiceFields, error) {
	raw, err := extractObject(content)
	if err != nil {
		return nil, expense.NewError("ParseResponse", expense.ErrServiceResponseFormat, err, "")
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, expense.NewError("ParseResponse", expense.ErrServiceResponseFormat, err, "unmarshaling json")
	}
	if err := schema.Validate(doc); err != nil {
		return nil, expense.NewError("ParseResponse", expense.ErrServiceResponseFormat, err, "response does not match schema")
	}

	var resp response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, expense.NewError("ParseResponse", expense.ErrServiceResponseFormat, err, "unmarshaling json")
	}

	amount, err := parseAmount(resp.Amount)
	if err != nil {
		return nil, expense.NewError("ParseResponse", expense.ErrServiceResponseFormat, err, "")
	}

	fields := &expense.ServiceFields{
		Vendor:      strings.TrimSpace(deref(resp.Vendor)),
		Amount:      amount,
		Date:        normalizeDate(deref(resp.Date)),
		Category:    strings.TrimSpace(deref(resp.Category)),
		Description: strings.TrimSpace(deref(resp.Description)),
		Reasoning:   strings.TrimSpace(deref(resp.Reasoning)),
	}
	if resp.Confidence != nil {
		fields.Confidence = clampConfidence(*resp.Confidence)
	}

	return fields, nil
}

// extractObject strips markdown fences and surrounding prose from the JSON object
func extractObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	return text[start : end+1], nil
}

// parseAmount accepts a number or a string such as "Rs. 1,250.00". A string without a number
// counts as omitted; a negative amount is an error.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, nil
	}

	var d decimal.Decimal
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		m := amountNumber.FindString(str)
		if m == "" {
			return decimal.Zero, nil
		}
		d, err = decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
		if err != nil {
			return decimal.Zero, nil
		}
	} else {
		d, err = decimal.NewFromString(string(raw))
		if err != nil {
			return decimal.Zero, fmt.Errorf("amount %s is not a number: %w", raw, err)
		}
	}

	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount %s is negative", d)
	}
	return d.Round(2), nil
}

// normalizeDate returns YYYY-MM-DD, or "" if the value is not a recognisable date
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(expense.DateLayout)
		}
	}
	return ""
}

func clampConfidence(c float64) int {
	c = math.Round(c)
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return int(c)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
