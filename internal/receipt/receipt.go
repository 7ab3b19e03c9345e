package receipt

import (
	"errors"
	"time"

	"github.com/zombor/receipt-extractor/internal/expense"
)

var (
	// ErrNotFound is returned when no receipt has the requested ID
	ErrNotFound = errors.New("receipt not found")

	// ErrUnknownCategory is returned when filtering by a name outside the category set
	ErrUnknownCategory = errors.New("unknown category")
)

// Receipt is a stored receipt image and the expense extracted from it
type Receipt struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type"`
	Expense     expense.Result `json:"expense"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
