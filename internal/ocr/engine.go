package ocr

import (
	"context"
	"strings"
)

// Engine turns a preprocessed receipt image into raw text
type Engine interface {
	// Recognize returns the text found in a PNG image
	Recognize(ctx context.Context, pngData []byte) (string, error)
	// Close releases any resources held by the engine
	Close() error
}

// transcribePrompt is shared by the vision-model engines
const transcribePrompt = `Transcribe this receipt exactly as printed.

Rules:
- Output only the text on the receipt, one printed line per output line, top to bottom
- Keep numbers, currency symbols, dates and punctuation exactly as they appear
- Do not summarise, translate, correct or reorder anything
- Do not add commentary and do not use markdown code blocks`

// cleanTranscript strips markdown fences some models add around their answer
func cleanTranscript(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
