package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Characters Tesseract is allowed to emit for receipts
const tesseractWhitelist = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz$.,/-:()&#'₹ "

// Tesseract implements Engine with a local Tesseract installation
type Tesseract struct {
	language string
}

// NewTesseract creates a Tesseract engine for the given language (default "eng")
func NewTesseract(language string) (*Tesseract, error) {
	if language == "" {
		language = "eng"
	}
	return &Tesseract{language: language}, nil
}

type tesseractResult struct {
	text string
	err  error
}

// Recognize runs Tesseract on the image. gosseract cannot be interrupted, so on
// cancellation the call returns immediately and the worker finishes in the background.
func (t *Tesseract) Recognize(ctx context.Context, pngData []byte) (string, error) {
	done := make(chan tesseractResult, 1)
	go func() {
		text, err := t.recognize(pngData)
		done <- tesseractResult{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("tesseract: %w", ctx.Err())
	case res := <-done:
		return res.text, res.err
	}
}

func (t *Tesseract) recognize(pngData []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return "", fmt.Errorf("setting language %q: %w", t.language, err)
	}
	// Single uniform block of text
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("setting page segmentation mode: %w", err)
	}
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return "", fmt.Errorf("setting preserve_interword_spaces: %w", err)
	}
	if err := client.SetWhitelist(tesseractWhitelist); err != nil {
		return "", fmt.Errorf("setting whitelist: %w", err)
	}
	if err := client.SetImageFromBytes(pngData); err != nil {
		return "", fmt.Errorf("setting image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("running tesseract: %w", err)
	}
	return text, nil
}

// Close is a no-op; each call owns its own client
func (t *Tesseract) Close() error {
	return nil
}
