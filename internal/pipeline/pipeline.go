package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-extractor/internal/document"
	"github.com/zombor/receipt-extractor/internal/expense"
	"github.com/zombor/receipt-extractor/internal/extraction"
	"github.com/zombor/receipt-extractor/internal/ocr"
)

// Default per-call limits for the external services
const (
	DefaultOCRTimeout = 2 * time.Minute
	DefaultAITimeout  = time.Minute
)

// Escalator extracts fields with the AI service when local extraction is insufficient
type Escalator interface {
	ExtractFields(ctx context.Context, text string) (*expense.ServiceFields, error)
}

// Gate decides whether an escalation attempt fits in the shared budget
type Gate interface {
	Allow() bool
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Config holds the timeouts applied to each external call
type Config struct {
	OCRTimeout time.Duration
	AITimeout  time.Duration
}

// Pipeline turns receipt images into expense results.
// One Pipeline may serve concurrent requests; they share its Gate.
type Pipeline struct {
	engine     ocr.Engine
	escalator  Escalator
	gate       Gate
	timeSource TimeSource
	config     Config
}

// New creates a Pipeline. escalator may be nil when no AI service is configured.
func New(engine ocr.Engine, escalator Escalator, gate Gate, config Config) *Pipeline {
	return NewWithDeps(engine, escalator, gate, config, defaultTimeSource{})
}

// NewWithDeps creates a Pipeline with a custom time source for testing
func NewWithDeps(engine ocr.Engine, escalator Escalator, gate Gate, config Config, timeSource TimeSource) *Pipeline {
	if config.OCRTimeout <= 0 {
		config.OCRTimeout = DefaultOCRTimeout
	}
	if config.AITimeout <= 0 {
		config.AITimeout = DefaultAITimeout
	}
	return &Pipeline{
		engine:     engine,
		escalator:  escalator,
		gate:       gate,
		timeSource: timeSource,
		config:     config,
	}
}

// Extract loads, checks, preprocesses and recognises an image, then extracts the expense from its text.
// It only fails for unreadable input, OCR failure or a missing AI credential when escalation is required;
// every other problem yields a degraded result.
func (p *Pipeline) Extract(ctx context.Context, data []byte, contentType string) (*expense.Result, error) {
	log := slog.With("request_id", uuid.NewString())

	raw, err := document.Load(data, contentType)
	if err != nil {
		return nil, err
	}
	log.Debug("Loaded receipt image", "format", raw.Format, "width", raw.Width, "height", raw.Height)

	quality := document.Validate(raw.Image)
	if !quality.OK() {
		log.Info("Image quality warnings", "warnings", quality.Warnings, "luminance", quality.MeanLuminance)
	}

	png, err := document.Preprocess(raw.Image)
	if err != nil {
		return nil, expense.NewError("Preprocess", expense.ErrImageLoad, err, "")
	}

	ocrCtx, cancel := context.WithTimeout(ctx, p.config.OCRTimeout)
	text, err := p.engine.Recognize(ocrCtx, png)
	cancel()
	if err != nil {
		return nil, expense.NewError("Recognize", expense.ErrOCRFailed, err, "")
	}

	result, err := p.extractText(ctx, log, text)
	if err != nil {
		return nil, err
	}
	result.Warnings = quality.Warnings
	return result, nil
}

// ExtractText corrects raw OCR text and extracts the expense from it
func (p *Pipeline) ExtractText(ctx context.Context, text string) (*expense.Result, error) {
	return p.extractText(ctx, slog.With("request_id", uuid.NewString()), text)
}

func (p *Pipeline) extractText(ctx context.Context, log *slog.Logger, rawText string) (*expense.Result, error) {
	text := ocr.Correct(rawText)
	fields := extraction.Extract(text, p.timeSource.Now())

	if Sufficient(fields) {
		log.Debug("Basic extraction sufficient", "vendor", fields.Vendor, "amount", fields.Amount)
		return basicResult(fields, text, expense.ParsedByBasic, expense.ConfidenceBasic, ReasoningBasic), nil
	}

	if p.gate != nil && !p.gate.Allow() {
		log.Warn("AI call budget exhausted, using basic extraction", "vendor", fields.Vendor, "amount", fields.Amount)
		return basicResult(fields, text, expense.ParsedByBasicRateLimited, expense.ConfidenceBasicRateLimited, ReasoningBasicRateLimited), nil
	}

	if p.escalator == nil {
		return nil, expense.NewError("ExtractText", expense.ErrMissingCredential, nil, "local extraction was insufficient and no AI service is configured")
	}

	log.Info("Escalating to AI extractor", "vendor_found", fields.Vendor != "", "amount_found", fields.Amount.IsPositive())

	aiCtx, cancel := context.WithTimeout(ctx, p.config.AITimeout)
	svc, err := p.escalator.ExtractFields(aiCtx, text)
	cancel()
	if err != nil {
		if errors.Is(err, expense.ErrMissingCredential) {
			return nil, err
		}
		log.Warn("AI extraction failed, using basic extraction", "error", err)
		return basicResult(fields, text, expense.ParsedByBasicAIFailed, expense.ConfidenceBasicAIFailed, ReasoningBasicAIFailed), nil
	}

	return mergeService(fields, svc, text), nil
}
