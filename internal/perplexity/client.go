package perplexity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/zombor/receipt-extractor/internal/expense"
)

// Defaults for the Perplexity chat-completions endpoint
const (
	DefaultBaseURL = "https://api.perplexity.ai"
	DefaultModel   = "sonar-pro"
	DefaultTimeout = 30 * time.Second

	temperature = 0.2
	maxTokens   = 400
)

// Config holds the connection settings for the AI extraction service
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout bounds each attempt
	Timeout time.Duration
}

// Client extracts expense fields from OCR text using Perplexity's OpenAI-compatible API
type Client struct {
	api     *openai.Client
	config  Config
	backoff Backoff
	now     func() time.Time
}

// NewClient creates a new Client with the default backoff policy
func NewClient(config Config) *Client {
	return NewClientWithBackoff(config, DefaultBackoff())
}

// NewClientWithBackoff creates a new Client with an injected backoff policy (useful for testing)
func NewClientWithBackoff(config Config, backoff Backoff) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	apiConfig := openai.DefaultConfig(config.APIKey)
	apiConfig.BaseURL = config.BaseURL
	apiConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &Client{
		api:     openai.NewClientWithConfig(apiConfig),
		config:  config,
		backoff: backoff,
		now:     time.Now,
	}
}

// ExtractFields asks the service for the expense fields in text.
// A missing API key fails before any request is made.
func (c *Client) ExtractFields(ctx context.Context, text string) (*expense.ServiceFields, error) {
	if c.config.APIKey == "" {
		return nil, expense.NewError("ExtractFields", expense.ErrMissingCredential, nil, "perplexity api key is not set")
	}

	var fields *expense.ServiceFields
	attempts, err := c.backoff.Run(ctx, func(ctx context.Context) error {
		var err error
		fields, err = c.attempt(ctx, text)
		return err
	})
	if err != nil {
		if errors.Is(err, expense.ErrServiceRateLimited) {
			return nil, expense.NewError("ExtractFields", expense.ErrServiceRateLimited, err, fmt.Sprintf("gave up after %d attempts", attempts))
		}
		return nil, err
	}

	slog.Debug("AI extraction complete", "attempts", attempts, "vendor", fields.Vendor, "confidence", fields.Confidence)
	return fields, nil
}

func (c *Client) attempt(ctx context.Context, text string) (*expense.ServiceFields, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemPrompt(c.now()),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: UserPrompt(text),
			},
		},
	})
	if err != nil {
		return nil, classify(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, expense.NewError("ExtractFields", expense.ErrServiceResponseFormat, nil, "no choices in response")
	}

	return ParseResponse(resp.Choices[0].Message.Content)
}

// go-openai reports non-JSON error bodies as plain errors carrying the code in the message
var statusInMessage = regexp.MustCompile(`status code: (\d{3})`)

// classify maps a transport error onto the error taxonomy by HTTP status
func classify(err error) error {
	status := statusCode(err)
	switch status {
	case http.StatusTooManyRequests:
		return expense.NewError("ExtractFields", expense.ErrServiceRateLimited, err, "")
	case http.StatusUnauthorized:
		return expense.NewError("ExtractFields", expense.ErrServiceAuth, err, "check the perplexity api key")
	case http.StatusForbidden:
		return expense.NewError("ExtractFields", expense.ErrServicePermission, err, "check api key permissions or account credits")
	case 0:
		return expense.NewError("ExtractFields", expense.ErrServiceUnavailable, err, "")
	default:
		return expense.NewError("ExtractFields", expense.ErrServiceUnavailable, err, fmt.Sprintf("status %d", status))
	}
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	if m := statusInMessage.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}
