package perplexity

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/zombor/receipt-extractor/internal/expense"
)

// Step is the retry state machine's decision after an attempt
type Step int

const (
	// StepDone means the attempt succeeded
	StepDone Step = iota
	// StepBackoff means the attempt was rate limited and another one is allowed
	StepBackoff
	// StepFail means the error is terminal
	StepFail
)

// Backoff retries rate-limited attempts with exponential delay plus jitter
type Backoff struct {
	// Base is the delay before the second attempt; each later delay doubles it
	Base time.Duration
	// MaxAttempts caps the total number of attempts, the first one included
	MaxAttempts int
	// Jitter returns the random extra delay added to each backoff
	Jitter func() time.Duration
	// Sleep waits for d or until ctx is done
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultBackoff returns 1s base delay, up to 1s of jitter and 3 attempts
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        time.Second,
		MaxAttempts: 3,
		Jitter: func() time.Duration {
			return rand.N(time.Second)
		},
		Sleep: sleepContext,
	}
}

// Next decides what follows attempt (zero-based) ending with err
func (b Backoff) Next(attempt int, err error) Step {
	switch {
	case err == nil:
		return StepDone
	case !errors.Is(err, expense.ErrServiceRateLimited):
		return StepFail
	case attempt+1 >= b.MaxAttempts:
		return StepFail
	default:
		return StepBackoff
	}
}

// Delay returns how long to wait after attempt (zero-based) was rate limited
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base << attempt
	if b.Jitter != nil {
		d += b.Jitter()
	}
	return d
}

// Run calls fn until it succeeds, fails terminally or runs out of attempts.
// It returns the number of attempts made and the last error.
func (b Backoff) Run(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	sleep := b.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		switch b.Next(attempt, err) {
		case StepDone:
			return attempt + 1, nil
		case StepFail:
			return attempt + 1, err
		}

		delay := b.Delay(attempt)
		slog.Warn("AI service rate limited, backing off", "attempt", attempt+1, "max_attempts", b.MaxAttempts, "delay", delay)
		if serr := sleep(ctx, delay); serr != nil {
			return attempt + 1, expense.NewError("ExtractFields", expense.ErrServiceUnavailable, serr, "cancelled during backoff")
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
