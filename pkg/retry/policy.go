package retry

import (
	"errors"
	"fmt"
	"time"
)

// ErrMaxRetriesExceeded wraps the last error once a policy runs out of attempts
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Policy describes how many times and how far apart an operation is retried
type Policy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// RetryableFunc overrides the default classification when set
	RetryableFunc func(error) bool
}

// DefaultPolicy retries three times starting at one second, doubling up to ten seconds
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2,
	}
}

func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.InitialBackoff < 0 || p.MaxBackoff < 0 {
		return fmt.Errorf("backoff durations must not be negative")
	}
	if p.MaxBackoff > 0 && p.InitialBackoff > p.MaxBackoff {
		return fmt.Errorf("initial backoff %s exceeds max backoff %s", p.InitialBackoff, p.MaxBackoff)
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be >= 1, got %v", p.Multiplier)
	}
	return nil
}

// Backoff computes the wait before a given attempt
type Backoff struct {
	policy Policy
}

func NewBackoff(policy Policy) *Backoff {
	return &Backoff{policy: policy}
}

// Calculate returns the delay before attempt n (1-based)
func (b *Backoff) Calculate(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	multiplier := b.policy.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	delay := float64(b.policy.InitialBackoff)
	for i := 1; i < attempt; i++ {
		delay *= multiplier
		if b.policy.MaxBackoff > 0 && delay >= float64(b.policy.MaxBackoff) {
			return b.policy.MaxBackoff
		}
	}
	return time.Duration(delay)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
