package client

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

const defaultMaxTries = 3

// RetryExecutor retries transient failures of another Executor with
// exponential backoff. UNAUTHENTICATED and other client-side failures are
// returned immediately.
type RetryExecutor struct {
	next     Executor
	maxTries uint
	newBack  func() backoff.BackOff
	logger   zerolog.Logger
}

var _ Executor = (*RetryExecutor)(nil)

// RetryOption configures a RetryExecutor
type RetryOption func(*RetryExecutor)

// WithMaxTries sets the total number of attempts, including the first one
func WithMaxTries(n uint) RetryOption {
	return func(r *RetryExecutor) {
		if n > 0 {
			r.maxTries = n
		}
	}
}

// WithBackOff overrides the backoff policy (tests use a zero backoff)
func WithBackOff(newBack func() backoff.BackOff) RetryOption {
	return func(r *RetryExecutor) {
		r.newBack = newBack
	}
}

// NewRetryExecutor wraps next with retries
func NewRetryExecutor(next Executor, logger zerolog.Logger, opts ...RetryOption) *RetryExecutor {
	r := &RetryExecutor{
		next:     next,
		maxTries: defaultMaxTries,
		newBack:  newRetryBackoff,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// newRetryBackoff creates the default exponential backoff policy
func newRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.Multiplier = 2
	return bo
}

func (r *RetryExecutor) Execute(ctx context.Context, req Request, token string) (json.RawMessage, error) {
	attempt := 0
	operation := func() (json.RawMessage, error) {
		attempt++
		payload, err := r.next.Execute(ctx, req, token)
		if err == nil {
			return payload, nil
		}

		var remoteErr *RemoteError
		if errors.As(err, &remoteErr) && remoteErr.Temporary() {
			r.logger.Debug().
				Err(err).
				Str("operation", req.OperationName).
				Int("attempt", attempt).
				Msg("Retrying GraphQL request")
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	payload, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(r.newBack()),
		backoff.WithMaxTries(r.maxTries),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return nil, permanent.Err
		}
		return nil, err
	}
	return payload, nil
}
