package reportbatch

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NoRetries as RetryPolicy.MaxRetries gives up after the first attempt.
const NoRetries = -1

// RetryPolicy bounds the exponential backoff applied to transient errors.
// The zero value is DefaultRetryPolicy.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first, 0 means the
	// default and NoRetries disables retrying.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      4,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     10 * time.Second,
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries == 0 {
		p.MaxRetries = DefaultRetryPolicy.MaxRetries
	}
	if p.InitialInterval == 0 {
		p.InitialInterval = DefaultRetryPolicy.InitialInterval
	}
	if p.MaxInterval == 0 {
		p.MaxInterval = DefaultRetryPolicy.MaxInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	return p
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	// the retry count is the only ceiling
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(max(p.MaxRetries, 0))), ctx)
}

// retryNotify is called before sleeping for another attempt.
type retryNotify func(err *RemoteCallError, wait time.Duration)

// do runs op until it succeeds, fails with a permanent error or the policy gives up.
// The returned error is always a *RemoteCallError labelled with `report`.
func (p RetryPolicy) do(ctx context.Context, report string, notify retryNotify, op func(ctx context.Context) error) *RemoteCallError {
	err := backoff.RetryNotify(
		func() error {
			err := op(ctx)
			if err == nil {
				return nil
			}
			classified := classify(report, err)
			if !classified.Transient {
				return backoff.Permanent(classified)
			}
			return classified
		},
		p.newBackOff(ctx),
		func(err error, wait time.Duration) {
			if notify != nil {
				notify(classify(report, err), wait)
			}
		},
	)
	if err == nil {
		return nil
	}
	return classify(report, err)
}
