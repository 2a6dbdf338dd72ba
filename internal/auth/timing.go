package auth

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// TimingConfig controls the padding applied to failed credential checks
type TimingConfig struct {
	BaseDelay      time.Duration
	RandomDelay    time.Duration // upper bound of the jitter added to BaseDelay
	DelayOnSuccess bool
}

// TimingDelay pads login failures so that "unknown email" and "wrong password"
// take about the same wall-clock time.
type TimingDelay struct {
	config TimingConfig
	jitter func(max time.Duration) time.Duration
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
		jitter: cryptoJitter,
	}
}

func cryptoJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}

// Target returns the total delay for one attempt
func (td *TimingDelay) Target() time.Duration {
	return td.config.BaseDelay + td.jitter(td.config.RandomDelay)
}

// WaitFrom sleeps until at least Target() has elapsed since start.
// It returns early if ctx is cancelled.
func (td *TimingDelay) WaitFrom(ctx context.Context, start time.Time, success bool) {
	if td == nil {
		return
	}
	if success && !td.config.DelayOnSuccess {
		return
	}

	remaining := td.Target() - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
