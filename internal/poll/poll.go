// Package poll provides the shared poll-until-terminal loop used by every
// vendor adapter: short intervals while a task is young, longer intervals once
// it has been pending for a while, and a hard ceiling after which the wait is
// reported as a timeout instead of hanging forever.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the ceiling elapses before the probe resolves.
var ErrTimeout = errors.New("polling deadline exceeded")

// Probe checks the remote task once. done=true stops the loop; a non-nil
// error aborts it immediately.
type Probe func(ctx context.Context) (done bool, err error)

type Config struct {
	// Initial is the interval used until SlowAfter has elapsed.
	Initial time.Duration
	// Slow is the interval used after SlowAfter.
	Slow time.Duration
	// SlowAfter is how long the task may be pending before backing off.
	SlowAfter time.Duration
	// Ceiling is the hard overall limit.
	Ceiling time.Duration
}

func (c Config) withDefaults() Config {
	if c.Initial <= 0 {
		c.Initial = 5 * time.Second
	}
	if c.Slow <= 0 {
		c.Slow = c.Initial
	}
	if c.SlowAfter <= 0 {
		c.SlowAfter = time.Minute
	}
	if c.Ceiling <= 0 {
		c.Ceiling = 30 * time.Minute
	}
	return c
}

// Until runs probe on the configured cadence until it reports done, fails,
// the ceiling elapses (ErrTimeout) or ctx is cancelled.
func Until(ctx context.Context, cfg Config, probe Probe) error {
	cfg = cfg.withDefaults()
	start := time.Now()

	done, err := probe(ctx)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	timer := time.NewTimer(cfg.Initial)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		elapsed := time.Since(start)
		if elapsed >= cfg.Ceiling {
			return ErrTimeout
		}

		done, err := probe(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		interval := cfg.Initial
		if elapsed >= cfg.SlowAfter {
			interval = cfg.Slow
		}
		if remaining := cfg.Ceiling - elapsed; interval > remaining {
			interval = remaining
		}
		timer.Reset(interval)
	}
}
