package service

import (
	"context"
	"math/rand/v2"
	"time"
)

// Latency is the simulated round trip of a remote call. A call waits a
// uniformly random duration in [Min, Max].
type Latency struct {
	Min time.Duration
	Max time.Duration
}

// NoLatency returns immediately unless the context is already done.
var NoLatency = Latency{}

func (l Latency) duration() time.Duration {
	if l.Max <= l.Min {
		return l.Min
	}
	return l.Min + rand.N(l.Max-l.Min+1)
}

// Wait blocks for the simulated latency. It returns ctx.Err() if the context
// ends first; callers must not apply their mutation in that case.
func (l Latency) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := l.duration()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
