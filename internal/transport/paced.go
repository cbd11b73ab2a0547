package transport

import (
	"context"

	"golang.org/x/time/rate"
)

// Paced delays each send until the limiter admits it and the pauser (if
// any) is running. Both waits end early when ctx is done.
type Paced struct {
	Sender  Sender
	Limiter *rate.Limiter
	Pauser  *Pauser
}

// NewLimiter returns a limiter allowing perSecond sends, or nil for no limit.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Send implements Sender.
func (p *Paced) Send(ctx context.Context, req Request) (*Response, error) {
	if p.Pauser != nil {
		if err := p.Pauser.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return p.Sender.Send(ctx, req)
}
