package platform

import (
	"context"

	"golang.org/x/time/rate"
)

// Paced 每次平台调用前等待令牌，等价于客户端的 wait-on-rate-limit
type Paced struct {
	next    Platform
	limiter *rate.Limiter
}

// NewPaced rps<=0 时默认每秒 1 次
func NewPaced(next Platform, rps float64) *Paced {
	if rps <= 0 {
		rps = 1
	}
	return &Paced{next: next, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (p *Paced) Self() Account { return p.next.Self() }

func (p *Paced) Publish(ctx context.Context, text string) (PostID, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return p.next.Publish(ctx, text)
}

func (p *Paced) SearchRecent(ctx context.Context, q Query, maxResults int) ([]Candidate, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.next.SearchRecent(ctx, q, maxResults)
}

func (p *Paced) Follow(ctx context.Context, accountID string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	return p.next.Follow(ctx, accountID)
}

func (p *Paced) Unfollow(ctx context.Context, accountID string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	return p.next.Unfollow(ctx, accountID)
}

func (p *Paced) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.next.GetAccount(ctx, accountID)
}
