package assetloader

import (
	"context"
	"sync"
)

// Pending is the shared, eventually resolved result of loading one URL.
type Pending struct {
	done chan struct{}
	once sync.Once

	body *Body
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Done returns a channel that is closed once the result is available.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the result is available or ctx is done.
func (p *Pending) Wait(ctx context.Context) (*Body, error) {
	select {
	case <-p.done:
		return p.body, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pending) resolve(body *Body, err error) {
	p.once.Do(func() {
		p.body = body
		p.err = err
		close(p.done)
	})
}
