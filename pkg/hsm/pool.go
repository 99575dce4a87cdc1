package hsm

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned by Acquire once the pool is closed.
var ErrPoolClosed = errors.New("hsm: pool closed")

// Pool spreads requests over several sessions. A Session handles one request at
// a time, so throughput grows with the number of pooled sessions.
type Pool struct {
	idle     chan *Session
	sessions []*Session

	once   sync.Once
	closed chan struct{}
}

// NewPool pools already established sessions.
func NewPool(sessions ...*Session) *Pool {
	p := &Pool{
		idle:     make(chan *Session, len(sessions)),
		sessions: sessions,
		closed:   make(chan struct{}),
	}
	for _, s := range sessions {
		p.idle <- s
	}
	return p
}

// DialPool opens size sessions to addr. Sessions already opened are closed if one dial fails.
func DialPool(ctx context.Context, addr string, size int, opts ...Option) (*Pool, error) {
	if size < 1 {
		size = 1
	}

	sessions := make([]*Session, 0, size)
	for i := 0; i < size; i++ {
		s, err := Dial(ctx, addr, opts...)
		if err != nil {
			for _, open := range sessions {
				open.Close()
			}
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return NewPool(sessions...), nil
}

// Len returns the number of pooled sessions.
func (p *Pool) Len() int {
	return len(p.sessions)
}

// Acquire waits for an idle session. A session whose connection was lost is
// reconnected first; if that fails it goes back to the pool and the
// ConnectionError is returned.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	default:
	}

	select {
	case s := <-p.idle:
		if s.State() != StateDisconnected {
			return s, nil
		}
		if err := s.Connect(ctx); err != nil {
			p.Release(s)
			return nil, err
		}
		return s, nil
	case <-p.closed:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns s to the pool.
func (p *Pool) Release(s *Session) {
	select {
	case p.idle <- s:
	default:
	}
}

// Do runs cmd on the first idle session.
func (p *Pool) Do(ctx context.Context, cmd Command) (*Response, error) {
	s, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(s)
	return s.Do(ctx, cmd)
}

// Close closes every pooled session and returns the first error.
func (p *Pool) Close() error {
	var first error
	p.once.Do(func() {
		close(p.closed)
		for _, s := range p.sessions {
			if err := s.Close(); err != nil && first == nil {
				first = err
			}
		}
	})
	return first
}
