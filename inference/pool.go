package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Pool manages a pool of classifier sessions for concurrent scoring.
type Pool struct {
	sessions  chan *Session
	modelPath string
	device    string
	size      int
	mu        sync.Mutex
	closed    bool
}

// NewPool creates a pool of size sessions on device. Every session resolves
// the device the same way, so Auto settles on one provider for the pool.
func NewPool(modelPath string, size int, device Device) (*Pool, error) {
	if size <= 0 {
		size = 1
	}

	pool := &Pool{
		sessions:  make(chan *Session, size),
		modelPath: modelPath,
		size:      size,
	}

	for i := 0; i < size; i++ {
		session, err := NewSession(modelPath, device)
		if err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("creating session %d: %w", i, err)
		}
		if i == 0 {
			pool.device = session.Device()
		}
		pool.sessions <- session
	}

	return pool, nil
}

// Acquire gets a session from the pool, blocking until one is free or ctx ends.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	select {
	case session, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		return session, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a session to the pool.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = s.Close()
		return
	}
	p.mu.Unlock()

	select {
	case p.sessions <- s:
	default:
		_ = s.Close()
	}
}

// Close closes all sessions in the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.sessions)

	var errs []error
	for session := range p.sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Classify acquires a session, runs it, and releases it.
func (p *Pool) Classify(ctx context.Context, inputIDs, attentionMask []int64, batchSize, seqLen int) ([][]float32, error) {
	session, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(session)
	return session.Classify(ctx, inputIDs, attentionMask, batchSize, seqLen)
}

// Device returns the execution provider the pooled sessions run on.
func (p *Pool) Device() string {
	return p.device
}

// Size returns the pool size.
func (p *Pool) Size() int {
	return p.size
}
