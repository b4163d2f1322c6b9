package event

import (
	"context"
	"sync"
)

// gate blocks publishers while closed. An open gate is represented by a closed
// channel so that every waiter is released by a single close.
type gate struct {
	mu   sync.Mutex
	open chan struct{}
}

func newGate() *gate {
	ch := make(chan struct{})
	close(ch)
	return &gate{open: ch}
}

func (g *gate) lock() {
	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case <-g.open:
		g.open = make(chan struct{})
	default:
	}
}

func (g *gate) unlock() {
	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case <-g.open:
	default:
		close(g.open)
	}
}

func (g *gate) current() chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

func (g *gate) locked() bool {
	select {
	case <-g.current():
		return false
	default:
		return true
	}
}

// wait returns once the gate is open or ctx is done. onBlock runs once, the
// first time the caller has to suspend.
func (g *gate) wait(ctx context.Context, onBlock func()) error {
	blocked := false
	for {
		ch := g.current()
		select {
		case <-ch:
			return nil
		default:
		}

		if !blocked {
			blocked = true
			onBlock()
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
