package session

import "sync"

// Generations hands out tickets per target. A ticket is current until a
// newer one is taken for the same target, so a late response can tell it
// has been superseded.
type Generations struct {
	mu      sync.Mutex
	current map[string]uint64
}

type Ticket struct {
	g      *Generations
	target string
	gen    uint64
}

func NewGenerations() *Generations {
	return &Generations{current: map[string]uint64{}}
}

// Next invalidates every outstanding ticket for target and returns a new one.
func (g *Generations) Next(target string) Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current[target]++
	return Ticket{g: g, target: target, gen: g.current[target]}
}

// Invalidate makes every outstanding ticket for target stale.
func (g *Generations) Invalidate(target string) {
	g.Next(target)
}

func (t Ticket) Current() bool {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	return t.g.current[t.target] == t.gen
}
