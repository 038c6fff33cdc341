package overlay

import (
	"sync"

	"github.com/samirrijal/routemap/internal/core/domain"
)

// Token identifies one fetch-and-reconcile request on a channel.
type Token struct {
	Channel    domain.Channel
	Generation uint64
}

// Generations hands out per-channel monotonically increasing tokens. A result
// is applied only if its token is still the newest one for its channel.
type Generations struct {
	mu      sync.Mutex
	current map[domain.Channel]uint64
}

// NewGenerations creates an empty generation counter.
func NewGenerations() *Generations {
	return &Generations{current: make(map[domain.Channel]uint64)}
}

// Next supersedes every outstanding token of ch.
func (g *Generations) Next(ch domain.Channel) Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current[ch]++
	return Token{Channel: ch, Generation: g.current[ch]}
}

// IsCurrent reports whether tok has not been superseded.
func (g *Generations) IsCurrent(tok Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current[tok.Channel] == tok.Generation
}

// Current returns the newest generation of ch.
func (g *Generations) Current(ch domain.Channel) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current[ch]
}

// Invalidate supersedes the outstanding tokens of every channel.
func (g *Generations) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ch := range domain.Channels {
		g.current[ch]++
	}
}
