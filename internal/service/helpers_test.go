package service

import (
	"fmt"
	"sync"
)

// seqIDs hands out "new-1", "new-2", ... so plans are reproducible.
type seqIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func newSeqIDs(prefix string) *seqIDs {
	return &seqIDs{prefix: prefix}
}

func (g *seqIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
