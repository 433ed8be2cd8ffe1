package session

import (
	"fmt"
	"sync/atomic"
)

// Generator issues capture IDs. The counter is shared across sessions.
type Generator struct {
	counter uint64
}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Next(sessionId string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-cap-%d", sessionId, n)
}
