package board

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mindboard/pkg/clock"
)

// IDGenerator produces node and edge ids of the form
// prefix-counter-unixmillis-random.
type IDGenerator struct {
	mu      sync.Mutex
	counter uint64
	clock   clock.Clock
	random  func() string
}

// NewIDGenerator creates a generator using clk for the timestamp part.
func NewIDGenerator(clk clock.Clock) *IDGenerator {
	if clk == nil {
		clk = clock.Real()
	}
	return &IDGenerator{
		clock: clk,
		random: func() string {
			return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
		},
	}
}

// Next returns an id that taken does not report as used. Collisions are
// resolved by suffixing -1, -2, ...
func (g *IDGenerator) Next(prefix string, taken func(string) bool) string {
	g.mu.Lock()
	g.counter++
	base := fmt.Sprintf("%s-%d-%d-%s", prefix, g.counter, g.clock.Now().UnixMilli(), g.random())
	g.mu.Unlock()

	if taken == nil || !taken(base) {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !taken(candidate) {
			return candidate
		}
	}
}
