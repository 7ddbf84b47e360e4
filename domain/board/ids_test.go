package board

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mindboard/pkg/clock"
)

func TestIDGenerator_Format(t *testing.T) {
	clk := clock.NewFake(time.UnixMilli(1700000000000))
	g := NewIDGenerator(clk)
	g.random = func() string { return "abcd1234" }

	assert.Equal(t, "concept-1-1700000000000-abcd1234", g.Next("concept", nil))
	assert.Equal(t, "concept-2-1700000000000-abcd1234", g.Next("concept", nil))
}

func TestIDGenerator_SuffixesOnCollision(t *testing.T) {
	g := NewIDGenerator(clock.NewFake(time.UnixMilli(1)))
	g.random = func() string { return "ffffffff" }

	taken := map[string]bool{
		"cat-1-1-ffffffff":   true,
		"cat-1-1-ffffffff-1": true,
	}
	id := g.Next("cat", func(s string) bool { return taken[s] })
	assert.Equal(t, "cat-1-1-ffffffff-2", id)
}

func TestIDGenerator_RandomPart(t *testing.T) {
	g := NewIDGenerator(nil)
	id := g.Next("edge", nil)
	parts := strings.Split(id, "-")
	assert.Len(t, parts, 4)
	assert.Len(t, parts[3], 8)
}
