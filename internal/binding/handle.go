package binding

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const (
	base36Chars     = "abcdefghijklmnopqrstuvwxyz0123456789"
	minHandleLength = 6
	maxHandleLength = 10
	maxAttempts     = 3
)

// HandleGenerator produces random base36 instance handles.
type HandleGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewHandleGenerator returns a generator. If rng is nil, a time-based source is used.
func NewHandleGenerator(rng *rand.Rand) *HandleGenerator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &HandleGenerator{rng: rng}
}

// Generate returns a handle that exists reports as unused. After maxAttempts
// collisions at one length the length grows by one, up to maxHandleLength.
func (g *HandleGenerator) Generate(exists func(string) bool) (string, error) {
	for length := minHandleLength; length <= maxHandleLength; length++ {
		for attempt := 0; attempt < maxAttempts; attempt++ {
			candidate := g.random(length)
			if !exists(candidate) {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("unable to generate unique handle after %d attempts per length", maxAttempts)
}

func (g *HandleGenerator) random(length int) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	buf := make([]byte, length)
	for i := range buf {
		buf[i] = base36Chars[g.rng.Intn(len(base36Chars))]
	}
	return string(buf)
}
