package game

import (
	"hash/fnv"
	"math/rand"
	"time"
)

// RNG is the seeded pseudo-random source a game draws from. With
// deterministic seeding, the same room code and creation time yield the
// same shuffle sequence, so a command log replays to identical states.
type RNG struct {
	r *rand.Rand
}

// NewRNG derives a deterministic RNG from the room's identity.
func NewRNG(roomCode string, createdAt time.Time) *RNG {
	h := fnv.New64a()
	h.Write([]byte(roomCode))
	seed := int64(h.Sum64()) ^ createdAt.UnixNano()
	return &RNG{r: rand.New(rand.NewSource(seed))}
}

// NewRNGFromSeed builds an RNG from an explicit seed, used by tests to pin
// exact deals.
func NewRNGFromSeed(seed int64) *RNG {
	return &RNG{r: rand.New(rand.NewSource(seed))}
}

// Intn returns a uniform int in [0, n).
func (g *RNG) Intn(n int) int { return g.r.Intn(n) }

// Shuffle pseudo-randomizes the order of n elements.
func (g *RNG) Shuffle(n int, swap func(i, j int)) { g.r.Shuffle(n, swap) }
