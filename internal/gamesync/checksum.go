package gamesync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Checksum returns a stable content hash of a state tree. json.Marshal
// writes map keys in sorted order, so equal trees hash equally regardless
// of construction order. Clients compare this against their reconstructed
// state to detect desync.
func Checksum(state map[string]any) string {
	data, err := json.Marshal(state)
	if err != nil {
		// State trees are JSON-shaped by construction; a marshal
		// failure is a bug in the producing strategy.
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
