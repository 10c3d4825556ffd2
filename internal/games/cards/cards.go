// Package cards provides the deck and poker hand evaluation shared by the
// casino games. Cards travel through game state as two-character codes
// ("AS", "TD") so state stays JSON-shaped.
package cards

import (
	"strings"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/game"
)

// Card is a parsed card. Rank runs 2-14 with Ace high as 14.
type Card struct {
	Rank int
	Suit byte // 'S', 'H', 'D', 'C'
}

const rankChars = "23456789TJQKA"

var suits = []byte{'S', 'H', 'D', 'C'}

// Parse decodes a two-character card code.
func Parse(code string) (Card, bool) {
	if len(code) != 2 {
		return Card{}, false
	}
	rank := strings.IndexByte(rankChars, code[0])
	if rank < 0 {
		return Card{}, false
	}
	switch code[1] {
	case 'S', 'H', 'D', 'C':
		return Card{Rank: rank + 2, Suit: code[1]}, true
	}
	return Card{}, false
}

// MustParse decodes a card code produced by this package.
func MustParse(code string) Card {
	c, ok := Parse(code)
	if !ok {
		panic("bad card code " + code)
	}
	return c
}

// String renders the two-character code.
func (c Card) String() string {
	return string(rankChars[c.Rank-2]) + string(c.Suit)
}

// NewDeck returns an ordered 52-card deck of codes.
func NewDeck() []string {
	deck := make([]string, 0, 52)
	for _, s := range suits {
		for r := 2; r <= 14; r++ {
			deck = append(deck, Card{Rank: r, Suit: s}.String())
		}
	}
	return deck
}

// ShuffledDeck returns a deck shuffled by the game's seeded RNG, as a
// JSON-shaped slice ready to store in state.
func ShuffledDeck(rng *game.RNG) []any {
	deck := NewDeck()
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	out := make([]any, len(deck))
	for i, c := range deck {
		out[i] = c
	}
	return out
}

// Draw pops the top card from a JSON-shaped deck, returning the code and
// the remaining deck.
func Draw(deck []any) (string, []any) {
	if len(deck) == 0 {
		return "", deck
	}
	code := deck[0].(string)
	return code, deck[1:]
}

// ParseAll decodes a JSON-shaped hand of card codes.
func ParseAll(hand []any) []Card {
	out := make([]Card, 0, len(hand))
	for _, v := range hand {
		if code, ok := v.(string); ok {
			if c, ok := Parse(code); ok {
				out = append(out, c)
			}
		}
	}
	return out
}
