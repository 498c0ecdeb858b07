package engine

import (
	"math"
	"math/rand"

	"github.com/marmos91/cardserver/internal/catalog"
)

// runOpponentTurn deals an ephemeral hand of candidate cards and greedily
// plays the highest-scoring affordable one, repeating until nothing is
// affordable. The opponent's hand is never persisted: its whole lifetime
// is this single synchronous call, which always completes before any
// reply is sent to the client.
func (m *Match) runOpponentTurn(rng *rand.Rand) {
	hand := deal(rng)

	for {
		if m.GameOver {
			return
		}

		bestIdx := -1
		bestScore := math.MinInt
		for i := 0; i < int(hand.N); i++ {
			id := hand.Cards[i]
			if id == 0 {
				continue
			}
			card, ok := catalog.Lookup(id)
			if !ok || card.ManaCost > m.Mana {
				continue
			}
			if s := scoreCard(m, card); s > bestScore {
				bestScore = s
				bestIdx = i
			}
		}

		if bestIdx == -1 {
			return
		}

		card, _ := catalog.Lookup(hand.Cards[bestIdx])
		m.apply(SideOpponent, card)
		hand.Cards[bestIdx] = 0
	}
}

// scoreCard scores a candidate card for the opponent against the current
// match state. The weights are fixed constants, not tunables.
func scoreCard(m *Match, card catalog.Card) int {
	score := 0
	if m.Opponent.HP < 10 && card.Kind == catalog.KindHEAL {
		score += 100
	}
	if m.Player.Shield > 0 && card.Kind == catalog.KindBUFF {
		score += 40
	}
	if card.Kind == catalog.KindATK {
		score += int(card.Value)
	}
	if card.Kind == catalog.KindPOISON && m.Player.Poison == 0 {
		score += 30
	}
	if card.Kind == catalog.KindSHIELD && m.Opponent.Shield == 0 {
		score += 20
	}
	score -= 2 * int(card.ManaCost)
	return score
}
