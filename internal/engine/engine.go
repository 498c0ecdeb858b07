// Package engine implements the authoritative match engine: the per-side
// actor model, the DRAW/MAIN/END phase machine, the effect resolver, and
// the heuristic opponent policy. Effect resolution is kept in a single
// function switching on catalog.Kind so ordering and logging stay
// uniform across card kinds.
package engine

import (
	"fmt"
	"math/rand"

	"github.com/marmos91/cardserver/internal/catalog"
	"github.com/marmos91/cardserver/internal/frame"
)

// InitialHP is the starting HP for both actors in a fresh match.
const InitialHP int16 = 30

// DefaultMaxMana is the mana pool refilled at the start of each side's turn.
const DefaultMaxMana uint8 = 3

// HandSize is the number of cards dealt at the start of a DRAW phase.
const HandSize = 3

// Side identifies which actor a turn or effect belongs to.
type Side uint8

const (
	SidePlayer   Side = 0
	SideOpponent Side = 1
)

// Phase is one of the three stages a turn passes through.
type Phase uint8

const (
	PhaseDraw Phase = 0
	PhaseMain Phase = 1
	PhaseEnd  Phase = 2
)

// Winner identifies the match outcome once GameOver is set.
type Winner uint8

const (
	WinnerNone     Winner = 0
	WinnerPlayer   Winner = 1
	WinnerOpponent Winner = 2
)

// Actor holds one side's combat stats.
type Actor struct {
	HP     int16
	Shield int16
	Buff   int16
	Poison uint8
}

// Hand is the ordered set of up to frame.HandSlots card slots held by the
// current turn owner. A consumed slot's id is reset to 0 without
// compacting the remaining slots, so slot indices stay stable within a
// turn.
type Hand struct {
	N     uint8
	Cards [frame.HandSlots]uint16
}

// Match is the authoritative per-session state for one game.
type Match struct {
	Player   Actor
	Opponent Actor
	Turn     Side
	Phase    Phase
	Mana     uint8
	MaxMana  uint8
	GameOver bool
	Winner   Winner
	Log      [frame.RingLines][frame.RingLineSize]byte
	LogHead  uint8
}

// NewMatch creates a fresh match with both actors at full HP and deals the
// player's opening hand, leaving the match in phase MAIN on the player's
// turn, ready for the first PLAY_CARD.
func NewMatch(rng *rand.Rand) (*Match, *Hand) {
	m := &Match{
		Player:   Actor{HP: InitialHP},
		Opponent: Actor{HP: InitialHP},
		MaxMana:  DefaultMaxMana,
	}
	hand := &Hand{}
	m.enterTurn(hand, rng, SidePlayer)
	return m, hand
}

// enterTurn resets mana and, for the player side, redeals the hand, then
// moves the phase directly to MAIN since DRAW is instantaneous.
func (m *Match) enterTurn(hand *Hand, rng *rand.Rand, side Side) {
	m.Turn = side
	m.Phase = PhaseDraw
	m.Mana = m.MaxMana
	if side == SidePlayer && hand != nil {
		*hand = deal(rng)
	}
	m.Phase = PhaseMain
}

func deal(rng *rand.Rand) Hand {
	pool := catalog.PlayableIDs()
	h := Hand{N: HandSize}
	for i := 0; i < HandSize; i++ {
		h.Cards[i] = pool[rng.Intn(len(pool))]
	}
	return h
}

func (m *Match) actor(side Side) *Actor {
	if side == SidePlayer {
		return &m.Player
	}
	return &m.Opponent
}

func (m *Match) enemy(side Side) *Actor {
	if side == SidePlayer {
		return &m.Opponent
	}
	return &m.Player
}

// PlayCard validates and applies a player-initiated card play at hand
// slot i: turn/phase check, slot check, catalog lookup, mana check, then
// effect resolution.
func (m *Match) PlayCard(hand *Hand, slot uint8) error {
	if m.GameOver {
		return validationErr(CodeWrongPhase, "game over")
	}
	if m.Turn != SidePlayer {
		return validationErr(CodeNotYourTurn, "not your turn")
	}
	if m.Phase != PhaseMain {
		return validationErr(CodeWrongPhase, "wrong phase")
	}
	if slot >= hand.N || hand.Cards[slot] == 0 {
		return validationErr(CodeInvalidIndex, "invalid hand index")
	}
	card, ok := catalog.Lookup(hand.Cards[slot])
	if !ok {
		return validationErr(CodeInvalidCard, "unknown card")
	}
	if card.ManaCost > m.Mana {
		return validationErr(CodeInsufficientMana, "not enough mana")
	}

	m.apply(SidePlayer, card)
	hand.Cards[slot] = 0
	return nil
}

// EndTurn closes out the player's turn: ticks poison for both sides, runs
// the opponent's inline turn (including its own END tick), and redeals
// the player's hand for the next turn, unless the match ends first.
func (m *Match) EndTurn(hand *Hand, rng *rand.Rand) error {
	if m.GameOver {
		return validationErr(CodeWrongPhase, "game over")
	}
	if m.Turn != SidePlayer {
		return validationErr(CodeNotYourTurn, "not your turn")
	}

	m.runEndPhase()
	if m.GameOver {
		return nil
	}

	m.enterTurn(nil, rng, SideOpponent)
	m.runOpponentTurn(rng)

	m.runEndPhase()
	if m.GameOver {
		return nil
	}

	m.enterTurn(hand, rng, SidePlayer)
	return nil
}

// apply deducts mana, resolves the card's effect, logs it, and checks for
// a new game-over condition. Shared by the player's validated play path
// and the opponent's already-affordability-checked path.
func (m *Match) apply(side Side, card catalog.Card) {
	m.Mana -= card.ManaCost
	m.resolveEffect(side, card)
	m.checkGameOver()
}

// resolveEffect dispatches on card kind.
func (m *Match) resolveEffect(side Side, card catalog.Card) {
	self := m.actor(side)
	opp := m.enemy(side)

	var label string
	if side == SidePlayer {
		label = "P"
	} else {
		label = "AI"
	}

	switch card.Kind {
	case catalog.KindATK:
		dmg := card.Value + self.Buff
		self.Buff = 0
		applyDamage(opp, dmg)
	case catalog.KindHEAL:
		self.HP += card.Value
	case catalog.KindSHIELD:
		self.Shield += card.Value
	case catalog.KindBUFF:
		self.Buff += card.Value
	case catalog.KindPOISON:
		opp.Poison += uint8(card.Value)
	}

	m.appendLog(fmt.Sprintf("%s: %s, mana %d", label, card.Name, m.Mana))
}

// applyDamage reduces shield before HP, both clamped at 0.
func applyDamage(a *Actor, dmg int16) {
	if dmg <= 0 {
		return
	}
	absorbed := dmg
	if a.Shield < absorbed {
		absorbed = a.Shield
	}
	a.Shield -= absorbed
	dmg -= absorbed
	a.HP -= dmg
	if a.HP < 0 {
		a.HP = 0
	}
}

// runEndPhase ticks poison for both sides and checks game-over, matching
// the per-turn END phase every side passes through on its way out.
func (m *Match) runEndPhase() {
	m.Phase = PhaseEnd
	m.tickPoison(&m.Player, "P")
	m.tickPoison(&m.Opponent, "AI")
	m.checkGameOver()
}

func (m *Match) tickPoison(a *Actor, label string) {
	if a.Poison == 0 {
		return
	}
	a.Poison--
	a.HP -= 2
	if a.HP < 0 {
		a.HP = 0
	}
	m.appendLog(label + ": poison tick")
}

// checkGameOver sets GameOver and Winner the first time either actor's HP
// reaches 0. Idempotent: once set, the match state is frozen.
func (m *Match) checkGameOver() {
	if m.GameOver {
		return
	}
	pDead := m.Player.HP <= 0
	oDead := m.Opponent.HP <= 0
	if !pDead && !oDead {
		return
	}

	m.GameOver = true
	switch {
	case pDead && oDead:
		switch {
		case m.Player.HP > m.Opponent.HP:
			m.Winner = WinnerPlayer
		case m.Opponent.HP > m.Player.HP:
			m.Winner = WinnerOpponent
		default:
			m.Winner = WinnerNone
		}
	case pDead:
		m.Winner = WinnerOpponent
	default:
		m.Winner = WinnerPlayer
	}
}

func (m *Match) appendLog(line string) {
	var buf [frame.RingLineSize]byte
	copy(buf[:], line)
	m.Log[m.LogHead] = buf
	m.LogHead = (m.LogHead + 1) % frame.RingLines
}

// ToStateRecord snapshots the match into its wire representation.
func (m Match) ToStateRecord() frame.StateRecord {
	return frame.StateRecord{
		Player:   frame.ActorRecord{HP: m.Player.HP, Shield: m.Player.Shield, Buff: m.Player.Buff, Poison: m.Player.Poison},
		Opponent: frame.ActorRecord{HP: m.Opponent.HP, Shield: m.Opponent.Shield, Buff: m.Opponent.Buff, Poison: m.Opponent.Poison},
		Turn:     uint8(m.Turn),
		Phase:    uint8(m.Phase),
		Mana:     m.Mana,
		MaxMana:  m.MaxMana,
		GameOver: boolToU8(m.GameOver),
		Winner:   uint8(m.Winner),
		Ring:     m.Log,
		RingHead: m.LogHead,
	}
}

// MatchFromStateRecord reconstructs a Match from its wire representation,
// as read back from the session store on resume.
func MatchFromStateRecord(r frame.StateRecord) Match {
	return Match{
		Player:   Actor{HP: r.Player.HP, Shield: r.Player.Shield, Buff: r.Player.Buff, Poison: r.Player.Poison},
		Opponent: Actor{HP: r.Opponent.HP, Shield: r.Opponent.Shield, Buff: r.Opponent.Buff, Poison: r.Opponent.Poison},
		Turn:     Side(r.Turn),
		Phase:    Phase(r.Phase),
		Mana:     r.Mana,
		MaxMana:  r.MaxMana,
		GameOver: r.GameOver != 0,
		Winner:   Winner(r.Winner),
		Log:      r.Ring,
		LogHead:  r.RingHead,
	}
}

// ToHandRecord snapshots the hand into its wire representation.
func (h Hand) ToHandRecord() frame.HandRecord {
	return frame.HandRecord{N: h.N, CardIDs: h.Cards}
}

// HandFromRecord reconstructs a Hand from its wire representation.
func HandFromRecord(r frame.HandRecord) Hand {
	return Hand{N: r.N, Cards: r.CardIDs}
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
