package engine

import (
	"math/rand"
	"testing"

	"github.com/marmos91/cardserver/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatch(seed int64) (*Match, *Hand, *rand.Rand) {
	rng := rand.New(rand.NewSource(seed))
	m, h := NewMatch(rng)
	return m, h, rng
}

func TestNewMatchStartsInMainPhaseWithFullHand(t *testing.T) {
	m, h, _ := newTestMatch(1)

	assert.Equal(t, InitialHP, m.Player.HP)
	assert.Equal(t, InitialHP, m.Opponent.HP)
	assert.Equal(t, SidePlayer, m.Turn)
	assert.Equal(t, PhaseMain, m.Phase)
	assert.Equal(t, DefaultMaxMana, m.Mana)
	assert.EqualValues(t, HandSize, h.N)
	for i := 0; i < int(h.N); i++ {
		assert.NotZero(t, h.Cards[i])
	}
}

func TestPlayCardDeductsManaAndDamagesOpponent(t *testing.T) {
	m, h, _ := newTestMatch(2)
	h.Cards[0] = 1 // Strike: cost 1, value 3

	require.NoError(t, m.PlayCard(h, 0))

	assert.EqualValues(t, 27, m.Opponent.HP)
	assert.EqualValues(t, 2, m.Mana)
	assert.EqualValues(t, 0, h.Cards[0])
}

func TestPlayCardInsufficientMana(t *testing.T) {
	m, h, _ := newTestMatch(3)
	m.Mana = 0
	h.Cards[0] = 1 // Strike: cost 1

	err := m.PlayCard(h, 0)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeInsufficientMana, verr.Code)
	// state and hand must be unchanged
	assert.EqualValues(t, InitialHP, m.Opponent.HP)
	assert.EqualValues(t, 1, h.Cards[0])
}

func TestPlayCardInvalidIndex(t *testing.T) {
	m, h, _ := newTestMatch(4)
	h.N = 1
	h.Cards[0] = 0

	err := m.PlayCard(h, 0)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeInvalidIndex, verr.Code)
}

func TestPlayCardNotYourTurn(t *testing.T) {
	m, h, _ := newTestMatch(5)
	m.Turn = SideOpponent

	err := m.PlayCard(h, 0)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeNotYourTurn, verr.Code)
}

func TestDamageAbsorbedByShieldFirst(t *testing.T) {
	m, h, _ := newTestMatch(6)
	m.Opponent.Shield = 2
	h.Cards[0] = 1 // Strike: value 3

	require.NoError(t, m.PlayCard(h, 0))

	assert.EqualValues(t, 0, m.Opponent.Shield)
	assert.EqualValues(t, 29, m.Opponent.HP) // 3 dmg, 2 absorbed, 1 through
}

func TestBuffConsumedOnNextAttack(t *testing.T) {
	m, h, _ := newTestMatch(7)
	h.N = 2
	h.Cards[0] = 8 // Focus: BUFF value 3
	h.Cards[1] = 1 // Strike: value 3

	require.NoError(t, m.PlayCard(h, 0))
	assert.EqualValues(t, 3, m.Player.Buff)

	require.NoError(t, m.PlayCard(h, 1))

	assert.EqualValues(t, 0, m.Player.Buff)
	assert.EqualValues(t, 24, m.Opponent.HP) // 3 base + 3 buff
}

func TestEndTurnRefillsManaAndRedealsHand(t *testing.T) {
	m, h, rng := newTestMatch(8)

	require.NoError(t, m.EndTurn(h, rng))

	assert.Equal(t, SidePlayer, m.Turn)
	assert.Equal(t, PhaseMain, m.Phase)
	assert.EqualValues(t, DefaultMaxMana, m.Mana)
	assert.EqualValues(t, HandSize, h.N)
}

func TestEndTurnRunsOpponentInline(t *testing.T) {
	m, h, rng := newTestMatch(9)

	require.NoError(t, m.EndTurn(h, rng))

	// The opponent always has an affordable card on turn one (mana 3,
	// cheapest cards cost 1), so it must have acted and logged something.
	found := false
	for _, line := range m.Log {
		if line[0] == 'A' && line[1] == 'I' {
			found = true
			break
		}
	}
	assert.True(t, found, "expected an AI log line after EndTurn")
}

func TestGameOverFreezesState(t *testing.T) {
	m, h, _ := newTestMatch(10)
	m.Opponent.HP = 1
	h.Cards[0] = 1 // Strike: value 3, lethal

	require.NoError(t, m.PlayCard(h, 0))
	require.True(t, m.GameOver)
	assert.Equal(t, WinnerPlayer, m.Winner)

	snapshot := m.ToStateRecord()
	err := m.PlayCard(h, 0)
	require.Error(t, err)
	assert.Equal(t, snapshot, m.ToStateRecord())
}

func TestSimultaneousDoubleKOFromPoisonTiesToNone(t *testing.T) {
	m, h, rng := newTestMatch(11)
	m.Player.HP = 2
	m.Player.Poison = 1
	m.Opponent.HP = 2
	m.Opponent.Poison = 1
	m.Mana = 0 // force an immediate end turn with no plays

	require.NoError(t, m.EndTurn(h, rng))

	require.True(t, m.GameOver)
	assert.Equal(t, WinnerNone, m.Winner)
	assert.EqualValues(t, 0, m.Player.HP)
	assert.EqualValues(t, 0, m.Opponent.HP)
}

func TestStateRecordRoundTrip(t *testing.T) {
	m, h, _ := newTestMatch(12)
	m.Player.Shield = 4
	m.Opponent.Buff = 2
	m.Opponent.Poison = 1

	rec := m.ToStateRecord()
	back := MatchFromStateRecord(rec)
	assert.Equal(t, m.Player, back.Player)
	assert.Equal(t, m.Opponent, back.Opponent)
	assert.Equal(t, m.Turn, back.Turn)
	assert.Equal(t, m.Phase, back.Phase)
	assert.Equal(t, m.GameOver, back.GameOver)

	handRec := h.ToHandRecord()
	backHand := HandFromRecord(handRec)
	assert.Equal(t, *h, backHand)
}

func TestScoreCardPrefersHealWhenLowHP(t *testing.T) {
	m, _, _ := newTestMatch(13)
	m.Opponent.HP = 5

	heal, ok := catalog.Lookup(4) // Mend: HEAL
	require.True(t, ok)
	atk, ok := catalog.Lookup(1) // Strike: ATK value 3
	require.True(t, ok)

	assert.Greater(t, scoreCard(m, heal), scoreCard(m, atk))
}
