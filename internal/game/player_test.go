// internal/game/player_test.go
package game

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slithercade/server/internal/metrics"
)

func TestNewPlayerDefaults(t *testing.T) {
	p := NewPlayer("abcdef1234")

	assert.Equal(t, "Player_abcdef12", p.Name)
	assert.Equal(t, DirRight, p.Direction)
	assert.True(t, p.Alive)
	assert.Equal(t, 1.0, p.SpeedMultiplier)
	assert.Equal(t, 1, p.ScoreMultiplier)

	// A session has a palette color before it ever joins a lobby, and the
	// same id always maps to the same color.
	assert.Contains(t, DefaultPalette, p.Color)
	assert.Equal(t, p.Color, NewPlayer("abcdef1234").Color)
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("a"))
	assert.True(t, ValidName("Snake Fan 99"))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName(strings.Repeat("x", 21)))
	assert.False(t, ValidName("bad\nname"))
}

func TestResetForGameClearsState(t *testing.T) {
	p := NewPlayer("p1")
	p.Snake = []Position{{X: 5, Y: 5}}
	p.Direction = DirUp
	p.Alive = false
	p.Score = 120
	p.Kills = 2
	p.Deaths = 1
	p.Weapon = WeaponShield
	p.SpeedMultiplier = 1.5
	p.Invincible = true
	p.PhaseThrough = true
	p.ScoreMultiplier = 2
	p.Frozen = true
	p.StepDebt = 0.5
	p.GamesPlayed = 3
	p.GamesWon = 1

	p.ResetForGame()

	assert.Nil(t, p.Snake)
	assert.Equal(t, DirRight, p.Direction)
	assert.True(t, p.Alive)
	assert.Zero(t, p.Score)
	assert.Zero(t, p.Kills)
	assert.Zero(t, p.Deaths)
	assert.Empty(t, p.Weapon)
	assert.Equal(t, 1.0, p.SpeedMultiplier)
	assert.False(t, p.Invincible)
	assert.False(t, p.PhaseThrough)
	assert.Equal(t, 1, p.ScoreMultiplier)
	assert.False(t, p.Frozen)
	assert.Zero(t, p.StepDebt)

	// Cumulative stats survive a reset.
	assert.Equal(t, 3, p.GamesPlayed)
	assert.Equal(t, 1, p.GamesWon)
}

func TestResetForLobbyClearsReady(t *testing.T) {
	p := NewPlayer("p1")
	p.Ready = true
	p.ResetForLobby()
	assert.False(t, p.Ready)
}

func TestStopEffectTimersCancelsReverts(t *testing.T) {
	p := NewPlayer("p1")
	fired := make(chan struct{}, 1)
	p.AddEffectTimer(time.AfterFunc(20*time.Millisecond, func() { fired <- struct{}{} }))
	p.StopEffectTimers()

	select {
	case <-fired:
		t.Fatal("cancelled effect timer still fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWriteNeverBlocks(t *testing.T) {
	p := NewPlayer("p1")
	before := testutil.ToFloat64(metrics.MessagesDropped)
	for i := 0; i < cap(p.Out)+10; i++ {
		p.Write(map[string]interface{}{"type": "game_update"})
	}
	// Channel is full; overflow messages were dropped and counted, not
	// blocked on.
	require.Equal(t, cap(p.Out), len(p.Out))
	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.MessagesDropped)-before)
}

func TestTouchAdvancesActivityClock(t *testing.T) {
	p := NewPlayer("p1")
	past := time.Now().Add(-time.Hour)
	p.SetLastActivity(past)
	require.Equal(t, past.UnixNano(), p.LastActivity().UnixNano())

	p.Touch()
	assert.True(t, p.LastActivity().After(past))
}

func TestDirectionOpposite(t *testing.T) {
	assert.Equal(t, DirLeft, DirRight.Opposite())
	assert.Equal(t, DirUp, DirDown.Opposite())
	assert.True(t, DirUp.IsUnit())
	assert.False(t, Direction{X: 1, Y: 1}.IsUnit())
	assert.False(t, Direction{}.IsUnit())
}
