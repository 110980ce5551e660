// internal/lobby/effects_test.go
package lobby

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slithercade/server/internal/game"
)

// armWeapon stores a weapon on the player as if it had just been picked up.
func armWeapon(p *game.Player, typ string) {
	p.Weapon = typ
}

func TestUseWeaponWithoutWeaponErrors(t *testing.T) {
	l, players := newTestLobby(t, 2)
	a := players[0]
	startPlaying(l)
	setSnake(a, game.DirRight, game.Position{X: 5, Y: 5})
	setSnake(players[1], game.DirRight, game.Position{X: 5, Y: 15})
	drain(a)

	l.UseWeapon(a.ID)

	msg := findMsg(drain(a), "error")
	require.NotNil(t, msg)
	assert.Equal(t, "No weapon to use", msg["message"])
}

func TestUseWeaponIgnoredWhenNotPlaying(t *testing.T) {
	l, players := newTestLobby(t, 2)
	a := players[0]
	armWeapon(a, game.WeaponShield)

	l.UseWeapon(a.ID) // lobby still waiting
	assert.Equal(t, game.WeaponShield, a.Weapon)
	assert.False(t, a.Invincible)
}

func TestUseWeaponIgnoredWhenDead(t *testing.T) {
	l, players := newTestLobby(t, 2)
	a := players[0]
	startPlaying(l)
	setSnake(a, game.DirRight, game.Position{X: 5, Y: 5})
	setSnake(players[1], game.DirRight, game.Position{X: 5, Y: 15})
	a.Alive = false
	armWeapon(a, game.WeaponShield)

	l.UseWeapon(a.ID)
	assert.Equal(t, game.WeaponShield, a.Weapon)
	assert.False(t, a.Invincible)
}

func TestTimedEffectsSetFlagsAndConsume(t *testing.T) {
	cases := []struct {
		weapon string
		check  func(t *testing.T, p *game.Player)
	}{
		{game.WeaponSpeedBoost, func(t *testing.T, p *game.Player) {
			assert.Equal(t, 1.5, p.SpeedMultiplier)
		}},
		{game.WeaponShield, func(t *testing.T, p *game.Player) {
			assert.True(t, p.Invincible)
		}},
		{game.WeaponGhost, func(t *testing.T, p *game.Player) {
			assert.True(t, p.PhaseThrough)
		}},
		{game.WeaponDoubleScore, func(t *testing.T, p *game.Player) {
			assert.Equal(t, 2, p.ScoreMultiplier)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.weapon, func(t *testing.T) {
			l, players := newTestLobby(t, 2)
			a := players[0]
			startPlaying(l)
			setSnake(a, game.DirRight, game.Position{X: 5, Y: 5})
			setSnake(players[1], game.DirRight, game.Position{X: 5, Y: 15})
			armWeapon(a, tc.weapon)

			l.UseWeapon(a.ID)

			assert.Empty(t, a.Weapon, "weapon must be consumed")
			tc.check(t, a)
		})
	}
}

func TestScheduledRevertFires(t *testing.T) {
	l, players := newTestLobby(t, 2)
	a := players[0]
	startPlaying(l)
	setSnake(a, game.DirRight, game.Position{X: 5, Y: 5})
	setSnake(players[1], game.DirRight, game.Position{X: 5, Y: 15})

	a.Invincible = true
	l.mu.Lock()
	l.scheduleRevertUnsafe(a, 20*time.Millisecond, func(p *game.Player) { p.Invincible = false })
	l.mu.Unlock()

	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return !a.Invincible
	}, time.Second, 5*time.Millisecond)
}

func TestFoodBombDropsRingAroundHead(t *testing.T) {
	l, players := newTestLobby(t, 2)
	a := players[0]
	startPlaying(l)
	setSnake(a, game.DirRight, game.Position{X: 10, Y: 10}, game.Position{X: 9, Y: 10})
	setSnake(players[1], game.DirRight, game.Position{X: 3, Y: 3}, game.Position{X: 2, Y: 3})
	armWeapon(a, game.WeaponFoodBomb)

	l.UseWeapon(a.ID)

	// Five cells at angles 2*pi*i/5 on a radius-2 circle, rounded.
	want := []game.Position{
		{X: 12, Y: 10}, {X: 11, Y: 12}, {X: 8, Y: 11}, {X: 8, Y: 9}, {X: 11, Y: 8},
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	require.Len(t, l.food, len(want))
	for _, pos := range want {
		assert.GreaterOrEqual(t, l.foodIndexAtUnsafe(pos), 0, "expected food at %v", pos)
	}
	for _, f := range l.food {
		assert.Equal(t, foodValue, f.Value)
	}
}

func TestFoodBombSkipsOccupiedAndOutOfBounds(t *testing.T) {
	l, players := newTestLobby(t, 2)
	a := players[0]
	startPlaying(l)
	// Head in the corner: most of the ring falls off the board.
	setSnake(a, game.DirRight, game.Position{X: 0, Y: 0})
	setSnake(players[1], game.DirRight, game.Position{X: 10, Y: 10})
	armWeapon(a, game.WeaponFoodBomb)

	l.UseWeapon(a.ID)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range l.food {
		assert.True(t, f.Pos().InBounds(l.settings.BoardSize))
		assert.False(t, l.snakeOccupiesUnsafe(f.Pos()))
	}
	assert.Less(t, len(l.food), foodBombCount)
}

func TestTeleportMovesHeadOnly(t *testing.T) {
	l, players := newTestLobby(t, 2)
	a := players[0]
	startPlaying(l)
	setSnake(a, game.DirRight, game.Position{X: 5, Y: 5}, game.Position{X: 4, Y: 5}, game.Position{X: 3, Y: 5})
	setSnake(players[1], game.DirRight, game.Position{X: 10, Y: 15}, game.Position{X: 9, Y: 15})
	armWeapon(a, game.WeaponTeleport)

	l.UseWeapon(a.ID)

	require.Len(t, a.Snake, 3)
	assert.True(t, a.Snake[0].InBounds(l.Settings().BoardSize))
	assert.NotContains(t, players[1].Snake, a.Snake[0])
	// Body stays put.
	assert.Equal(t, game.Position{X: 4, Y: 5}, a.Snake[1])
	assert.Equal(t, game.Position{X: 3, Y: 5}, a.Snake[2])
}

func TestFreezeStopsOpponentsNotSelf(t *testing.T) {
	l, players := newTestLobby(t, 3)
	a, b, c := players[0], players[1], players[2]
	startPlaying(l)
	setSnake(a, game.DirRight, game.Position{X: 5, Y: 3}, game.Position{X: 4, Y: 3})
	setSnake(b, game.DirRight, game.Position{X: 5, Y: 10}, game.Position{X: 4, Y: 10})
	setSnake(c, game.DirRight, game.Position{X: 5, Y: 16}, game.Position{X: 4, Y: 16})
	armWeapon(a, game.WeaponFreeze)

	l.UseWeapon(a.ID)

	assert.False(t, a.Frozen)
	assert.True(t, b.Frozen)
	assert.True(t, c.Frozen)

	l.Tick()
	assert.Equal(t, 6, a.Snake[0].X)
	assert.Equal(t, 5, b.Snake[0].X)
	assert.Equal(t, 5, c.Snake[0].X)
}

func TestFreezeSkipsDeadPlayers(t *testing.T) {
	l, players := newTestLobby(t, 3)
	a, b, c := players[0], players[1], players[2]
	startPlaying(l)
	setSnake(a, game.DirRight, game.Position{X: 5, Y: 3}, game.Position{X: 4, Y: 3})
	setSnake(b, game.DirRight, game.Position{X: 5, Y: 10}, game.Position{X: 4, Y: 10})
	setSnake(c, game.DirRight, game.Position{X: 5, Y: 16}, game.Position{X: 4, Y: 16})
	c.Alive = false
	armWeapon(a, game.WeaponFreeze)

	l.UseWeapon(a.ID)
	assert.True(t, b.Frozen)
	assert.False(t, c.Frozen)
}

func TestShrinkHalvesSnake(t *testing.T) {
	l, players := newTestLobby(t, 2)
	a := players[0]
	startPlaying(l)
	setSnake(a, game.DirRight,
		game.Position{X: 9, Y: 5},
		game.Position{X: 8, Y: 5},
		game.Position{X: 7, Y: 5},
		game.Position{X: 6, Y: 5},
		game.Position{X: 5, Y: 5},
	)
	setSnake(players[1], game.DirRight, game.Position{X: 5, Y: 15})
	armWeapon(a, game.WeaponShrink)

	l.UseWeapon(a.ID)

	// Rounds up: 5 segments keep 3, head end survives.
	require.Len(t, a.Snake, 3)
	assert.Equal(t, game.Position{X: 9, Y: 5}, a.Snake[0])
}

func TestShrinkLeavesSingleSegment(t *testing.T) {
	l, players := newTestLobby(t, 2)
	a := players[0]
	startPlaying(l)
	setSnake(a, game.DirRight, game.Position{X: 9, Y: 5})
	setSnake(players[1], game.DirRight, game.Position{X: 5, Y: 15})
	armWeapon(a, game.WeaponShrink)

	l.UseWeapon(a.ID)
	assert.Len(t, a.Snake, 1)
}

func TestLaserAndMagnetConsumeOnly(t *testing.T) {
	for _, typ := range []string{game.WeaponLaser, game.WeaponMagnet} {
		t.Run(typ, func(t *testing.T) {
			l, players := newTestLobby(t, 2)
			a := players[0]
			startPlaying(l)
			setSnake(a, game.DirRight, game.Position{X: 5, Y: 5}, game.Position{X: 4, Y: 5})
			setSnake(players[1], game.DirRight, game.Position{X: 5, Y: 15})
			armWeapon(a, typ)

			l.UseWeapon(a.ID)

			assert.Empty(t, a.Weapon)
			assert.Len(t, a.Snake, 2)
			assert.Equal(t, 1.0, a.SpeedMultiplier)
			assert.False(t, a.Invincible)
		})
	}
}
