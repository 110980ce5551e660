// internal/lobby/effects.go
package lobby

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/slithercade/server/internal/game"
)

const foodBombCount = 5

// UseWeapon activates and consumes the player's stored weapon.
func (l *Lobby) UseWeapon(playerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.players[playerID]
	if !ok || l.state != StatePlaying || !p.Alive {
		return
	}
	if p.Weapon == "" {
		p.WriteError("No weapon to use")
		return
	}

	typ := p.Weapon
	p.Weapon = ""
	l.applyWeaponEffectUnsafe(p, typ)
}

// applyWeaponEffectUnsafe applies one weapon's effect. Timed effects revert
// via scheduled timers; the reverts run even if the player has died in the
// meantime, and are cancelled only when the game ends or the lobby resets.
func (l *Lobby) applyWeaponEffectUnsafe(p *game.Player, typ string) {
	def, ok := game.Catalog[typ]
	if !ok {
		return
	}

	l.log.WithField("lobby", l.ID).Debugf("player %s used %s", p.ID, typ)

	switch typ {
	case game.WeaponSpeedBoost:
		p.SpeedMultiplier = 1.5
		l.scheduleRevertUnsafe(p, def.Duration, func(p *game.Player) { p.SpeedMultiplier = 1 })

	case game.WeaponShield:
		p.Invincible = true
		l.scheduleRevertUnsafe(p, def.Duration, func(p *game.Player) { p.Invincible = false })

	case game.WeaponGhost:
		p.PhaseThrough = true
		l.scheduleRevertUnsafe(p, def.Duration, func(p *game.Player) { p.PhaseThrough = false })

	case game.WeaponDoubleScore:
		p.ScoreMultiplier = 2
		l.scheduleRevertUnsafe(p, def.Duration, func(p *game.Player) { p.ScoreMultiplier = 1 })

	case game.WeaponFoodBomb:
		if len(p.Snake) == 0 {
			return
		}
		head := p.Snake[0]
		for i := 0; i < foodBombCount; i++ {
			angle := 2 * math.Pi * float64(i) / foodBombCount
			pos := game.Position{
				X: head.X + int(math.Round(2*math.Cos(angle))),
				Y: head.Y + int(math.Round(2*math.Sin(angle))),
			}
			if !pos.InBounds(l.settings.BoardSize) || l.occupiedUnsafe(pos) {
				continue
			}
			l.food = append(l.food, game.Food{
				ID:    uuid.NewString(),
				X:     pos.X,
				Y:     pos.Y,
				Type:  "normal",
				Value: foodValue,
			})
		}

	case game.WeaponTeleport:
		if len(p.Snake) == 0 {
			return
		}
		if pos, ok := l.randomFreeCellUnsafe(); ok {
			p.Snake[0] = pos
		}

	case game.WeaponFreeze:
		for _, oid := range l.order {
			q := l.players[oid]
			if q.ID == p.ID || !q.Alive {
				continue
			}
			q.Frozen = true
			l.scheduleRevertUnsafe(q, def.Duration, func(q *game.Player) { q.Frozen = false })
		}

	case game.WeaponShrink:
		if n := len(p.Snake); n > 1 {
			p.Snake = p.Snake[:(n+1)/2]
		}

	case game.WeaponLaser, game.WeaponMagnet:
		// Catalog-only for now; activation still consumes the weapon.
	}
}

// scheduleRevertUnsafe runs revert on target under the lobby lock after d.
// The timer is registered on the target so StopEffectTimers can cancel it.
func (l *Lobby) scheduleRevertUnsafe(target *game.Player, d time.Duration, revert func(*game.Player)) {
	t := time.AfterFunc(d, func() {
		l.mu.Lock()
		revert(target)
		l.mu.Unlock()
	})
	target.AddEffectTimer(t)
}
