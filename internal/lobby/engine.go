// internal/lobby/engine.go
package lobby

import (
	"time"

	"github.com/google/uuid"

	"github.com/slithercade/server/internal/game"
	"github.com/slithercade/server/internal/metrics"
	"github.com/slithercade/server/internal/protocol"
)

const (
	initialFoodCount   = 5
	initialWeaponCount = 3

	foodSpawnChance   = 0.10
	weaponSpawnChance = 0.05
	spawnAttempts     = 100

	foodValue = 10
	killBonus = 50
)

// Tick advances the simulation by one step: movement, collisions, item
// spawning, win check, broadcast. Fixed order; see the per-phase helpers.
func (l *Lobby) Tick() {
	l.mu.Lock()
	if l.state != StatePlaying {
		l.mu.Unlock()
		return
	}
	metrics.TicksProcessed.Inc()

	// Phase 1: directions were already applied on receipt (HandleDirection),
	// so the most recent valid update is in effect.

	// Phase 2+3: advance heads and resolve collisions. Players with a speed
	// boost bank fractional steps and may advance twice within a tick; each
	// extra advance runs as its own round so head-on-head detection stays
	// per-cell-move.
	steps := make(map[string]int, len(l.order))
	maxSteps := 0
	for _, id := range l.order {
		p := l.players[id]
		if !p.Alive || p.Frozen {
			continue
		}
		p.StepDebt += p.SpeedMultiplier
		n := int(p.StepDebt)
		p.StepDebt -= float64(n)
		steps[id] = n
		if n > maxSteps {
			maxSteps = n
		}
	}
	for round := 0; round < maxSteps; round++ {
		moved := make(map[string]bool, len(l.order))
		for _, id := range l.order {
			p := l.players[id]
			if p.Alive && steps[id] > round {
				head := p.Snake[0].Add(p.Direction)
				p.Snake = append([]game.Position{head}, p.Snake...)
				moved[id] = true
			}
		}
		l.resolveCollisionsUnsafe(moved)
	}

	// Phase 4: item spawners, independent Bernoulli trials per tick.
	if l.rng.Float64() < foodSpawnChance {
		l.spawnFoodUnsafe()
	}
	if l.settings.WeaponsEnabled && l.rng.Float64() < weaponSpawnChance {
		l.spawnWeaponUnsafe()
	}

	// Phase 5: win condition. Ending the game skips this tick's broadcast.
	if l.winConditionMetUnsafe() {
		l.endGameUnsafe()
		l.mu.Unlock()
		return
	}

	// Phase 6: snapshot broadcast.
	l.broadcastUnsafe(l.gameUpdateUnsafe(), "")
	l.mu.Unlock()
}

// resolveCollisionsUnsafe handles one movement round for every player that
// moved in it, in join order: wall, self, other snakes, food, weapon, and
// finally the plain-move tail trim.
func (l *Lobby) resolveCollisionsUnsafe(moved map[string]bool) {
	for _, id := range l.order {
		p := l.players[id]
		if !p.Alive || !moved[id] {
			continue
		}
		head := p.Snake[0]

		if !head.InBounds(l.settings.BoardSize) {
			// Snake is kept as-is for the post-mortem snapshot.
			l.killUnsafe(p, nil, "hit the wall")
			continue
		}

		if !p.PhaseThrough {
			if !p.Invincible && containsPos(p.Snake[1:], head) {
				l.killUnsafe(p, nil, "ran into their own tail")
				continue
			}
			if l.snakeCollisionUnsafe(p, head, moved) {
				continue
			}
		}

		if i := l.foodIndexAtUnsafe(head); i >= 0 {
			f := l.food[i]
			l.food = append(l.food[:i], l.food[i+1:]...)
			p.Score += f.Value * p.ScoreMultiplier
			l.foodEaten++
			continue // the snake grew: no tail trim
		}

		if i := l.weaponIndexAtUnsafe(head); i >= 0 {
			w := l.weapons[i]
			l.weapons = append(l.weapons[:i], l.weapons[i+1:]...)
			p.Weapon = w.Type
			def := game.Catalog[w.Type]
			p.Write(map[string]interface{}{
				"type": protocol.MsgWeaponAcquired,
				"weapon": map[string]interface{}{
					"type":        def.Type,
					"name":        def.Name,
					"description": def.Description,
					"icon":        def.Icon,
					"rarity":      def.Rarity,
				},
				"timestamp": time.Now().UnixMilli(),
			})
			continue
		}

		p.Snake = p.Snake[:len(p.Snake)-1]
	}
}

// snakeCollisionUnsafe checks p's head against every other alive snake.
// Returns true if p died. A head-on-head within the same round kills both
// players and credits neither; a body hit credits the segment's owner.
// When several snakes overlap the hit cell, the first in join order wins
// the credit.
func (l *Lobby) snakeCollisionUnsafe(p *game.Player, head game.Position, moved map[string]bool) bool {
	for _, oid := range l.order {
		if oid == p.ID {
			continue
		}
		q := l.players[oid]
		if !q.Alive {
			continue
		}
		idx := indexOfPos(q.Snake, head)
		if idx < 0 {
			continue
		}
		if idx == 0 && moved[oid] {
			if !p.Invincible {
				l.killUnsafe(p, nil, "head-on collision with "+q.Name)
			}
			if !q.Invincible {
				l.killUnsafe(q, nil, "head-on collision with "+p.Name)
			}
		} else if !p.Invincible {
			l.killUnsafe(p, q, "crashed into "+q.Name)
		}
		return !p.Alive
	}
	return false
}

// killUnsafe marks p dead and credits the killer, if any. The dead snake's
// segments stay on the board but no longer collide or block spawns. Effect
// timers keep running; they are only cancelled when the game ends.
func (l *Lobby) killUnsafe(p *game.Player, killer *game.Player, cause string) {
	if !p.Alive {
		return
	}
	p.Alive = false
	p.Deaths++

	killedMsg := map[string]interface{}{
		"type":      protocol.MsgKilled,
		"cause":     cause,
		"timestamp": time.Now().UnixMilli(),
	}
	if killer != nil {
		killedMsg["by"] = killer.Name
		killedMsg["byId"] = killer.ID
	}
	p.Write(killedMsg)

	if killer != nil {
		killer.Score += killBonus
		killer.Kills++
		killer.Write(map[string]interface{}{
			"type":      protocol.MsgKillAwarded,
			"victim":    p.Name,
			"victimId":  p.ID,
			"bonus":     killBonus,
			"timestamp": time.Now().UnixMilli(),
		})
	}
}

// winConditionMetUnsafe evaluates the configured predicate. A board with no
// survivors always ends the game.
func (l *Lobby) winConditionMetUnsafe() bool {
	alive := l.aliveCountUnsafe()
	if alive == 0 {
		return true
	}
	switch l.settings.WinCondition {
	case game.WinTimeLimit:
		return time.Since(l.gameStartTime) >= l.settings.MaxGameDuration()
	default: // last_standing
		return alive <= 1
	}
}

// gameUpdateUnsafe builds the per-tick world snapshot.
func (l *Lobby) gameUpdateUnsafe() map[string]interface{} {
	players := make([]map[string]interface{}, 0, len(l.order))
	for _, id := range l.order {
		players = append(players, l.players[id].Snapshot())
	}
	return map[string]interface{}{
		"type": protocol.MsgGameUpdate,
		"gameState": map[string]interface{}{
			"players":   players,
			"food":      l.food,
			"weapons":   l.weapons,
			"gameTime":  time.Since(l.gameStartTime).Milliseconds(),
			"boardSize": l.settings.BoardSize,
		},
		"timestamp": time.Now().UnixMilli(),
	}
}

// placeSnakeUnsafe drops a length-3 snake heading right, with all three
// segments inside [3, boardSize-4] on each axis, avoiding other snakes.
func (l *Lobby) placeSnakeUnsafe(p *game.Player) {
	size := l.settings.BoardSize
	for attempt := 0; attempt < spawnAttempts; attempt++ {
		x := 5 + l.rng.Intn(size-8) // head x in [5, size-4]
		y := 3 + l.rng.Intn(size-6) // head y in [3, size-4]
		cells := []game.Position{{X: x, Y: y}, {X: x - 1, Y: y}, {X: x - 2, Y: y}}

		clear := true
		for _, c := range cells {
			if l.snakeOccupiesUnsafe(c) {
				clear = false
				break
			}
		}
		if clear || attempt == spawnAttempts-1 {
			p.Snake = cells
			p.Direction = game.DirRight
			return
		}
	}
}

// spawnFoodUnsafe places one food item on a free cell; skipped silently if
// no free cell is found within the attempt budget.
func (l *Lobby) spawnFoodUnsafe() {
	pos, ok := l.randomFreeCellUnsafe()
	if !ok {
		return
	}
	l.food = append(l.food, game.Food{
		ID:    uuid.NewString(),
		X:     pos.X,
		Y:     pos.Y,
		Type:  "normal",
		Value: foodValue,
	})
}

// spawnWeaponUnsafe places one rarity-weighted weapon pickup on a free cell.
func (l *Lobby) spawnWeaponUnsafe() {
	pos, ok := l.randomFreeCellUnsafe()
	if !ok {
		return
	}
	l.weapons = append(l.weapons, game.WeaponItem{
		ID:   uuid.NewString(),
		X:    pos.X,
		Y:    pos.Y,
		Type: game.RandomWeapon(l.rng),
	})
}

// randomFreeCellUnsafe rejection-samples a cell occupied by no alive snake
// segment and no item.
func (l *Lobby) randomFreeCellUnsafe() (game.Position, bool) {
	size := l.settings.BoardSize
	for attempt := 0; attempt < spawnAttempts; attempt++ {
		pos := game.Position{X: l.rng.Intn(size), Y: l.rng.Intn(size)}
		if l.occupiedUnsafe(pos) {
			continue
		}
		return pos, true
	}
	return game.Position{}, false
}

func (l *Lobby) occupiedUnsafe(pos game.Position) bool {
	if l.snakeOccupiesUnsafe(pos) {
		return true
	}
	if l.foodIndexAtUnsafe(pos) >= 0 {
		return true
	}
	return l.weaponIndexAtUnsafe(pos) >= 0
}

func (l *Lobby) snakeOccupiesUnsafe(pos game.Position) bool {
	for _, id := range l.order {
		p := l.players[id]
		if !p.Alive {
			continue
		}
		if containsPos(p.Snake, pos) {
			return true
		}
	}
	return false
}

func (l *Lobby) foodIndexAtUnsafe(pos game.Position) int {
	for i, f := range l.food {
		if f.Pos() == pos {
			return i
		}
	}
	return -1
}

func (l *Lobby) weaponIndexAtUnsafe(pos game.Position) int {
	for i, w := range l.weapons {
		if w.Pos() == pos {
			return i
		}
	}
	return -1
}

func containsPos(segs []game.Position, pos game.Position) bool {
	return indexOfPos(segs, pos) >= 0
}

func indexOfPos(segs []game.Position, pos game.Position) int {
	for i, s := range segs {
		if s == pos {
			return i
		}
	}
	return -1
}
