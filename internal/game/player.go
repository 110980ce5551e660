// internal/game/player.go
package game

import (
	"hash/fnv"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/slithercade/server/internal/metrics"
)

// Player is one connected session and its gameplay state. Identity and
// activity fields are written by the session manager; gameplay fields are
// written only under the owning lobby's lock.
type Player struct {
	ID    string
	Name  string
	Color string

	// Out is the outbound message sink drained by the connection's write
	// pump. Writes never block; see Write.
	Out chan map[string]interface{}

	// lastActivity is the unix-nano time of the last inbound frame. It is
	// bumped lock-free by the connection's read goroutine while the idle
	// sweep reads it, hence the atomic.
	lastActivity atomic.Int64

	ConnectedAt time.Time
	LobbyID     string

	Snake     []Position
	Direction Direction
	Alive     bool
	Ready     bool

	Score  int
	Kills  int
	Deaths int
	Weapon string

	SpeedMultiplier float64
	Invincible      bool
	PhaseThrough    bool
	ScoreMultiplier int
	Frozen          bool

	GamesPlayed int
	GamesWon    int

	// StepDebt accumulates SpeedMultiplier once per tick; the integer part
	// is consumed as head advances within that tick, so a 1.5x player moves
	// one cell and two cells on alternating ticks.
	StepDebt float64

	effectTimers []*time.Timer
}

// NewPlayer returns a player with an auto-generated display name and default
// gameplay state.
func NewPlayer(id string) *Player {
	name := "Player_" + id
	if len(id) >= 8 {
		name = "Player_" + id[:8]
	}
	p := &Player{
		ID:              id,
		Name:            name,
		Color:           paletteColor(id),
		Out:             make(chan map[string]interface{}, 32),
		ConnectedAt:     time.Now(),
		Direction:       DirRight,
		Alive:           true,
		SpeedMultiplier: 1,
		ScoreMultiplier: 1,
	}
	p.Touch()
	return p
}

// paletteColor derives a stable starting color from the session id. Lobbies
// reassign on join to keep members distinct.
func paletteColor(id string) string {
	h := fnv.New32a()
	h.Write([]byte(id))
	return DefaultPalette[int(h.Sum32())%len(DefaultPalette)]
}

// Write pushes msg onto the player's sink without blocking. Messages to a
// full or abandoned sink are dropped; the idle sweeper reaps the session.
func (p *Player) Write(msg map[string]interface{}) {
	select {
	case p.Out <- msg:
	default:
		metrics.MessagesDropped.Inc()
	}
}

// WriteError sends a standard error message to this player only.
func (p *Player) WriteError(msg string) {
	p.Write(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}

// Touch records inbound activity for the idle sweep.
func (p *Player) Touch() {
	p.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the last inbound frame.
func (p *Player) LastActivity() time.Time {
	return time.Unix(0, p.lastActivity.Load())
}

// SetLastActivity overrides the activity clock; used by tests to age a
// session past the idle cutoff.
func (p *Player) SetLastActivity(t time.Time) {
	p.lastActivity.Store(t.UnixNano())
}

// ValidName reports whether name is 1-20 printable characters.
func ValidName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n < 1 || n > 20 {
		return false
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// ResetForGame prepares the player for a fresh round. The snake itself is
// placed by the lobby.
func (p *Player) ResetForGame() {
	p.StopEffectTimers()
	p.Snake = nil
	p.Direction = DirRight
	p.Alive = true
	p.Score = 0
	p.Kills = 0
	p.Deaths = 0
	p.Weapon = ""
	p.StepDebt = 0
	p.ClearEffects()
}

// ResetForLobby returns the player to the waiting-room state.
func (p *Player) ResetForLobby() {
	p.ResetForGame()
	p.Ready = false
}

// ClearEffects restores every weapon-effect flag to its default.
func (p *Player) ClearEffects() {
	p.SpeedMultiplier = 1
	p.Invincible = false
	p.PhaseThrough = false
	p.ScoreMultiplier = 1
	p.Frozen = false
}

// AddEffectTimer registers a pending effect expiry so it can be cancelled on
// reset or game end.
func (p *Player) AddEffectTimer(t *time.Timer) {
	p.effectTimers = append(p.effectTimers, t)
}

// StopEffectTimers cancels all pending effect expiries.
func (p *Player) StopEffectTimers() {
	for _, t := range p.effectTimers {
		t.Stop()
	}
	p.effectTimers = nil
}

// PublicInfo is the identity payload shared with other players.
func (p *Player) PublicInfo() map[string]interface{} {
	return map[string]interface{}{
		"id":      p.ID,
		"name":    p.Name,
		"color":   p.Color,
		"isAlive": p.Alive,
		"isReady": p.Ready,
		"score":   p.Score,
		"kills":   p.Kills,
		"deaths":  p.Deaths,
	}
}

// Snapshot is the per-tick state payload included in game updates.
func (p *Player) Snapshot() map[string]interface{} {
	info := p.PublicInfo()
	info["snake"] = p.Snake
	info["direction"] = p.Direction
	info["weapon"] = p.Weapon
	return info
}

// StatsInfo is the payload for get_player_stats.
func (p *Player) StatsInfo() map[string]interface{} {
	return map[string]interface{}{
		"id":          p.ID,
		"name":        p.Name,
		"color":       p.Color,
		"gamesPlayed": p.GamesPlayed,
		"gamesWon":    p.GamesWon,
		"connectedAt": p.ConnectedAt.UnixMilli(),
	}
}
