// internal/lobby/lobby.go
package lobby

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/slithercade/server/internal/game"
	"github.com/slithercade/server/internal/metrics"
	"github.com/slithercade/server/internal/protocol"
)

// Game lifecycle states.
const (
	StateWaiting  = "waiting"
	StateStarting = "starting"
	StatePlaying  = "playing"
	StateFinished = "finished"
)

// Lobby is one room: membership, readiness, settings, and the authoritative
// world state for a single game at a time. All mutable state is protected by
// mu; exported methods acquire it, *Unsafe methods assume it is held.
type Lobby struct {
	ID         string
	Name       string
	MaxPlayers int
	IsPrivate  bool
	Password   string
	CreatedAt  time.Time

	// Lifecycle timing, overridable in tests.
	AutoStartDelay time.Duration
	ResetDelay     time.Duration
	CountdownTick  time.Duration

	mu        sync.Mutex
	createdBy string
	state     string
	settings  game.GameSettings

	players map[string]*game.Player
	order   []string // join order; iteration order for every pass

	food    []game.Food
	weapons []game.WeaponItem

	gameStartTime time.Time
	foodEaten     int

	tickStop        chan struct{}
	autoStartTimer  *time.Timer
	resetTimer      *time.Timer
	countdownTimers []*time.Timer

	rng *rand.Rand
	log *logrus.Logger
}

// New creates a waiting lobby with normalized settings. Zero maxPlayers
// falls back to 4; the valid range is 2-8.
func New(name string, maxPlayers int, isPrivate bool, password string, settings game.GameSettings, logger *logrus.Logger) *Lobby {
	if maxPlayers == 0 {
		maxPlayers = 4
	}
	if maxPlayers < 2 {
		maxPlayers = 2
	}
	if maxPlayers > 8 {
		maxPlayers = 8
	}
	settings.Normalize()

	id := uuid.NewString()
	if name == "" {
		name = "Lobby " + id[:4]
	}

	return &Lobby{
		ID:         id,
		Name:       name,
		MaxPlayers: maxPlayers,
		IsPrivate:  isPrivate,
		Password:   password,
		CreatedAt:  time.Now(),

		AutoStartDelay: 2 * time.Second,
		ResetDelay:     10 * time.Second,
		CountdownTick:  time.Second,

		state:    StateWaiting,
		settings: settings,
		players:  make(map[string]*game.Player),

		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		log: logger,
	}
}

// State returns the current lifecycle state.
func (l *Lobby) State() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// CreatedBy returns the current creator (ownership may have been handed
// over since creation).
func (l *Lobby) CreatedBy() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createdBy
}

// Settings returns a copy of the current game settings.
func (l *Lobby) Settings() game.GameSettings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settings
}

// IsEmpty reports whether no players remain.
func (l *Lobby) IsEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.players) == 0
}

// PlayerCount returns the current number of members.
func (l *Lobby) PlayerCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.players)
}

// CheckPassword verifies join credentials for private lobbies.
func (l *Lobby) CheckPassword(password string) bool {
	if !l.IsPrivate {
		return true
	}
	return l.Password == password
}

// AddPlayer attaches a player to the lobby. Rejected when full or when a
// game is in progress. The first member becomes the creator.
func (l *Lobby) AddPlayer(p *game.Player) error {
	l.mu.Lock()

	if len(l.players) >= l.MaxPlayers {
		l.mu.Unlock()
		return fmt.Errorf("lobby %s is full", l.ID)
	}
	if l.state == StatePlaying {
		l.mu.Unlock()
		return fmt.Errorf("game already in progress")
	}

	p.ResetForLobby()
	l.assignColorUnsafe(p)
	l.players[p.ID] = p
	l.order = append(l.order, p.ID)
	if l.createdBy == "" {
		l.createdBy = p.ID
	}

	l.log.WithFields(logrus.Fields{"lobby": l.ID, "player": p.ID}).Info("player joined lobby")

	l.broadcastUnsafe(map[string]interface{}{
		"type":        protocol.MsgPlayerJoined,
		"player":      p.PublicInfo(),
		"playerCount": len(l.players),
		"timestamp":   time.Now().UnixMilli(),
	}, p.ID)

	l.mu.Unlock()
	return nil
}

// RemovePlayer detaches a player. Ownership passes to the next member in
// join order; a running game with one or zero survivors ends.
func (l *Lobby) RemovePlayer(playerID string) {
	l.mu.Lock()

	p, ok := l.players[playerID]
	if !ok {
		l.mu.Unlock()
		return
	}

	p.StopEffectTimers()
	delete(l.players, playerID)
	for i, id := range l.order {
		if id == playerID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}

	if l.createdBy == playerID && len(l.order) > 0 {
		l.createdBy = l.order[0]
	}

	l.log.WithFields(logrus.Fields{"lobby": l.ID, "player": playerID}).Info("player left lobby")

	l.broadcastUnsafe(map[string]interface{}{
		"type":        protocol.MsgPlayerLeft,
		"playerId":    playerID,
		"name":        p.Name,
		"newCreator":  l.createdBy,
		"playerCount": len(l.players),
		"timestamp":   time.Now().UnixMilli(),
	}, "")

	switch l.state {
	case StatePlaying:
		if l.aliveCountUnsafe() <= 1 {
			l.endGameUnsafe()
		}
	case StateStarting:
		if len(l.players) < 2 {
			l.cancelCountdownUnsafe()
			l.state = StateWaiting
		}
	case StateWaiting:
		l.cancelAutoStartUnsafe()
	}

	if len(l.players) == 0 {
		l.stopTimersUnsafe()
	}

	l.mu.Unlock()
}

// SetPlayerReady flips the readiness flag and may arm the auto-start timer.
// The timer re-validates preconditions when it fires.
func (l *Lobby) SetPlayerReady(playerID string, ready bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.players[playerID]
	if !ok {
		return
	}
	p.Ready = ready

	readyCount := 0
	for _, id := range l.order {
		if l.players[id].Ready {
			readyCount++
		}
	}

	l.broadcastUnsafe(map[string]interface{}{
		"type":         protocol.MsgPlayerReadyChanged,
		"playerId":     playerID,
		"ready":        ready,
		"readyCount":   readyCount,
		"totalPlayers": len(l.players),
		"timestamp":    time.Now().UnixMilli(),
	}, "")

	if !ready {
		l.cancelAutoStartUnsafe()
		return
	}
	if l.canStartGameUnsafe() && l.autoStartTimer == nil {
		l.autoStartTimer = time.AfterFunc(l.AutoStartDelay, func() {
			l.mu.Lock()
			l.autoStartTimer = nil
			// Re-check: readiness or membership may have changed during
			// the delay.
			if l.canStartGameUnsafe() {
				l.startGameUnsafe()
			}
			l.mu.Unlock()
		})
	}
}

// StartGame begins the countdown if preconditions hold.
func (l *Lobby) StartGame() {
	l.mu.Lock()
	if l.canStartGameUnsafe() {
		l.startGameUnsafe()
	}
	l.mu.Unlock()
}

func (l *Lobby) canStartGameUnsafe() bool {
	if l.state != StateWaiting || len(l.players) < 2 {
		return false
	}
	for _, id := range l.order {
		if !l.players[id].Ready {
			return false
		}
	}
	return true
}

// startGameUnsafe moves to the starting state, places snakes and initial
// items, and schedules the 3-2-1 countdown.
func (l *Lobby) startGameUnsafe() {
	l.cancelAutoStartUnsafe()
	l.state = StateStarting
	l.gameStartTime = time.Now()
	l.food = []game.Food{}
	l.weapons = []game.WeaponItem{}
	l.foodEaten = 0

	for _, id := range l.order {
		p := l.players[id]
		p.ResetForGame()
		p.GamesPlayed++
		l.placeSnakeUnsafe(p)
	}

	for i := 0; i < initialFoodCount; i++ {
		l.spawnFoodUnsafe()
	}
	if l.settings.WeaponsEnabled {
		for i := 0; i < initialWeaponCount; i++ {
			l.spawnWeaponUnsafe()
		}
	}

	l.log.WithField("lobby", l.ID).Info("game starting")

	l.broadcastUnsafe(map[string]interface{}{
		"type":      protocol.MsgGameStarting,
		"countdown": 3,
		"timestamp": time.Now().UnixMilli(),
	}, "")

	l.countdownTimers = nil
	for _, step := range []int{2, 1} {
		count := step
		t := time.AfterFunc(time.Duration(3-count)*l.CountdownTick, func() {
			l.mu.Lock()
			if l.state == StateStarting {
				l.broadcastUnsafe(map[string]interface{}{
					"type":      protocol.MsgCountdown,
					"count":     count,
					"timestamp": time.Now().UnixMilli(),
				}, "")
			}
			l.mu.Unlock()
		})
		l.countdownTimers = append(l.countdownTimers, t)
	}
	t := time.AfterFunc(3*l.CountdownTick, func() {
		l.mu.Lock()
		if l.state != StateStarting {
			// Countdown was cancelled while the timer was in flight.
			l.mu.Unlock()
			return
		}
		l.state = StatePlaying
		l.tickStop = make(chan struct{})
		go l.run(l.settings.TickPeriod(), l.tickStop)
		metrics.ActiveGames.Inc()
		l.broadcastUnsafe(map[string]interface{}{
			"type":      protocol.MsgGameStarted,
			"timestamp": time.Now().UnixMilli(),
		}, "")
		l.log.WithField("lobby", l.ID).Info("game started")
		l.mu.Unlock()
	})
	l.countdownTimers = append(l.countdownTimers, t)
}

// run drives the tick loop while the game is playing.
func (l *Lobby) run(period time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}

// endGameUnsafe stops the simulation, awards the winner, and schedules the
// lobby reset.
func (l *Lobby) endGameUnsafe() {
	if l.state != StatePlaying && l.state != StateStarting {
		return
	}
	if l.tickStop != nil {
		close(l.tickStop)
		l.tickStop = nil
		metrics.ActiveGames.Dec()
	}
	l.cancelCountdownUnsafe()
	l.state = StateFinished

	for _, id := range l.order {
		l.players[id].StopEffectTimers()
	}

	var winner *game.Player
	if l.aliveCountUnsafe() == 1 {
		for _, id := range l.order {
			if l.players[id].Alive {
				winner = l.players[id]
				break
			}
		}
		winner.GamesWon++
	} else if l.settings.WinCondition == game.WinTimeLimit && l.aliveCountUnsafe() > 1 {
		// Timeout with several survivors: the rankings leader takes the
		// win slot in the payload, but only a sole survivor counts a
		// gamesWon. With no survivors there is no winner, same as a
		// head-on mutual kill.
		rankings := l.rankingsUnsafe()
		winnerID, _ := rankings[0]["id"].(string)
		winner = l.players[winnerID]
	}

	totalKills := 0
	for _, id := range l.order {
		totalKills += l.players[id].Kills
	}

	var winnerInfo interface{}
	if winner != nil {
		winnerInfo = winner.PublicInfo()
	}

	l.log.WithFields(logrus.Fields{"lobby": l.ID, "state": l.state}).Info("game ended")

	l.broadcastUnsafe(map[string]interface{}{
		"type":     protocol.MsgGameEnded,
		"winner":   winnerInfo,
		"rankings": l.rankingsUnsafe(),
		"gameStats": map[string]interface{}{
			"duration":   time.Since(l.gameStartTime).Milliseconds(),
			"totalKills": totalKills,
			"foodEaten":  l.foodEaten,
		},
		"timestamp": time.Now().UnixMilli(),
	}, "")

	l.resetTimer = time.AfterFunc(l.ResetDelay, l.ResetLobby)
}

// ResetLobby clears the world and returns every player to the waiting room.
func (l *Lobby) ResetLobby() {
	l.mu.Lock()
	if l.state != StateFinished {
		l.mu.Unlock()
		return
	}
	l.food = nil
	l.weapons = nil
	for _, id := range l.order {
		l.players[id].ResetForLobby()
	}
	l.state = StateWaiting

	l.broadcastUnsafe(map[string]interface{}{
		"type":      protocol.MsgLobbyReset,
		"lobby":     l.summaryUnsafe(),
		"timestamp": time.Now().UnixMilli(),
	}, "")
	l.mu.Unlock()
}

// rankingsUnsafe orders players: alive first, then score, then kills.
// Ties keep join order.
func (l *Lobby) rankingsUnsafe() []map[string]interface{} {
	ranked := make([]*game.Player, 0, len(l.order))
	for _, id := range l.order {
		ranked = append(ranked, l.players[id])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Alive != b.Alive {
			return a.Alive
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Kills > b.Kills
	})

	out := make([]map[string]interface{}, 0, len(ranked))
	for i, p := range ranked {
		info := p.PublicInfo()
		info["rank"] = i + 1
		out = append(out, info)
	}
	return out
}

// BroadcastChat fans a chat line out to every member.
func (l *Lobby) BroadcastChat(sender *game.Player, message string) {
	l.mu.Lock()
	l.broadcastUnsafe(map[string]interface{}{
		"type":      protocol.MsgChatMessage,
		"playerId":  sender.ID,
		"name":      sender.Name,
		"message":   message,
		"timestamp": time.Now().UnixMilli(),
	}, "")
	l.mu.Unlock()
}

// RenamePlayer applies a name change under the lobby lock, so broadcasts
// running on the tick goroutine never read a half-written name, and tells
// the peers. Members' names are only ever written through here.
func (l *Lobby) RenamePlayer(p *game.Player, name string) {
	l.mu.Lock()
	oldName := p.Name
	p.Name = name
	l.broadcastUnsafe(map[string]interface{}{
		"type":      protocol.MsgPlayerNameChanged,
		"playerId":  p.ID,
		"oldName":   oldName,
		"name":      name,
		"timestamp": time.Now().UnixMilli(),
	}, "")
	l.mu.Unlock()
}

// UpdateSettings merges a settings patch. Creator-only, waiting state only.
func (l *Lobby) UpdateSettings(requesterID string, patch game.SettingsPatch) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if requesterID != l.createdBy {
		return fmt.Errorf("only the lobby creator can change settings")
	}
	if l.state != StateWaiting {
		return fmt.Errorf("settings can only change while waiting")
	}

	l.settings.Apply(patch)
	l.broadcastUnsafe(map[string]interface{}{
		"type":      protocol.MsgLobbySettingsUpdated,
		"settings":  l.settings,
		"timestamp": time.Now().UnixMilli(),
	}, "")
	return nil
}

// HandleDirection applies a direction change immediately. Reversals and
// non-unit vectors are rejected; later accepted updates within a tick
// overwrite earlier ones.
func (l *Lobby) HandleDirection(playerID string, d game.Direction) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.players[playerID]
	if !ok || !p.Alive || l.state != StatePlaying {
		return
	}
	if !d.IsUnit() || d == p.Direction.Opposite() {
		return
	}
	p.Direction = d
}

// Broadcast sends one message to every member, optionally excluding one.
func (l *Lobby) Broadcast(msg map[string]interface{}, exceptID string) {
	l.mu.Lock()
	l.broadcastUnsafe(msg, exceptID)
	l.mu.Unlock()
}

// broadcastUnsafe writes to every member's sink. Writes never block; a
// failing session is left for the idle sweeper.
func (l *Lobby) broadcastUnsafe(msg map[string]interface{}, exceptID string) {
	if msgType, ok := msg["type"].(string); ok {
		metrics.BroadcastsSent.WithLabelValues(msgType).Inc()
	}
	for _, id := range l.order {
		if id == exceptID {
			continue
		}
		l.players[id].Write(msg)
	}
}

// Summary is the public listing payload.
func (l *Lobby) Summary() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.summaryUnsafe()
}

func (l *Lobby) summaryUnsafe() map[string]interface{} {
	return map[string]interface{}{
		"id":           l.ID,
		"name":         l.Name,
		"maxPlayers":   l.MaxPlayers,
		"playerCount":  len(l.players),
		"isPrivate":    l.IsPrivate,
		"gameState":    l.state,
		"createdBy":    l.createdBy,
		"createdAt":    l.CreatedAt.UnixMilli(),
		"gameSettings": l.settings,
	}
}

// Detail is the payload sent to a player on join: summary plus the member
// list in join order.
func (l *Lobby) Detail() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	players := make([]map[string]interface{}, 0, len(l.order))
	for _, id := range l.order {
		players = append(players, l.players[id].PublicInfo())
	}
	detail := l.summaryUnsafe()
	detail["players"] = players
	return detail
}

// Stop cancels every timer and the tick loop. Called when the lobby is
// destroyed.
func (l *Lobby) Stop() {
	l.mu.Lock()
	l.stopTimersUnsafe()
	l.mu.Unlock()
}

func (l *Lobby) stopTimersUnsafe() {
	if l.tickStop != nil {
		close(l.tickStop)
		l.tickStop = nil
		metrics.ActiveGames.Dec()
	}
	l.cancelAutoStartUnsafe()
	l.cancelCountdownUnsafe()
	if l.resetTimer != nil {
		l.resetTimer.Stop()
		l.resetTimer = nil
	}
	for _, id := range l.order {
		l.players[id].StopEffectTimers()
	}
}

func (l *Lobby) cancelAutoStartUnsafe() {
	if l.autoStartTimer != nil {
		l.autoStartTimer.Stop()
		l.autoStartTimer = nil
	}
}

func (l *Lobby) cancelCountdownUnsafe() {
	for _, t := range l.countdownTimers {
		t.Stop()
	}
	l.countdownTimers = nil
}

func (l *Lobby) aliveCountUnsafe() int {
	n := 0
	for _, id := range l.order {
		if l.players[id].Alive {
			n++
		}
	}
	return n
}

// assignColorUnsafe gives the joining player the first palette color no
// current member uses.
func (l *Lobby) assignColorUnsafe(p *game.Player) {
	used := make(map[string]bool, len(l.players))
	for _, id := range l.order {
		used[l.players[id].Color] = true
	}
	for _, c := range game.DefaultPalette {
		if !used[c] {
			p.Color = c
			return
		}
	}
	p.Color = game.DefaultPalette[len(l.players)%len(game.DefaultPalette)]
}
