// internal/session/manager.go
package session

import (
	"encoding/json"
	"runtime"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/slithercade/server/internal/config"
	"github.com/slithercade/server/internal/game"
	"github.com/slithercade/server/internal/lobby"
	"github.com/slithercade/server/internal/metrics"
	"github.com/slithercade/server/internal/protocol"
)

// Session binds a player to its transport: the cancel func tears down the
// connection's pumps, Close sends a close frame with a code and reason.
type Session struct {
	Player *game.Player
	Cancel func()
	Close  func(code websocket.StatusCode, reason string)
}

// Manager owns the process-wide session and lobby registries and routes
// every inbound command. Registry access is serialized by mu; per-lobby
// state is guarded by the lobby's own lock (always acquired after mu,
// never the other way around).
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	lobbies  map[string]*lobby.Lobby

	cfg       *config.Config
	log       *logrus.Logger
	startedAt time.Time

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// NewManager creates an empty manager.
func NewManager(cfg *config.Config, logger *logrus.Logger) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		lobbies:   make(map[string]*lobby.Lobby),
		cfg:       cfg,
		log:       logger,
		startedAt: time.Now(),
		sweepStop: make(chan struct{}),
	}
}

// Register adds a fresh session and greets the client.
func (m *Manager) Register(s *Session) {
	m.mu.Lock()
	m.sessions[s.Player.ID] = s
	m.mu.Unlock()

	metrics.ActiveConnections.Inc()
	metrics.TotalConnections.Inc()
	m.log.WithField("player", s.Player.ID).Info("session registered")

	s.Player.Write(map[string]interface{}{
		"type":      protocol.MsgWelcome,
		"playerId":  s.Player.ID,
		"name":      s.Player.Name,
		"color":     s.Player.Color,
		"timestamp": time.Now().UnixMilli(),
	})
	s.Player.Write(map[string]interface{}{
		"type":      protocol.MsgPlayerInfo,
		"player":    s.Player.StatsInfo(),
		"timestamp": time.Now().UnixMilli(),
	})
}

// Remove detaches a session from its lobby (if any) and drops it from the
// registry. Safe to call twice.
func (m *Manager) Remove(playerID string) {
	m.mu.Lock()
	s, ok := m.sessions[playerID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, playerID)
	m.detachFromLobbyLocked(s.Player)
	m.mu.Unlock()

	metrics.ActiveConnections.Dec()
	m.log.WithField("player", playerID).Info("session removed")
}

// detachFromLobbyLocked removes the player from its current lobby and
// destroys the lobby if that emptied it. Caller holds m.mu.
func (m *Manager) detachFromLobbyLocked(p *game.Player) {
	if p.LobbyID == "" {
		return
	}
	lob, ok := m.lobbies[p.LobbyID]
	p.LobbyID = ""
	if !ok {
		return
	}
	lob.RemovePlayer(p.ID)
	if lob.IsEmpty() {
		lob.Stop()
		delete(m.lobbies, lob.ID)
		metrics.ActiveLobbies.Dec()
		m.log.WithField("lobby", lob.ID).Info("empty lobby destroyed")
	}
}

// Handle decodes and dispatches one inbound frame. Every valid frame bumps
// the session's activity clock.
func (m *Manager) Handle(s *Session, raw []byte) {
	var in protocol.Inbound
	if err := json.Unmarshal(raw, &in); err != nil || in.Type == "" {
		s.Player.WriteError("Invalid message format")
		return
	}

	s.Player.Touch()
	metrics.MessagesReceived.WithLabelValues(in.Type).Inc()

	switch in.Type {
	case protocol.CmdConnectPlayer:
		m.handleConnectPlayer(s, in.Data)
	case protocol.CmdUpdatePlayerName:
		m.handleUpdateName(s, in.Data)
	case protocol.CmdCreateLobby:
		m.handleCreateLobby(s, in.Data)
	case protocol.CmdJoinLobby:
		m.handleJoinLobby(s, in.Data)
	case protocol.CmdLeaveLobby:
		m.handleLeaveLobby(s)
	case protocol.CmdSetReady:
		m.handleSetReady(s, in.Data)
	case protocol.CmdPlayerInput:
		m.handlePlayerInput(s, in.Data)
	case protocol.CmdChatMessage:
		m.handleChat(s, in.Data)
	case protocol.CmdGetLobbies:
		m.handleGetLobbies(s)
	case protocol.CmdGetPlayerStats:
		m.handleGetPlayerStats(s)
	case protocol.CmdUpdateLobbySettings:
		m.handleUpdateSettings(s, in.Data)
	default:
		s.Player.WriteError("Unknown command type: " + in.Type)
	}
}

func (m *Manager) handleConnectPlayer(s *Session, data json.RawMessage) {
	var d protocol.ConnectPlayerData
	_ = json.Unmarshal(data, &d)
	if game.ValidName(d.Name) {
		m.renamePlayer(s, d.Name)
	}
	s.Player.Write(map[string]interface{}{
		"type":      protocol.MsgConnectionConfirmed,
		"playerId":  s.Player.ID,
		"name":      s.Player.Name,
		"color":     s.Player.Color,
		"timestamp": time.Now().UnixMilli(),
	})
}

func (m *Manager) handleUpdateName(s *Session, data json.RawMessage) {
	var d protocol.UpdateNameData
	_ = json.Unmarshal(data, &d)
	if !game.ValidName(d.Name) {
		s.Player.WriteError("Name must be 1-20 printable characters")
		return
	}
	m.renamePlayer(s, d.Name)
	s.Player.Write(map[string]interface{}{
		"type":      protocol.MsgNameUpdated,
		"name":      d.Name,
		"timestamp": time.Now().UnixMilli(),
	})
}

// renamePlayer routes a name write through the player's lobby lock when one
// exists; the tick goroutine reads member names under that lock. Outside a
// lobby the read goroutine is the only accessor.
func (m *Manager) renamePlayer(s *Session, name string) {
	if lob := m.lobbyOf(s.Player); lob != nil {
		lob.RenamePlayer(s.Player, name)
		return
	}
	s.Player.Name = name
}

func (m *Manager) handleCreateLobby(s *Session, data json.RawMessage) {
	var d protocol.CreateLobbyData
	_ = json.Unmarshal(data, &d)

	m.mu.Lock()
	if s.Player.LobbyID != "" {
		m.mu.Unlock()
		s.Player.WriteError("Already in a lobby")
		return
	}

	settings := game.DefaultSettings()
	if d.GameSettings != nil {
		settings.Apply(*d.GameSettings)
	}

	lob := lobby.New(d.Name, d.MaxPlayers, d.IsPrivate, d.Password, settings, m.log)
	lob.AutoStartDelay = m.cfg.Lobby.AutoStartDelay
	lob.ResetDelay = m.cfg.Lobby.ResetDelay

	if err := lob.AddPlayer(s.Player); err != nil {
		m.mu.Unlock()
		s.Player.WriteError(err.Error())
		return
	}
	m.lobbies[lob.ID] = lob
	s.Player.LobbyID = lob.ID
	m.mu.Unlock()

	metrics.ActiveLobbies.Inc()
	m.log.WithFields(logrus.Fields{"lobby": lob.ID, "creator": s.Player.ID}).Info("lobby created")

	s.Player.Write(map[string]interface{}{
		"type":      protocol.MsgLobbyCreated,
		"lobby":     lob.Detail(),
		"timestamp": time.Now().UnixMilli(),
	})
}

func (m *Manager) handleJoinLobby(s *Session, data json.RawMessage) {
	var d protocol.JoinLobbyData
	_ = json.Unmarshal(data, &d)

	m.mu.Lock()
	if s.Player.LobbyID != "" {
		m.mu.Unlock()
		s.Player.WriteError("Already in a lobby")
		return
	}
	lob, ok := m.lobbies[d.LobbyID]
	if !ok {
		m.mu.Unlock()
		s.Player.WriteError("Lobby not found")
		return
	}
	if !lob.CheckPassword(d.Password) {
		m.mu.Unlock()
		s.Player.WriteError("Incorrect password")
		return
	}
	if err := lob.AddPlayer(s.Player); err != nil {
		m.mu.Unlock()
		s.Player.WriteError(err.Error())
		return
	}
	s.Player.LobbyID = lob.ID
	m.mu.Unlock()

	s.Player.Write(map[string]interface{}{
		"type":      protocol.MsgLobbyJoined,
		"lobby":     lob.Detail(),
		"timestamp": time.Now().UnixMilli(),
	})
}

func (m *Manager) handleLeaveLobby(s *Session) {
	m.mu.Lock()
	if s.Player.LobbyID == "" {
		m.mu.Unlock()
		s.Player.WriteError("Not in a lobby")
		return
	}
	lobbyID := s.Player.LobbyID
	m.detachFromLobbyLocked(s.Player)
	m.mu.Unlock()

	s.Player.Write(map[string]interface{}{
		"type":      protocol.MsgLobbyLeft,
		"lobbyId":   lobbyID,
		"timestamp": time.Now().UnixMilli(),
	})
}

func (m *Manager) handleSetReady(s *Session, data json.RawMessage) {
	var d protocol.SetReadyData
	_ = json.Unmarshal(data, &d)

	lob := m.lobbyOf(s.Player)
	if lob == nil {
		s.Player.WriteError("Not in a lobby")
		return
	}
	lob.SetPlayerReady(s.Player.ID, d.Ready)
}

func (m *Manager) handlePlayerInput(s *Session, data json.RawMessage) {
	var d protocol.PlayerInputData
	_ = json.Unmarshal(data, &d)

	lob := m.lobbyOf(s.Player)
	if lob == nil {
		s.Player.WriteError("Not in a lobby")
		return
	}

	switch d.Type {
	case protocol.InputDirection:
		if d.Direction != nil {
			lob.HandleDirection(s.Player.ID, *d.Direction)
		}
	case protocol.InputUseWeapon:
		lob.UseWeapon(s.Player.ID)
	default:
		s.Player.WriteError("Unknown input type: " + d.Type)
	}
}

func (m *Manager) handleChat(s *Session, data json.RawMessage) {
	var d protocol.ChatData
	_ = json.Unmarshal(data, &d)

	lob := m.lobbyOf(s.Player)
	if lob == nil {
		s.Player.WriteError("Not in a lobby")
		return
	}
	if d.Message == "" {
		return
	}
	lob.BroadcastChat(s.Player, d.Message)
}

func (m *Manager) handleGetLobbies(s *Session) {
	m.mu.Lock()
	lobs := make([]*lobby.Lobby, 0, len(m.lobbies))
	for _, lob := range m.lobbies {
		lobs = append(lobs, lob)
	}
	m.mu.Unlock()

	// Public listing: only public lobbies still waiting for players.
	list := make([]map[string]interface{}, 0, len(lobs))
	for _, lob := range lobs {
		if lob.IsPrivate || lob.State() != lobby.StateWaiting {
			continue
		}
		list = append(list, lob.Summary())
	}

	s.Player.Write(map[string]interface{}{
		"type":      protocol.MsgLobbiesList,
		"lobbies":   list,
		"timestamp": time.Now().UnixMilli(),
	})
}

func (m *Manager) handleGetPlayerStats(s *Session) {
	s.Player.Write(map[string]interface{}{
		"type":      protocol.MsgPlayerStats,
		"player":    s.Player.StatsInfo(),
		"server":    m.Stats(),
		"timestamp": time.Now().UnixMilli(),
	})
}

func (m *Manager) handleUpdateSettings(s *Session, data json.RawMessage) {
	var d protocol.UpdateSettingsData
	if err := json.Unmarshal(data, &d); err != nil {
		s.Player.WriteError("Invalid settings payload")
		return
	}

	lob := m.lobbyOf(s.Player)
	if lob == nil {
		s.Player.WriteError("Not in a lobby")
		return
	}
	if err := lob.UpdateSettings(s.Player.ID, d.Settings); err != nil {
		s.Player.WriteError(err.Error())
	}
}

// lobbyOf resolves the player's current lobby, or nil.
func (m *Manager) lobbyOf(p *game.Player) *lobby.Lobby {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.LobbyID == "" {
		return nil
	}
	return m.lobbies[p.LobbyID]
}

// Counts returns the registry sizes for the health endpoint.
func (m *Manager) Counts() (players, lobbies int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions), len(m.lobbies)
}

// Stats is the read-only server statistics payload.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.Lock()
	totalPlayers := len(m.sessions)
	totalLobbies := len(m.lobbies)
	activeGames := 0
	lobs := make([]*lobby.Lobby, 0, len(m.lobbies))
	for _, lob := range m.lobbies {
		lobs = append(lobs, lob)
	}
	m.mu.Unlock()

	for _, lob := range lobs {
		if lob.State() == lobby.StatePlaying {
			activeGames++
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return map[string]interface{}{
		"totalPlayers": totalPlayers,
		"totalLobbies": totalLobbies,
		"activeGames":  activeGames,
		"uptime":       time.Since(m.startedAt).Milliseconds(),
		"memoryUsage":  ms.HeapAlloc,
	}
}

// StartSweeper launches the periodic idle/empty sweep.
func (m *Manager) StartSweeper() {
	go func() {
		ticker := time.NewTicker(m.cfg.Session.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.sweepStop:
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// Sweep evicts sessions idle beyond the timeout and destroys empty lobbies.
func (m *Manager) Sweep() {
	cutoff := time.Now().Add(-m.cfg.Session.IdleTimeout)

	m.mu.Lock()
	var idle []*Session
	for _, s := range m.sessions {
		if s.Player.LastActivity().Before(cutoff) {
			idle = append(idle, s)
		}
	}
	for _, s := range idle {
		delete(m.sessions, s.Player.ID)
		m.detachFromLobbyLocked(s.Player)
	}
	var empty []*lobby.Lobby
	for id, lob := range m.lobbies {
		if lob.IsEmpty() {
			empty = append(empty, lob)
			delete(m.lobbies, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		m.log.WithField("player", s.Player.ID).Info("evicting idle session")
		metrics.ActiveConnections.Dec()
		metrics.IdleEvictions.Inc()
		if s.Close != nil {
			s.Close(websocket.StatusNormalClosure, "Inactive")
		}
		if s.Cancel != nil {
			s.Cancel()
		}
	}
	for _, lob := range empty {
		lob.Stop()
		metrics.ActiveLobbies.Dec()
		m.log.WithField("lobby", lob.ID).Info("swept empty lobby")
	}
}

// Shutdown notifies every session, stops every lobby, and closes all
// connections. Called once on process exit.
func (m *Manager) Shutdown() {
	m.sweepOnce.Do(func() { close(m.sweepStop) })

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	lobs := make([]*lobby.Lobby, 0, len(m.lobbies))
	for _, lob := range m.lobbies {
		lobs = append(lobs, lob)
	}
	m.sessions = make(map[string]*Session)
	m.lobbies = make(map[string]*lobby.Lobby)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Player.Write(map[string]interface{}{
			"type":      protocol.MsgServerShutdown,
			"timestamp": time.Now().UnixMilli(),
		})
	}
	for _, lob := range lobs {
		lob.Stop()
	}
	for _, s := range sessions {
		if s.Close != nil {
			s.Close(websocket.StatusNormalClosure, "Manual disconnect")
		}
		if s.Cancel != nil {
			s.Cancel()
		}
	}
	m.log.Info("session manager shut down")
}
