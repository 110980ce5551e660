// internal/protocol/protocol.go
package protocol

import (
	"encoding/json"

	"github.com/slithercade/server/internal/game"
)

// Inbound is the envelope for every client frame.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client -> server command types.
const (
	CmdConnectPlayer       = "connect_player"
	CmdUpdatePlayerName    = "update_player_name"
	CmdCreateLobby         = "create_lobby"
	CmdJoinLobby           = "join_lobby"
	CmdLeaveLobby          = "leave_lobby"
	CmdSetReady            = "set_ready"
	CmdPlayerInput         = "player_input"
	CmdChatMessage         = "chat_message"
	CmdGetLobbies          = "get_lobbies"
	CmdGetPlayerStats      = "get_player_stats"
	CmdUpdateLobbySettings = "update_lobby_settings"
)

// Server -> client message types.
const (
	MsgWelcome              = "welcome"
	MsgPlayerInfo           = "player_info"
	MsgConnectionConfirmed  = "connection_confirmed"
	MsgLobbiesList          = "lobbies_list"
	MsgLobbyCreated         = "lobby_created"
	MsgLobbyJoined          = "lobby_joined"
	MsgLobbyLeft            = "lobby_left"
	MsgLobbyReset           = "lobby_reset"
	MsgLobbySettingsUpdated = "lobby_settings_updated"
	MsgPlayerJoined         = "player_joined"
	MsgPlayerLeft           = "player_left"
	MsgPlayerReadyChanged   = "player_ready_changed"
	MsgPlayerNameChanged    = "player_name_changed"
	MsgGameStarting         = "game_starting"
	MsgCountdown            = "countdown"
	MsgGameStarted          = "game_started"
	MsgGameUpdate           = "game_update"
	MsgGameEnded            = "game_ended"
	MsgKilled               = "killed"
	MsgKillAwarded          = "kill_awarded"
	MsgWeaponAcquired       = "weapon_acquired"
	MsgChatMessage          = "chat_message"
	MsgNameUpdated          = "name_updated"
	MsgPlayerStats          = "player_stats"
	MsgServerShutdown       = "server_shutdown"
	MsgError                = "error"
)

// Player input sub-types.
const (
	InputDirection = "direction"
	InputUseWeapon = "use_weapon"
)

// ConnectPlayerData names the player on first contact.
type ConnectPlayerData struct {
	Name string `json:"name"`
}

// UpdateNameData renames the player.
type UpdateNameData struct {
	Name string `json:"name"`
}

// CreateLobbyData creates a room; zero values fall back to defaults.
type CreateLobbyData struct {
	Name         string              `json:"name"`
	MaxPlayers   int                 `json:"maxPlayers"`
	IsPrivate    bool                `json:"isPrivate"`
	Password     string              `json:"password"`
	GameSettings *game.SettingsPatch `json:"gameSettings"`
}

// JoinLobbyData joins an existing room.
type JoinLobbyData struct {
	LobbyID  string `json:"lobbyId"`
	Password string `json:"password"`
}

// SetReadyData flips the readiness flag.
type SetReadyData struct {
	Ready bool `json:"ready"`
}

// PlayerInputData is an in-game action: a direction change or a weapon use.
type PlayerInputData struct {
	Type      string          `json:"type"`
	Direction *game.Direction `json:"direction,omitempty"`
}

// ChatData is a lobby chat line.
type ChatData struct {
	Message string `json:"message"`
}

// UpdateSettingsData merges new settings into a waiting lobby.
type UpdateSettingsData struct {
	Settings game.SettingsPatch `json:"settings"`
}
