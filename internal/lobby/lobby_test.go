// internal/lobby/lobby_test.go
package lobby

import (
	"fmt"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slithercade/server/internal/game"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestLobby builds a lobby with n members, short lifecycle timers, and a
// seeded rng.
func newTestLobby(t *testing.T, n int) (*Lobby, []*game.Player) {
	t.Helper()
	l := New("test room", 8, false, "", game.DefaultSettings(), testLogger())
	l.AutoStartDelay = 30 * time.Millisecond
	l.ResetDelay = 40 * time.Millisecond
	l.CountdownTick = 10 * time.Millisecond
	l.rng = rand.New(rand.NewSource(7))
	t.Cleanup(l.Stop)

	players := make([]*game.Player, n)
	for i := 0; i < n; i++ {
		p := game.NewPlayer(fmt.Sprintf("player-%d", i))
		require.NoError(t, l.AddPlayer(p))
		players[i] = p
	}
	return l, players
}

// startPlaying forces the lobby straight into the playing state without the
// countdown, so tests can drive Tick directly.
func startPlaying(l *Lobby) {
	l.mu.Lock()
	l.state = StatePlaying
	l.gameStartTime = time.Now()
	l.food = []game.Food{}
	l.weapons = []game.WeaponItem{}
	l.mu.Unlock()
}

// setSnake installs a snake for a player; the first cell is the head.
func setSnake(p *game.Player, dir game.Direction, cells ...game.Position) {
	p.Snake = cells
	p.Direction = dir
	p.Alive = true
}

// drain empties the player's sink and returns all buffered messages.
func drain(p *game.Player) []map[string]interface{} {
	var msgs []map[string]interface{}
	for {
		select {
		case msg := <-p.Out:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

// findMsg returns the first buffered message of the given type, or nil.
func findMsg(msgs []map[string]interface{}, msgType string) map[string]interface{} {
	for _, m := range msgs {
		if m["type"] == msgType {
			return m
		}
	}
	return nil
}

func TestAddPlayerRejectsWhenFull(t *testing.T) {
	l := New("small", 2, false, "", game.DefaultSettings(), testLogger())
	t.Cleanup(l.Stop)

	require.NoError(t, l.AddPlayer(game.NewPlayer("a")))
	require.NoError(t, l.AddPlayer(game.NewPlayer("b")))
	assert.Error(t, l.AddPlayer(game.NewPlayer("c")))
}

func TestAddPlayerRejectsDuringGame(t *testing.T) {
	l, _ := newTestLobby(t, 2)
	startPlaying(l)
	assert.Error(t, l.AddPlayer(game.NewPlayer("late")))
}

func TestCreatorIsFirstMemberAndHandsOver(t *testing.T) {
	l, players := newTestLobby(t, 3)
	assert.Equal(t, players[0].ID, l.CreatedBy())

	l.RemovePlayer(players[0].ID)
	// Ownership passes to the next player in join order, who must still be
	// a member.
	assert.Equal(t, players[1].ID, l.CreatedBy())
	l.mu.Lock()
	_, member := l.players[l.createdBy]
	l.mu.Unlock()
	assert.True(t, member)
}

func TestRemoveLastAlivePlayerEndsGame(t *testing.T) {
	l, players := newTestLobby(t, 2)
	startPlaying(l)
	setSnake(players[0], game.DirRight, game.Position{X: 5, Y: 5})
	setSnake(players[1], game.DirRight, game.Position{X: 5, Y: 10})

	l.RemovePlayer(players[0].ID)
	assert.Equal(t, StateFinished, l.State())
}

func TestPlayerJoinedBroadcastExcludesJoiner(t *testing.T) {
	l, players := newTestLobby(t, 1)
	drain(players[0])

	p := game.NewPlayer("newcomer")
	require.NoError(t, l.AddPlayer(p))

	assert.NotNil(t, findMsg(drain(players[0]), "player_joined"))
	assert.Nil(t, findMsg(drain(p), "player_joined"))
}

func TestAutoStartFiresAfterDelay(t *testing.T) {
	l, players := newTestLobby(t, 2)
	l.SetPlayerReady(players[0].ID, true)
	l.SetPlayerReady(players[1].ID, true)

	assert.Equal(t, StateWaiting, l.State())
	require.Eventually(t, func() bool {
		s := l.State()
		return s == StateStarting || s == StatePlaying
	}, time.Second, 5*time.Millisecond)
}

func TestAutoStartCancelledByUnready(t *testing.T) {
	l, players := newTestLobby(t, 2)
	l.SetPlayerReady(players[0].ID, true)
	l.SetPlayerReady(players[1].ID, true)

	// Unready before the 2s (shortened) delay elapses: the start attempt
	// must re-check preconditions and do nothing.
	time.Sleep(10 * time.Millisecond)
	l.SetPlayerReady(players[1].ID, false)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StateWaiting, l.State())
}

func TestAutoStartCancelledByLeave(t *testing.T) {
	l, players := newTestLobby(t, 2)
	l.SetPlayerReady(players[0].ID, true)
	l.SetPlayerReady(players[1].ID, true)

	time.Sleep(10 * time.Millisecond)
	l.RemovePlayer(players[1].ID)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StateWaiting, l.State())
}

func TestStartGameCountdownReachesPlaying(t *testing.T) {
	l, players := newTestLobby(t, 2)
	for _, p := range players {
		p.Ready = true
	}

	l.StartGame()
	assert.Equal(t, StateStarting, l.State())

	require.Eventually(t, func() bool {
		return l.State() == StatePlaying
	}, time.Second, 5*time.Millisecond)

	// Tick handle is live only while playing.
	l.mu.Lock()
	assert.NotNil(t, l.tickStop)
	l.mu.Unlock()

	for _, p := range players {
		msgs := drain(p)
		assert.NotNil(t, findMsg(msgs, "game_starting"))
		assert.NotNil(t, findMsg(msgs, "game_started"))
	}
}

func TestStartGamePlacesSnakesInsideMargin(t *testing.T) {
	l, players := newTestLobby(t, 4)
	for _, p := range players {
		p.Ready = true
	}
	l.StartGame()

	size := l.Settings().BoardSize
	for _, p := range players {
		require.Len(t, p.Snake, 3)
		assert.Equal(t, game.DirRight, p.Direction)
		for _, seg := range p.Snake {
			assert.GreaterOrEqual(t, seg.X, 3)
			assert.LessOrEqual(t, seg.X, size-4)
			assert.GreaterOrEqual(t, seg.Y, 3)
			assert.LessOrEqual(t, seg.Y, size-4)
		}
	}

	l.mu.Lock()
	assert.Len(t, l.food, initialFoodCount)
	assert.Len(t, l.weapons, initialWeaponCount)
	l.mu.Unlock()
}

func TestGameEndThenResetReturnsToWaiting(t *testing.T) {
	l, players := newTestLobby(t, 2)
	startPlaying(l)
	setSnake(players[0], game.DirRight, game.Position{X: 5, Y: 5}, game.Position{X: 4, Y: 5})
	setSnake(players[1], game.DirRight, game.Position{X: 5, Y: 10}, game.Position{X: 4, Y: 10})
	players[0].Ready = true
	players[1].Ready = true

	l.mu.Lock()
	l.players[players[0].ID].Alive = false
	l.endGameUnsafe()
	l.mu.Unlock()
	require.Equal(t, StateFinished, l.State())

	require.Eventually(t, func() bool {
		return l.State() == StateWaiting
	}, time.Second, 5*time.Millisecond)

	for _, p := range players {
		assert.Nil(t, p.Snake)
		assert.False(t, p.Ready)
		assert.True(t, p.Alive)
	}
}

func TestWinnerGetsGamesWon(t *testing.T) {
	l, players := newTestLobby(t, 2)
	startPlaying(l)
	setSnake(players[0], game.DirRight, game.Position{X: 5, Y: 5})
	setSnake(players[1], game.DirRight, game.Position{X: 5, Y: 10})
	players[0].Alive = false

	l.mu.Lock()
	l.endGameUnsafe()
	l.mu.Unlock()

	assert.Equal(t, 1, players[1].GamesWon)
	assert.Zero(t, players[0].GamesWon)

	ended := findMsg(drain(players[1]), "game_ended")
	require.NotNil(t, ended)
	winner, ok := ended["winner"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, players[1].ID, winner["id"])
}

func TestRankingsOrder(t *testing.T) {
	l, players := newTestLobby(t, 4)
	a, b, c, d := players[0], players[1], players[2], players[3]

	a.Alive = false
	a.Score = 500
	b.Alive = true
	b.Score = 10
	c.Alive = true
	c.Score = 10
	c.Kills = 2
	d.Alive = false
	d.Score = 500

	l.mu.Lock()
	ranked := l.rankingsUnsafe()
	l.mu.Unlock()

	// Alive before dead; then score; then kills; ties keep join order.
	assert.Equal(t, c.ID, ranked[0]["id"])
	assert.Equal(t, b.ID, ranked[1]["id"])
	assert.Equal(t, a.ID, ranked[2]["id"]) // joins before d
	assert.Equal(t, d.ID, ranked[3]["id"])
	assert.Equal(t, 1, ranked[0]["rank"])
}

func TestUpdateSettingsCreatorOnlyWhileWaiting(t *testing.T) {
	l, players := newTestLobby(t, 2)

	board := 30
	err := l.UpdateSettings(players[1].ID, game.SettingsPatch{BoardSize: &board})
	assert.Error(t, err)

	require.NoError(t, l.UpdateSettings(players[0].ID, game.SettingsPatch{BoardSize: &board}))
	assert.Equal(t, 30, l.Settings().BoardSize)
	assert.NotNil(t, findMsg(drain(players[1]), "lobby_settings_updated"))

	startPlaying(l)
	assert.Error(t, l.UpdateSettings(players[0].ID, game.SettingsPatch{BoardSize: &board}))
}

func TestBroadcastChat(t *testing.T) {
	l, players := newTestLobby(t, 2)
	drain(players[1])

	l.BroadcastChat(players[0], "good luck")

	msg := findMsg(drain(players[1]), "chat_message")
	require.NotNil(t, msg)
	assert.Equal(t, "good luck", msg["message"])
	assert.Equal(t, players[0].Name, msg["name"])
	assert.NotNil(t, msg["timestamp"])
}

func TestCheckPassword(t *testing.T) {
	l := New("secret", 4, true, "hunter2", game.DefaultSettings(), testLogger())
	t.Cleanup(l.Stop)

	assert.True(t, l.CheckPassword("hunter2"))
	assert.False(t, l.CheckPassword("wrong"))

	open := New("open", 4, false, "", game.DefaultSettings(), testLogger())
	t.Cleanup(open.Stop)
	assert.True(t, open.CheckPassword("anything"))
}
