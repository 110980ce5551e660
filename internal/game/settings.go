// internal/game/settings.go
package game

import "time"

// Win condition identifiers.
const (
	WinLastStanding = "last_standing"
	WinTimeLimit    = "time_limit"
)

// GameSettings holds the per-lobby tunables. All durations are milliseconds
// on the wire to match the client.
type GameSettings struct {
	BoardSize      int    `json:"boardSize"`
	GameSpeed      int    `json:"gameSpeed"` // ms per tick
	WeaponsEnabled bool   `json:"weaponsEnabled"`
	MaxGameTime    int    `json:"maxGameTime"` // ms
	WinCondition   string `json:"winCondition"`
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	BoardSize      *int    `json:"boardSize,omitempty"`
	GameSpeed      *int    `json:"gameSpeed,omitempty"`
	WeaponsEnabled *bool   `json:"weaponsEnabled,omitempty"`
	MaxGameTime    *int    `json:"maxGameTime,omitempty"`
	WinCondition   *string `json:"winCondition,omitempty"`
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() GameSettings {
	return GameSettings{
		BoardSize:      20,
		GameSpeed:      150,
		WeaponsEnabled: true,
		MaxGameTime:    300000,
		WinCondition:   WinLastStanding,
	}
}

// Apply merges a patch into s and re-normalizes.
func (s *GameSettings) Apply(p SettingsPatch) {
	if p.BoardSize != nil {
		s.BoardSize = *p.BoardSize
	}
	if p.GameSpeed != nil {
		s.GameSpeed = *p.GameSpeed
	}
	if p.WeaponsEnabled != nil {
		s.WeaponsEnabled = *p.WeaponsEnabled
	}
	if p.MaxGameTime != nil {
		s.MaxGameTime = *p.MaxGameTime
	}
	if p.WinCondition != nil {
		s.WinCondition = *p.WinCondition
	}
	s.Normalize()
}

// Normalize clamps every field to its allowed range.
func (s *GameSettings) Normalize() {
	s.BoardSize = clamp(s.BoardSize, 10, 40)
	s.GameSpeed = clamp(s.GameSpeed, 50, 500)
	if s.MaxGameTime <= 0 {
		s.MaxGameTime = 300000
	}
	if s.WinCondition != WinLastStanding && s.WinCondition != WinTimeLimit {
		s.WinCondition = WinLastStanding
	}
}

// TickPeriod is the simulation step interval.
func (s GameSettings) TickPeriod() time.Duration {
	return time.Duration(s.GameSpeed) * time.Millisecond
}

// MaxGameDuration is the time-limit win threshold.
func (s GameSettings) MaxGameDuration() time.Duration {
	return time.Duration(s.MaxGameTime) * time.Millisecond
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
