// internal/game/board.go
package game

// Position is a cell on the square board. Origin is the top-left corner;
// positive Y grows downward.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Direction is a unit vector. The zero value means "no direction".
type Direction struct {
	X int `json:"x"`
	Y int `json:"y"`
}

var (
	DirRight = Direction{X: 1, Y: 0}
	DirLeft  = Direction{X: -1, Y: 0}
	DirDown  = Direction{X: 0, Y: 1}
	DirUp    = Direction{X: 0, Y: -1}
)

// IsUnit reports whether d is one of the four cardinal unit vectors.
func (d Direction) IsUnit() bool {
	return d == DirRight || d == DirLeft || d == DirDown || d == DirUp
}

// Opposite returns the 180° reversal of d.
func (d Direction) Opposite() Direction {
	return Direction{X: -d.X, Y: -d.Y}
}

// Add returns p shifted one cell along d.
func (p Position) Add(d Direction) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

// InBounds reports whether p lies within a boardSize x boardSize grid.
func (p Position) InBounds(boardSize int) bool {
	return p.X >= 0 && p.X < boardSize && p.Y >= 0 && p.Y < boardSize
}

// DefaultPalette is the fixed set of player colors. Read-only.
var DefaultPalette = []string{
	"#e74c3c", // red
	"#3498db", // blue
	"#2ecc71", // green
	"#f1c40f", // yellow
	"#9b59b6", // purple
	"#e67e22", // orange
	"#1abc9c", // teal
	"#fd79a8", // pink
}
