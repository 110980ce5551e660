// internal/game/items.go
package game

// Food is a consumable board item worth Value points on pickup.
type Food struct {
	ID    string `json:"id"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Type  string `json:"type"`
	Value int    `json:"value"`
}

// WeaponItem is a weapon pickup lying on the board. Type is a key into the
// weapon catalog.
type WeaponItem struct {
	ID   string `json:"id"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Type string `json:"type"`
}

// Pos returns the item's cell.
func (f Food) Pos() Position { return Position{X: f.X, Y: f.Y} }

// Pos returns the item's cell.
func (w WeaponItem) Pos() Position { return Position{X: w.X, Y: w.Y} }
