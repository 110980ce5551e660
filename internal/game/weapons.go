// internal/game/weapons.go
package game

import (
	"math/rand"
	"time"
)

// Weapon type keys.
const (
	WeaponSpeedBoost  = "speed_boost"
	WeaponShield      = "shield"
	WeaponGhost       = "ghost"
	WeaponDoubleScore = "double_score"
	WeaponFoodBomb    = "food_bomb"
	WeaponTeleport    = "teleport"
	WeaponLaser       = "laser"
	WeaponShrink      = "shrink"
	WeaponFreeze      = "freeze"
	WeaponMagnet      = "magnet"
)

// Rarity tiers, weighted 50/30/15/5.
const (
	RarityCommon    = "common"
	RarityUncommon  = "uncommon"
	RarityRare      = "rare"
	RarityLegendary = "legendary"
)

// WeaponDef is one immutable catalog entry.
type WeaponDef struct {
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Duration    time.Duration `json:"-"`
	Effect      string        `json:"effect"`
	Color       string        `json:"color"`
	Icon        string        `json:"icon"`
	Rarity      string        `json:"rarity"`
}

// Catalog is the full weapon table, keyed by type. Immutable after init.
var Catalog = map[string]WeaponDef{
	WeaponSpeedBoost: {
		Name:        "Speed Boost",
		Type:        WeaponSpeedBoost,
		Description: "Move 50% faster for a short time",
		Duration:    5 * time.Second,
		Effect:      "speed",
		Color:       "#00d2ff",
		Icon:        "⚡",
		Rarity:      RarityCommon,
	},
	WeaponShield: {
		Name:        "Shield",
		Type:        WeaponShield,
		Description: "Survive snake collisions",
		Duration:    5 * time.Second,
		Effect:      "invincible",
		Color:       "#ffd700",
		Icon:        "🛡",
		Rarity:      RarityUncommon,
	},
	WeaponGhost: {
		Name:        "Ghost",
		Type:        WeaponGhost,
		Description: "Phase through snakes",
		Duration:    4 * time.Second,
		Effect:      "phase",
		Color:       "#b2bec3",
		Icon:        "👻",
		Rarity:      RarityRare,
	},
	WeaponDoubleScore: {
		Name:        "Double Score",
		Type:        WeaponDoubleScore,
		Description: "Food is worth twice as much",
		Duration:    8 * time.Second,
		Effect:      "score",
		Color:       "#55efc4",
		Icon:        "✨",
		Rarity:      RarityUncommon,
	},
	WeaponFoodBomb: {
		Name:        "Food Bomb",
		Type:        WeaponFoodBomb,
		Description: "Scatter food around your head",
		Effect:      "spawn",
		Color:       "#ff7675",
		Icon:        "💣",
		Rarity:      RarityCommon,
	},
	WeaponTeleport: {
		Name:        "Teleport",
		Type:        WeaponTeleport,
		Description: "Jump to a random free cell",
		Effect:      "teleport",
		Color:       "#a29bfe",
		Icon:        "🌀",
		Rarity:      RarityRare,
	},
	WeaponLaser: {
		Name:        "Laser",
		Type:        WeaponLaser,
		Description: "Reserved",
		Effect:      "laser",
		Color:       "#d63031",
		Icon:        "🔫",
		Rarity:      RarityLegendary,
	},
	WeaponShrink: {
		Name:        "Shrink",
		Type:        WeaponShrink,
		Description: "Halve your own length",
		Effect:      "shrink",
		Color:       "#fab1a0",
		Icon:        "🔻",
		Rarity:      RarityCommon,
	},
	WeaponFreeze: {
		Name:        "Freeze",
		Type:        WeaponFreeze,
		Description: "Stop every opponent briefly",
		Duration:    3 * time.Second,
		Effect:      "freeze",
		Color:       "#74b9ff",
		Icon:        "❄",
		Rarity:      RarityRare,
	},
	WeaponMagnet: {
		Name:        "Magnet",
		Type:        WeaponMagnet,
		Description: "Reserved",
		Duration:    6 * time.Second,
		Effect:      "magnet",
		Color:       "#636e72",
		Icon:        "🧲",
		Rarity:      RarityUncommon,
	},
}

var rarityWeights = []struct {
	rarity string
	weight int
}{
	{RarityCommon, 50},
	{RarityUncommon, 30},
	{RarityRare, 15},
	{RarityLegendary, 5},
}

// weaponsByRarity is derived from Catalog at init, with deterministic
// ordering so a seeded rng gives reproducible picks.
var weaponsByRarity = map[string][]string{}

func init() {
	order := []string{
		WeaponSpeedBoost, WeaponShield, WeaponGhost, WeaponDoubleScore,
		WeaponFoodBomb, WeaponTeleport, WeaponLaser, WeaponShrink,
		WeaponFreeze, WeaponMagnet,
	}
	for _, typ := range order {
		def := Catalog[typ]
		weaponsByRarity[def.Rarity] = append(weaponsByRarity[def.Rarity], typ)
	}
}

// RandomWeapon picks a rarity by weight, then a weapon uniformly within
// that rarity.
func RandomWeapon(rng *rand.Rand) string {
	total := 0
	for _, rw := range rarityWeights {
		total += rw.weight
	}
	roll := rng.Intn(total)
	rarity := rarityWeights[len(rarityWeights)-1].rarity
	for _, rw := range rarityWeights {
		if roll < rw.weight {
			rarity = rw.rarity
			break
		}
		roll -= rw.weight
	}
	pool := weaponsByRarity[rarity]
	return pool[rng.Intn(len(pool))]
}
