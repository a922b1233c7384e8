package main

import (
	"fmt"
	"time"
)

// Game mode and board size identifiers accepted from clients.
const (
	BoardSmall  = "small"
	BoardMedium = "medium"
	BoardLarge  = "large"

	ModeClassic      = "classic"
	ModeBattleRoyale = "battle-royale"
)

// boardTiles maps a board-size class to tiles per axis.
var boardTiles = map[string]int{
	BoardSmall:  20,
	BoardMedium: 30,
	BoardLarge:  40,
}

// GameSettings is the per-room game configuration chosen by the host.
type GameSettings struct {
	MaxPlayers int    `json:"maxPlayers"`
	GameSpeed  int    `json:"gameSpeed"`
	BoardSize  string `json:"boardSize"`
	GameMode   string `json:"gameMode"`
	Is3D       bool   `json:"is3D"`
}

// DefaultGameSettings are applied when a room is created without explicit
// settings.
func DefaultGameSettings() GameSettings {
	return GameSettings{
		MaxPlayers: 4,
		GameSpeed:  3,
		BoardSize:  BoardMedium,
		GameMode:   ModeClassic,
	}
}

// Validate checks the client-supplied ranges. The returned error message is
// safe to surface to the originating client.
func (s GameSettings) Validate() error {
	if s.MaxPlayers < 2 || s.MaxPlayers > 4 {
		return fmt.Errorf("max players must be between 2 and 4")
	}
	if s.GameSpeed < 1 || s.GameSpeed > 5 {
		return fmt.Errorf("invalid game speed")
	}
	if _, ok := boardTiles[s.BoardSize]; !ok {
		return fmt.Errorf("invalid board size")
	}
	if s.GameMode != ModeClassic && s.GameMode != ModeBattleRoyale {
		return fmt.Errorf("invalid game mode")
	}
	return nil
}

// Board returns the grid for these settings. 2D boards get depth 1.
func (s GameSettings) Board() Board {
	tiles := boardTiles[s.BoardSize]
	depth := 1
	if s.Is3D {
		depth = tiles
	}
	return Board{Width: tiles, Height: tiles, Depth: depth}
}

// TickInterval derives the simulation step from the speed tier. The 3D
// variant runs slightly slower to match its visual pacing, and both are
// clamped at a lower bound so speed 5 cannot produce a runaway rate.
func (s GameSettings) TickInterval() time.Duration {
	var ms int
	if s.Is3D {
		ms = maxInt(150, 400-s.GameSpeed*50)
	} else {
		ms = maxInt(100, 300-s.GameSpeed*40)
	}
	return time.Duration(ms) * time.Millisecond
}

// InitialFoodCount is the food seeded at game start.
func (s GameSettings) InitialFoodCount() int {
	if s.Is3D {
		return 5
	}
	return 3
}
