package main

// Vec is an integer grid coordinate. Z stays 0 for 2D games so one state
// shape serves both board variants on the wire.
type Vec struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Add returns v translated by d.
func (v Vec) Add(d Vec) Vec {
	return Vec{X: v.X + d.X, Y: v.Y + d.Y, Z: v.Z + d.Z}
}

// Manhattan returns the L1 distance between two cells.
func (v Vec) Manhattan(o Vec) int {
	return absInt(v.X-o.X) + absInt(v.Y-o.Y) + absInt(v.Z-o.Z)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Direction is an axis-aligned heading. The string values are the wire
// representation expected by clients.
type Direction string

const (
	DirUp       Direction = "up"
	DirDown     Direction = "down"
	DirLeft     Direction = "left"
	DirRight    Direction = "right"
	DirForward  Direction = "forward"
	DirBackward Direction = "backward"
	DirNone     Direction = ""
)

var directions2D = []Direction{DirUp, DirDown, DirLeft, DirRight}
var directions3D = []Direction{DirUp, DirDown, DirLeft, DirRight, DirForward, DirBackward}

var directionVectors = map[Direction]Vec{
	DirUp:       {Y: -1},
	DirDown:     {Y: 1},
	DirLeft:     {X: -1},
	DirRight:    {X: 1},
	DirForward:  {Z: 1},
	DirBackward: {Z: -1},
}

var oppositeDirections = map[Direction]Direction{
	DirUp:       DirDown,
	DirDown:     DirUp,
	DirLeft:     DirRight,
	DirRight:    DirLeft,
	DirForward:  DirBackward,
	DirBackward: DirForward,
}

// Vector returns the unit step for the direction.
func (d Direction) Vector() Vec {
	return directionVectors[d]
}

// Opposite returns the 180-degree reversal of the direction.
func (d Direction) Opposite() Direction {
	return oppositeDirections[d]
}

// Valid reports whether d names a heading legal on a board with the given
// dimensionality.
func (d Direction) Valid(is3D bool) bool {
	switch d {
	case DirUp, DirDown, DirLeft, DirRight:
		return true
	case DirForward, DirBackward:
		return is3D
	}
	return false
}

// DirectionsFor returns the axis directions available on a 2D or 3D board.
func DirectionsFor(is3D bool) []Direction {
	if is3D {
		return directions3D
	}
	return directions2D
}

// Board describes the playable grid. Depth is 1 for 2D boards, which forces
// every in-bounds cell to z=0 and keeps bounds checks dimension-generic.
type Board struct {
	Width  int
	Height int
	Depth  int
}

// Contains reports whether the cell lies inside the board.
func (b Board) Contains(p Vec) bool {
	return p.X >= 0 && p.X < b.Width &&
		p.Y >= 0 && p.Y < b.Height &&
		p.Z >= 0 && p.Z < b.Depth
}

// Center returns the middle cell of the board.
func (b Board) Center() Vec {
	return Vec{X: b.Width / 2, Y: b.Height / 2, Z: b.Depth / 2}
}

// WallDistance returns the distance from p to the nearest board face.
func (b Board) WallDistance(p Vec) int {
	d := minInt(p.X, b.Width-1-p.X)
	d = minInt(d, minInt(p.Y, b.Height-1-p.Y))
	if b.Depth > 1 {
		d = minInt(d, minInt(p.Z, b.Depth-1-p.Z))
	}
	return d
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
