package main

// BoardIndex is a per-tick lookup structure over a game state: which cells
// living snakes occupy, where the living heads are, and where food sits.
// The engine rebuilds one at tick start so every collision check that tick
// sees the same pre-move board; the bot layer builds one per decision.
type BoardIndex struct {
	cells map[Vec]string // occupied cell -> player id
	heads map[string]Vec // living player id -> head cell
	food  map[Vec]bool
}

// NewBoardIndex builds the index from the given state. Only living snakes
// contribute occupancy and heads.
func NewBoardIndex(state *GameState) *BoardIndex {
	idx := &BoardIndex{
		cells: make(map[Vec]string),
		heads: make(map[string]Vec),
		food:  make(map[Vec]bool),
	}
	for _, p := range state.Players {
		if !p.Alive || len(p.Snake) == 0 {
			continue
		}
		idx.heads[p.ID] = p.Snake[0]
		for _, seg := range p.Snake {
			idx.cells[seg] = p.ID
		}
	}
	for _, f := range state.Food {
		idx.food[f] = true
	}
	return idx
}

// Occupied reports whether a living snake covers the cell.
func (idx *BoardIndex) Occupied(p Vec) bool {
	_, ok := idx.cells[p]
	return ok
}

// Blocked reports whether moving into the cell kills: off the board or into
// a living snake segment.
func (idx *BoardIndex) Blocked(b Board, p Vec) bool {
	return !b.Contains(p) || idx.Occupied(p)
}

// HasFood reports whether the cell holds food.
func (idx *BoardIndex) HasFood(p Vec) bool {
	return idx.food[p]
}

// NearestFood returns the food cell closest to from by Manhattan distance.
func (idx *BoardIndex) NearestFood(from Vec) (Vec, bool) {
	var best Vec
	bestDist := -1
	for f := range idx.food {
		d := from.Manhattan(f)
		if bestDist < 0 || d < bestDist {
			best, bestDist = f, d
		}
	}
	return best, bestDist >= 0
}

// EnemyHeads returns the head cells of living snakes other than excludeID.
func (idx *BoardIndex) EnemyHeads(excludeID string) map[string]Vec {
	out := make(map[string]Vec, len(idx.heads))
	for id, h := range idx.heads {
		if id != excludeID {
			out[id] = h
		}
	}
	return out
}

// FreeSpaceFrom counts empty cells reachable from start via breadth-first
// flood fill, capped at maxCells. The cap keeps the bot hot path cheap while
// still telling dead ends apart from open regions.
func (idx *BoardIndex) FreeSpaceFrom(b Board, start Vec, is3D bool, maxCells int) int {
	visited := map[Vec]bool{}
	queue := []Vec{start}
	free := 0
	dirs := DirectionsFor(is3D)

	for len(queue) > 0 && free < maxCells {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		free++

		for _, d := range dirs {
			next := cur.Add(d.Vector())
			if !visited[next] && !idx.Blocked(b, next) {
				queue = append(queue, next)
			}
		}
	}
	return free
}
