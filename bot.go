package main

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Bot display names per difficulty tier. A random numeric suffix keeps
// several bots of the same tier distinguishable in one room.
var botNames = map[BotDifficulty][]string{
	BotEasy:   {"Rookie", "Newbie", "Beginner", "Starter"},
	BotMedium: {"Hunter", "Tracker", "Seeker", "Chaser"},
	BotHard:   {"Viper", "Cobra", "Python", "Anaconda"},
}

// botWeights are the per-dimension tuning constants of the move evaluator.
// The 3D set is slightly softer since six exits per cell already make the
// board more forgiving.
type botWeights struct {
	foodSlope        float64
	freeSpaceWeight  float64
	floodCap         int
	enemyDangerUnit  float64
	interceptPenalty float64
	wallUnit         float64
	proximityBonus   float64
	territoryBonus   float64
	territoryRange   int
	centerBias       float64
	soloEnemyBonus   float64
	crowdPenalty     float64
}

var weights2D = botWeights{
	foodSlope:        20,
	freeSpaceWeight:  2,
	floodCap:         FloodFillDepth2D,
	enemyDangerUnit:  50,
	interceptPenalty: 30,
	wallUnit:         20,
	proximityBonus:   25,
	territoryBonus:   40,
	territoryRange:   5,
	centerBias:       20,
	soloEnemyBonus:   15,
	crowdPenalty:     10,
}

var weights3D = botWeights{
	foodSlope:        15,
	freeSpaceWeight:  3,
	floodCap:         FloodFillDepth3D,
	enemyDangerUnit:  40,
	interceptPenalty: 25,
	wallUnit:         15,
	proximityBonus:   20,
	territoryBonus:   35,
	territoryRange:   6,
	centerBias:       25,
	soloEnemyBonus:   12,
	crowdPenalty:     8,
}

func weightsFor(is3D bool) botWeights {
	if is3D {
		return weights3D
	}
	return weights2D
}

// botRuntime is the per-bot decision state: throttle clock and the heading
// served while the bot is between recomputes.
type botRuntime struct {
	difficulty BotDifficulty
	lastMove   time.Time
	cached     Direction
}

// BotAI decides headings for registered bots. All decisions run inside the
// engine tick, so a room's bots never race their own game.
type BotAI struct {
	mu   sync.Mutex
	bots map[string]*botRuntime
	rng  *rand.Rand
	now  func() time.Time
	log  *zap.SugaredLogger
}

func NewBotAI(log *zap.SugaredLogger) *BotAI {
	return &BotAI{
		bots: make(map[string]*botRuntime),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		now:  time.Now,
		log:  log,
	}
}

// Register arms decision state for a bot.
func (ai *BotAI) Register(botID string, difficulty BotDifficulty) {
	ai.mu.Lock()
	defer ai.mu.Unlock()
	ai.bots[botID] = &botRuntime{difficulty: difficulty}
}

// Unregister drops a bot's decision state.
func (ai *BotAI) Unregister(botID string) {
	ai.mu.Lock()
	defer ai.mu.Unlock()
	delete(ai.bots, botID)
}

// NewBotName builds a display name for the difficulty tier.
func (ai *BotAI) NewBotName(difficulty BotDifficulty) string {
	ai.mu.Lock()
	defer ai.mu.Unlock()
	pool := botNames[difficulty]
	return fmt.Sprintf("%s%d", pool[ai.rng.Intn(len(pool))], ai.rng.Intn(100))
}

// MovesFor returns this tick's heading for every living registered bot in
// the state. Implements BotDecider.
func (ai *BotAI) MovesFor(roomID string, state *GameState, settings GameSettings) map[string]Direction {
	ai.mu.Lock()
	defer ai.mu.Unlock()

	moves := make(map[string]Direction)
	for _, p := range state.Players {
		rt, ok := ai.bots[p.ID]
		if !ok || !p.Alive || len(p.Snake) == 0 {
			continue
		}
		moves[p.ID] = ai.decideLocked(p, rt, state, settings)
	}
	return moves
}

// decideLocked applies the difficulty throttle and recomputes the heading
// when the bot's delay has elapsed. Between recomputes the cached heading
// is replayed, which is what makes easy bots visibly sluggish.
func (ai *BotAI) decideLocked(bot *PlayerSimState, rt *botRuntime, state *GameState, settings GameSettings) Direction {
	now := ai.now()
	if now.Sub(rt.lastMove) < rt.difficulty.MoveDelay() {
		if rt.cached != DirNone {
			return rt.cached
		}
		return bot.Direction
	}

	dir := ai.bestMove(bot, state, settings, rt.difficulty)
	rt.cached = dir
	rt.lastMove = now
	return dir
}

// bestMove scores every legal heading and picks one according to the
// difficulty's selection policy. With no legal heading it falls back to the
// emergency chain.
func (ai *BotAI) bestMove(bot *PlayerSimState, state *GameState, settings GameSettings, difficulty BotDifficulty) Direction {
	head := bot.Snake[0]
	board := settings.Board()
	idx := NewBoardIndex(state)
	w := weightsFor(settings.Is3D)

	type scoredMove struct {
		dir   Direction
		score float64
	}
	var candidates []scoredMove
	for _, dir := range DirectionsFor(settings.Is3D) {
		if dir == bot.Direction.Opposite() {
			continue
		}
		next := head.Add(dir.Vector())
		if idx.Blocked(board, next) {
			continue
		}
		score := ai.scoreMove(next, bot.ID, state, idx, board, settings, difficulty, w)
		candidates = append(candidates, scoredMove{dir: dir, score: score})
	}

	if len(candidates) == 0 {
		return ai.emergencyMove(bot, idx, settings)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	// Selection noise per tier: lower tiers deviate from the top pick more
	// often, and never further than the runner-up for medium and hard.
	switch difficulty {
	case BotEasy:
		if ai.rng.Float64() < 0.9 {
			return candidates[0].dir
		}
		return candidates[ai.rng.Intn(len(candidates))].dir
	case BotMedium:
		if ai.rng.Float64() < 0.85 || len(candidates) == 1 {
			return candidates[0].dir
		}
		return candidates[1].dir
	default:
		if ai.rng.Float64() < 0.95 || len(candidates) == 1 {
			return candidates[0].dir
		}
		return candidates[1].dir
	}
}

// scoreMove rates one candidate head cell. Food dominates every other term
// so bots visibly hunt; space, danger and the tier strategies shade the
// choice between roughly equal food options.
func (ai *BotAI) scoreMove(pos Vec, botID string, state *GameState, idx *BoardIndex, board Board, settings GameSettings, difficulty BotDifficulty, w botWeights) float64 {
	var score float64

	if food, ok := idx.NearestFood(pos); ok {
		d := float64(pos.Manhattan(food))
		score += maxFloat(500, 1000-d*w.foodSlope)
	}

	free := idx.FreeSpaceFrom(board, pos, settings.Is3D, w.floodCap)
	score += float64(free) * w.freeSpaceWeight

	score += ai.dangerScore(pos, botID, state, idx, board, w) * 0.3

	switch difficulty {
	case BotEasy:
		score += ai.rng.Float64()*10 - 5
	case BotMedium:
		score += ai.balancedScore(pos, botID, idx, board, w) * 0.5
	default:
		score += ai.aggressiveScore(pos, botID, state, idx, w) * 0.5
	}
	return score
}

// dangerScore penalizes cells close to enemy heads, cells an enemy could
// reach next tick, and cells hugging a wall.
func (ai *BotAI) dangerScore(pos Vec, botID string, state *GameState, idx *BoardIndex, board Board, w botWeights) float64 {
	var danger float64

	for _, enemy := range state.Players {
		if enemy.ID == botID || !enemy.Alive || len(enemy.Snake) == 0 {
			continue
		}
		head := enemy.Snake[0]
		d := pos.Manhattan(head)
		if d <= 3 {
			danger -= float64(4-d) * w.enemyDangerUnit
		}
		if d <= 5 && len(enemy.Snake) >= 3 {
			if dir := headingOf(enemy.Snake); dir != DirNone {
				if pos.Manhattan(head.Add(dir.Vector())) <= 2 {
					danger -= w.interceptPenalty
				}
			}
		}
	}

	if wd := board.WallDistance(pos); wd <= 2 {
		danger -= float64(3-wd) * w.wallUnit
	}
	return danger
}

// aggressiveScore rewards hard bots for shadowing enemies at striking range
// and for sitting between an enemy and its food.
func (ai *BotAI) aggressiveScore(pos Vec, botID string, state *GameState, idx *BoardIndex, w botWeights) float64 {
	var score float64
	for _, head := range idx.EnemyHeads(botID) {
		d := pos.Manhattan(head)
		if d >= 3 && d <= 8 {
			score += w.proximityBonus
		}
		for f := range idx.food {
			if pos.Manhattan(f) < head.Manhattan(f) && pos.Manhattan(f) <= w.territoryRange {
				score += w.territoryBonus
				break
			}
		}
	}
	return score
}

// balancedScore nudges medium bots toward the board center and away from
// crowds while tolerating a single nearby rival.
func (ai *BotAI) balancedScore(pos Vec, botID string, idx *BoardIndex, board Board, w botWeights) float64 {
	score := maxFloat(0, w.centerBias-float64(pos.Manhattan(board.Center())))

	nearby := 0
	for _, head := range idx.EnemyHeads(botID) {
		if pos.Manhattan(head) <= 5 {
			nearby++
		}
	}
	if nearby == 1 {
		score += w.soloEnemyBonus
	} else if nearby > 1 {
		score -= float64(nearby) * w.crowdPenalty
	}
	return score
}

// emergencyMove fires when every legal heading is blocked: head straight
// toward the nearest food ignoring collisions, else any non-reversing
// direction, else keep the current heading and accept the crash.
func (ai *BotAI) emergencyMove(bot *PlayerSimState, idx *BoardIndex, settings GameSettings) Direction {
	head := bot.Snake[0]
	if food, ok := idx.NearestFood(head); ok {
		if dir := dominantAxisDirection(head, food); dir != DirNone && dir != bot.Direction.Opposite() {
			return dir
		}
	}

	var nonReversing []Direction
	for _, dir := range DirectionsFor(settings.Is3D) {
		if dir != bot.Direction.Opposite() {
			nonReversing = append(nonReversing, dir)
		}
	}
	if len(nonReversing) > 0 {
		return nonReversing[ai.rng.Intn(len(nonReversing))]
	}
	return bot.Direction
}

// headingOf derives a snake's current heading from its head and neck.
func headingOf(snake []Vec) Direction {
	if len(snake) < 2 {
		return DirNone
	}
	head, neck := snake[0], snake[1]
	switch {
	case head.X > neck.X:
		return DirRight
	case head.X < neck.X:
		return DirLeft
	case head.Y > neck.Y:
		return DirDown
	case head.Y < neck.Y:
		return DirUp
	case head.Z > neck.Z:
		return DirForward
	case head.Z < neck.Z:
		return DirBackward
	}
	return DirNone
}

// dominantAxisDirection steps along the axis with the largest remaining
// distance to the target. DirNone when already there.
func dominantAxisDirection(from, to Vec) Direction {
	dx, dy, dz := to.X-from.X, to.Y-from.Y, to.Z-from.Z
	m := maxInt(absInt(dx), maxInt(absInt(dy), absInt(dz)))
	if m == 0 {
		return DirNone
	}
	switch m {
	case absInt(dx):
		if dx > 0 {
			return DirRight
		}
		return DirLeft
	case absInt(dy):
		if dy > 0 {
			return DirDown
		}
		return DirUp
	default:
		if dz > 0 {
			return DirForward
		}
		return DirBackward
	}
}

type pathNode struct {
	pos    Vec
	gCost  int
	fCost  float64
	parent *pathNode
}

// findPath runs A* from start to goal over the indexed board. The iteration
// cap bounds worst-case work on crowded boards; an empty path means no
// route was found within it.
func findPath(start, goal Vec, idx *BoardIndex, board Board, is3D bool) []Vec {
	open := []*pathNode{{pos: start, fCost: float64(start.Manhattan(goal))}}
	closed := make(map[Vec]bool)
	bestG := map[Vec]int{start: 0}

	for iterations := 0; len(open) > 0 && iterations < PathMaxIterations; iterations++ {
		sort.SliceStable(open, func(i, j int) bool { return open[i].fCost < open[j].fCost })
		current := open[0]
		open = open[1:]

		if closed[current.pos] {
			continue
		}
		closed[current.pos] = true

		if current.pos == goal {
			var path []Vec
			for n := current; n.parent != nil; n = n.parent {
				path = append([]Vec{n.pos}, path...)
			}
			return path
		}

		for _, dir := range DirectionsFor(is3D) {
			next := current.pos.Add(dir.Vector())
			if closed[next] || idx.Blocked(board, next) {
				continue
			}
			g := current.gCost + 1
			if known, ok := bestG[next]; ok && g >= known {
				continue
			}
			bestG[next] = g
			open = append(open, &pathNode{
				pos:    next,
				gCost:  g,
				fCost:  float64(g + next.Manhattan(goal)),
				parent: current,
			})
		}
	}
	return nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
