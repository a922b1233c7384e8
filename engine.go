package main

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// GameStatus is the simulation lifecycle state.
type GameStatus string

const (
	GamePlaying  GameStatus = "playing"
	GameFinished GameStatus = "finished"
)

// PlayerSimState is one player's authoritative simulation state. Snake is
// head-first; a dead player's body stays in place but never moves again.
type PlayerSimState struct {
	ID        string    `json:"id"`
	Snake     []Vec     `json:"snake"`
	Direction Direction `json:"direction"`
	Score     int       `json:"score"`
	Alive     bool      `json:"alive"`
}

// GameState is the authoritative per-room simulation state.
type GameState struct {
	Players []*PlayerSimState `json:"players"`
	Food    []Vec             `json:"food"`
	Status  GameStatus        `json:"gameStatus"`
}

// GameResult is one row of the final score-ranked standings.
type GameResult struct {
	PlayerID     string `json:"playerId"`
	PlayerName   string `json:"playerName"`
	Score        int    `json:"score"`
	Rank         int    `json:"rank"`
	SurvivalTime int64  `json:"survivalTime"` // milliseconds
}

// BotDecider supplies the buffered headings for every bot in a room. The
// engine consults it at tick start, before any snake moves.
type BotDecider interface {
	MovesFor(roomID string, state *GameState, settings GameSettings) map[string]Direction
}

// game is the per-room simulation instance. Its mutex serializes ticks,
// heading buffering and snapshot reads; a tick holds it for the whole
// advance, which is the Go equivalent of the run-to-completion guarantee a
// single-threaded event loop gives for free.
type game struct {
	mu        sync.Mutex
	state     *GameState
	settings  GameSettings
	board     Board
	startedAt time.Time
	pending   map[string]Direction
	rng       *rand.Rand
	done      chan struct{}
	stopOnce  sync.Once
}

// Engine owns every room's simulation: one game instance and one periodic
// tick task per playing room.
type Engine struct {
	mu    sync.RWMutex
	games map[string]*game
	loops map[string]chan struct{} // roomId -> loop-exited signal
	bots  BotDecider
	log   *zap.SugaredLogger
}

// NewEngine creates an engine. The BotDecider may be nil for bot-free use.
func NewEngine(bots BotDecider, log *zap.SugaredLogger) *Engine {
	return &Engine{
		games: make(map[string]*game),
		loops: make(map[string]chan struct{}),
		bots:  bots,
		log:   log,
	}
}

// Start seeds a fresh simulation for the room and arms its tick task. Any
// prior simulation for the room is stopped first. Starting with fewer than
// two players is refused: a one-player game would finish on its first tick.
func (e *Engine) Start(roomID string, playerIDs []string, settings GameSettings) (*GameState, error) {
	if len(playerIDs) < MinPlayersToStart {
		return nil, fmt.Errorf("at least %d players required", MinPlayersToStart)
	}
	e.Stop(roomID)

	board := settings.Board()
	players := make([]*PlayerSimState, len(playerIDs))
	for i, id := range playerIDs {
		players[i] = &PlayerSimState{
			ID:        id,
			Snake:     []Vec{startPosition(i, board, settings.Is3D)},
			Direction: startDirection(i, settings.Is3D),
			Alive:     true,
		}
	}

	g := &game{
		state:     &GameState{Players: players, Status: GamePlaying},
		settings:  settings,
		board:     board,
		startedAt: time.Now(),
		pending:   make(map[string]Direction),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		done:      make(chan struct{}),
	}
	g.state.Food = spawnFood(g.state, board, settings.InitialFoodCount(), g.rng)

	loopExit := make(chan struct{})
	e.mu.Lock()
	e.games[roomID] = g
	e.loops[roomID] = loopExit
	e.mu.Unlock()

	go e.runLoop(roomID, g, loopExit)

	e.log.Infow("game started", "room", roomID, "players", len(playerIDs),
		"board", settings.BoardSize, "is3D", settings.Is3D)
	return snapshotState(g.state), nil
}

// runLoop drives the room's ticks until the game finishes or is stopped.
func (e *Engine) runLoop(roomID string, g *game, loopExit chan struct{}) {
	defer func() {
		e.mu.Lock()
		if e.loops[roomID] == loopExit {
			delete(e.loops, roomID)
		}
		e.mu.Unlock()
		close(loopExit)
	}()

	ticker := time.NewTicker(g.settings.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			if e.tick(roomID, g) {
				return
			}
		}
	}
}

// Stop cancels the room's tick task and freezes its state as finished.
// Idempotent; no tick fires after Stop returns.
func (e *Engine) Stop(roomID string) {
	e.mu.RLock()
	g := e.games[roomID]
	loopExit := e.loops[roomID]
	e.mu.RUnlock()
	if g == nil {
		return
	}

	g.stopOnce.Do(func() { close(g.done) })
	if loopExit != nil {
		<-loopExit
	}

	g.mu.Lock()
	g.state.Status = GameFinished
	g.mu.Unlock()
}

// Drop stops the simulation and discards its state entirely. Used on room
// teardown; results are unavailable afterwards.
func (e *Engine) Drop(roomID string) {
	e.Stop(roomID)
	e.mu.Lock()
	delete(e.games, roomID)
	e.mu.Unlock()
}

// SetHeading buffers a heading intent for the next tick. Rejected when the
// room has no running game, the player is absent or dead, the heading is
// not legal for the board's dimensionality, or it is the exact reversal of
// the player's current heading.
func (e *Engine) SetHeading(roomID, playerID string, dir Direction) bool {
	e.mu.RLock()
	g := e.games[roomID]
	e.mu.RUnlock()
	if g == nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bufferHeadingLocked(playerID, dir)
}

func (g *game) bufferHeadingLocked(playerID string, dir Direction) bool {
	if g.state.Status != GamePlaying || !dir.Valid(g.settings.Is3D) {
		return false
	}
	player := g.findPlayer(playerID)
	if player == nil || !player.Alive {
		return false
	}
	if dir == player.Direction.Opposite() {
		return false
	}
	g.pending[playerID] = dir
	return true
}

// State returns a deep snapshot of the room's simulation state, or nil.
func (e *Engine) State(roomID string) *GameState {
	e.mu.RLock()
	g := e.games[roomID]
	e.mu.RUnlock()
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return snapshotState(g.state)
}

// Results returns the score-ranked standings and the game duration. Player
// names are resolved by the caller.
func (e *Engine) Results(roomID string) ([]GameResult, time.Duration) {
	e.mu.RLock()
	g := e.games[roomID]
	e.mu.RUnlock()
	if g == nil {
		return nil, 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	duration := time.Since(g.startedAt)
	ranked := make([]*PlayerSimState, len(g.state.Players))
	copy(ranked, g.state.Players)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	results := make([]GameResult, len(ranked))
	for i, p := range ranked {
		results[i] = GameResult{
			PlayerID:     p.ID,
			Score:        p.Score,
			Rank:         i + 1,
			SurvivalTime: duration.Milliseconds(),
		}
	}
	return results, duration
}

// ActiveLoops reports how many room tick tasks are currently armed.
func (e *Engine) ActiveLoops() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.loops)
}

// tick advances the room one step. Returns true when the game reached its
// terminal state and the loop should exit.
func (e *Engine) tick(roomID string, g *game) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.Status != GamePlaying {
		return true
	}

	// Bot headings land in the same buffer as human input and get the same
	// reversal guard. A panicking decider costs its bots one move, not the
	// room's tick.
	if e.bots != nil {
		for botID, dir := range e.collectBotMoves(roomID, g) {
			g.bufferHeadingLocked(botID, dir)
		}
	}

	// Freeze buffered headings for this tick.
	for _, p := range g.state.Players {
		if dir, ok := g.pending[p.ID]; ok && p.Alive && dir != p.Direction.Opposite() {
			p.Direction = dir
		}
	}
	g.pending = make(map[string]Direction)

	// All collision checks this tick use the pre-move board, so two heads
	// entering each other's bodies both die.
	idx := NewBoardIndex(g.state)

	for _, p := range g.state.Players {
		if !p.Alive {
			continue
		}
		newHead := p.Snake[0].Add(p.Direction.Vector())
		if idx.Blocked(g.board, newHead) {
			p.Alive = false
			e.log.Debugw("player eliminated", "room", roomID, "player", p.ID)
			continue
		}

		p.Snake = append([]Vec{newHead}, p.Snake...)

		if eaten := removeFoodAt(g.state, newHead); eaten {
			p.Score += FoodReward
			g.state.Food = append(g.state.Food, spawnFood(g.state, g.board, 1, g.rng)...)
		} else {
			p.Snake = p.Snake[:len(p.Snake)-1]
		}
	}

	alive := 0
	for _, p := range g.state.Players {
		if p.Alive {
			alive++
		}
	}
	if alive <= 1 {
		g.state.Status = GameFinished
		g.stopOnce.Do(func() { close(g.done) })
		e.log.Infow("game finished", "room", roomID)
		return true
	}
	return false
}

// collectBotMoves asks the decider for this tick's bot headings, isolating
// the tick from decider failures.
func (e *Engine) collectBotMoves(roomID string, g *game) (moves map[string]Direction) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorw("bot decider panicked", "room", roomID, "panic", r)
			moves = nil
		}
	}()
	return e.bots.MovesFor(roomID, snapshotState(g.state), g.settings)
}

func (g *game) findPlayer(playerID string) *PlayerSimState {
	for _, p := range g.state.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// removeFoodAt removes the food at the cell and reports whether one was
// there.
func removeFoodAt(state *GameState, cell Vec) bool {
	for i, f := range state.Food {
		if f == cell {
			state.Food = append(state.Food[:i], state.Food[i+1:]...)
			return true
		}
	}
	return false
}

// spawnFood places count food items on cells no snake covers and no food
// already sits on. Each placement gets a bounded number of random attempts
// and is skipped silently when the board is too crowded.
func spawnFood(state *GameState, board Board, count int, rng *rand.Rand) []Vec {
	occupied := make(map[Vec]bool)
	for _, p := range state.Players {
		for _, seg := range p.Snake {
			occupied[seg] = true
		}
	}
	for _, f := range state.Food {
		occupied[f] = true
	}

	var placed []Vec
	for i := 0; i < count; i++ {
		for attempt := 0; attempt < FoodSpawnRetries; attempt++ {
			cell := Vec{
				X: rng.Intn(board.Width),
				Y: rng.Intn(board.Height),
				Z: rng.Intn(board.Depth),
			}
			if !occupied[cell] {
				occupied[cell] = true
				placed = append(placed, cell)
				break
			}
		}
	}
	return placed
}

// startPosition seeds snakes toward corners and edges so players begin as
// far apart as the board allows.
func startPosition(index int, board Board, is3D bool) Vec {
	m := StartMargin
	w, h := board.Width, board.Height
	if !is3D {
		layout := []Vec{
			{X: m, Y: m},
			{X: w - m, Y: h - m},
			{X: w - m, Y: m},
			{X: m, Y: h - m},
		}
		return layout[index%len(layout)]
	}

	c := board.Center()
	layout := []Vec{
		{X: m, Y: m, Z: c.Z},
		{X: w - m, Y: h - m, Z: c.Z},
		{X: w - m, Y: m, Z: c.Z},
		{X: m, Y: h - m, Z: c.Z},
		{X: c.X, Y: m, Z: m},
		{X: c.X, Y: h - m, Z: board.Depth - m},
		{X: c.X, Y: m, Z: board.Depth - m},
		{X: c.X, Y: h - m, Z: m},
	}
	return layout[index%len(layout)]
}

// startDirection pairs with startPosition so snakes initially head into
// open board.
func startDirection(index int, is3D bool) Direction {
	if !is3D {
		layout := []Direction{DirRight, DirLeft, DirLeft, DirRight}
		return layout[index%len(layout)]
	}
	layout := []Direction{DirRight, DirLeft, DirLeft, DirRight, DirDown, DirUp, DirForward, DirBackward}
	return layout[index%len(layout)]
}

// snapshotState deep-copies a game state for broadcast or bot reads.
func snapshotState(s *GameState) *GameState {
	cp := &GameState{
		Players: make([]*PlayerSimState, len(s.Players)),
		Food:    append([]Vec(nil), s.Food...),
		Status:  s.Status,
	}
	for i, p := range s.Players {
		pc := *p
		pc.Snake = append([]Vec(nil), p.Snake...)
		cp.Players[i] = &pc
	}
	return cp
}
