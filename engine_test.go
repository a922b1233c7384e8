package main

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSettings2D() GameSettings {
	return GameSettings{
		MaxPlayers: 4,
		GameSpeed:  1,
		BoardSize:  BoardMedium,
		GameMode:   ModeClassic,
	}
}

func newTestEngine() *Engine {
	return NewEngine(nil, zap.NewNop().Sugar())
}

// newManualGame builds a game in a known layout so ticks can be driven
// directly, without the timer loop.
func newManualGame(settings GameSettings, players []*PlayerSimState, food []Vec) *game {
	return &game{
		state:     &GameState{Players: players, Food: food, Status: GamePlaying},
		settings:  settings,
		board:     settings.Board(),
		startedAt: time.Now(),
		pending:   make(map[string]Direction),
		rng:       rand.New(rand.NewSource(1)),
		done:      make(chan struct{}),
	}
}

func TestStartRequiresTwoPlayers(t *testing.T) {
	e := newTestEngine()
	_, err := e.Start("room", []string{"solo"}, testSettings2D())
	require.Error(t, err)
	assert.Equal(t, 0, e.ActiveLoops())
}

func TestStartSeedsBoard(t *testing.T) {
	e := newTestEngine()
	settings := testSettings2D()
	settings.BoardSize = BoardSmall

	state, err := e.Start("room", []string{"a", "b"}, settings)
	require.NoError(t, err)
	defer e.Drop("room")

	require.Len(t, state.Players, 2)
	assert.Equal(t, GamePlaying, state.Status)
	assert.Len(t, state.Food, settings.InitialFoodCount())

	// Opposite corners, heading into open board.
	assert.Equal(t, Vec{X: 3, Y: 3}, state.Players[0].Snake[0])
	assert.Equal(t, DirRight, state.Players[0].Direction)
	assert.Equal(t, Vec{X: 17, Y: 17}, state.Players[1].Snake[0])
	assert.Equal(t, DirLeft, state.Players[1].Direction)
	for _, p := range state.Players {
		assert.True(t, p.Alive)
		assert.Len(t, p.Snake, 1)
	}
	assert.Equal(t, 1, e.ActiveLoops())
}

func TestStopLeavesNoRunningLoop(t *testing.T) {
	e := newTestEngine()
	_, err := e.Start("room", []string{"a", "b"}, testSettings2D())
	require.NoError(t, err)

	e.Stop("room")
	assert.Equal(t, 0, e.ActiveLoops())
	assert.Equal(t, GameFinished, e.State("room").Status)

	// Stopping again is a no-op.
	e.Stop("room")
	assert.Equal(t, 0, e.ActiveLoops())
}

func TestRestartReplacesRunningGame(t *testing.T) {
	e := newTestEngine()
	_, err := e.Start("room", []string{"a", "b"}, testSettings2D())
	require.NoError(t, err)
	_, err = e.Start("room", []string{"a", "b"}, testSettings2D())
	require.NoError(t, err)
	defer e.Drop("room")

	assert.Equal(t, 1, e.ActiveLoops())
}

func TestSetHeadingRejectsReversal(t *testing.T) {
	e := newTestEngine()
	g := newManualGame(testSettings2D(), []*PlayerSimState{
		{ID: "a", Snake: []Vec{{X: 5, Y: 5}}, Direction: DirRight, Alive: true},
		{ID: "b", Snake: []Vec{{X: 20, Y: 20}}, Direction: DirLeft, Alive: false},
	}, nil)
	e.games["room"] = g

	assert.False(t, e.SetHeading("room", "a", DirLeft), "reversal must be rejected")
	assert.True(t, e.SetHeading("room", "a", DirUp))
	assert.True(t, e.SetHeading("room", "a", DirDown))
	assert.False(t, e.SetHeading("room", "a", DirForward), "3D heading on a 2D board")
	assert.False(t, e.SetHeading("room", "b", DirUp), "dead players have no heading")
	assert.False(t, e.SetHeading("room", "ghost", DirUp))
	assert.False(t, e.SetHeading("other", "a", DirUp))
}

func TestTickAppliesBufferedHeading(t *testing.T) {
	e := newTestEngine()
	g := newManualGame(testSettings2D(), []*PlayerSimState{
		{ID: "a", Snake: []Vec{{X: 5, Y: 5}}, Direction: DirRight, Alive: true},
		{ID: "b", Snake: []Vec{{X: 20, Y: 20}}, Direction: DirLeft, Alive: true},
	}, nil)
	e.games["room"] = g

	require.True(t, e.SetHeading("room", "a", DirDown))
	e.tick("room", g)

	assert.Equal(t, DirDown, g.state.Players[0].Direction)
	assert.Equal(t, Vec{X: 5, Y: 6}, g.state.Players[0].Snake[0])
	assert.Empty(t, g.pending, "buffer clears every tick")
}

func TestTickFoodGrowsSnake(t *testing.T) {
	e := newTestEngine()
	g := newManualGame(testSettings2D(), []*PlayerSimState{
		{ID: "a", Snake: []Vec{{X: 5, Y: 5}}, Direction: DirRight, Alive: true},
		{ID: "b", Snake: []Vec{{X: 20, Y: 20}}, Direction: DirLeft, Alive: true},
	}, []Vec{{X: 6, Y: 5}})

	e.tick("room", g)

	a := g.state.Players[0]
	assert.Equal(t, []Vec{{X: 6, Y: 5}, {X: 5, Y: 5}}, a.Snake, "eating grows by one from the head")
	assert.Equal(t, FoodReward, a.Score)
	require.Len(t, g.state.Food, 1, "eaten food is replaced")
	assert.NotEqual(t, Vec{X: 6, Y: 5}, g.state.Food[0])
}

func TestTickMissingFoodJustMoves(t *testing.T) {
	e := newTestEngine()
	g := newManualGame(testSettings2D(), []*PlayerSimState{
		{ID: "a", Snake: []Vec{{X: 6, Y: 5}, {X: 5, Y: 5}}, Direction: DirRight, Alive: true},
		{ID: "b", Snake: []Vec{{X: 20, Y: 20}}, Direction: DirLeft, Alive: true},
	}, nil)

	e.tick("room", g)

	a := g.state.Players[0]
	assert.Equal(t, []Vec{{X: 7, Y: 5}, {X: 6, Y: 5}}, a.Snake, "length is constant without food")
	assert.Equal(t, 0, a.Score)
}

func TestTickWallCollisionEndsGame(t *testing.T) {
	e := newTestEngine()
	g := newManualGame(testSettings2D(), []*PlayerSimState{
		{ID: "a", Snake: []Vec{{X: 0, Y: 5}}, Direction: DirLeft, Alive: true},
		{ID: "b", Snake: []Vec{{X: 20, Y: 20}}, Direction: DirLeft, Alive: true},
	}, nil)

	finished := e.tick("room", g)

	assert.True(t, finished)
	assert.False(t, g.state.Players[0].Alive)
	assert.True(t, g.state.Players[1].Alive)
	assert.Equal(t, GameFinished, g.state.Status)
}

func TestTickMutualBodyCollisionKillsBoth(t *testing.T) {
	// A heads into B's body while B heads into A's body. Both checks run
	// against the pre-move board, so both die on the same tick.
	e := newTestEngine()
	g := newManualGame(testSettings2D(), []*PlayerSimState{
		{ID: "a", Snake: []Vec{{X: 10, Y: 10}, {X: 10, Y: 9}, {X: 10, Y: 8}}, Direction: DirRight, Alive: true},
		{ID: "b", Snake: []Vec{{X: 11, Y: 9}, {X: 11, Y: 10}, {X: 11, Y: 11}}, Direction: DirLeft, Alive: true},
	}, nil)
	require.Equal(t, Vec{X: 11, Y: 10}, g.state.Players[0].Snake[0].Add(DirRight.Vector()))
	require.Equal(t, Vec{X: 10, Y: 9}, g.state.Players[1].Snake[0].Add(DirLeft.Vector()))

	finished := e.tick("room", g)

	assert.True(t, finished)
	assert.False(t, g.state.Players[0].Alive)
	assert.False(t, g.state.Players[1].Alive)
}

func TestDeadSnakeStopsMoving(t *testing.T) {
	e := newTestEngine()
	body := []Vec{{X: 3, Y: 3}, {X: 3, Y: 4}}
	g := newManualGame(testSettings2D(), []*PlayerSimState{
		{ID: "dead", Snake: append([]Vec(nil), body...), Direction: DirRight, Alive: false},
		{ID: "b", Snake: []Vec{{X: 20, Y: 20}}, Direction: DirLeft, Alive: true},
		{ID: "c", Snake: []Vec{{X: 25, Y: 25}}, Direction: DirRight, Alive: true},
	}, nil)

	e.tick("room", g)

	assert.Equal(t, body, g.state.Players[0].Snake, "dead bodies stay in place")
}

func TestTickDeterministicForEqualStates(t *testing.T) {
	e := newTestEngine()
	build := func() *game {
		g := newManualGame(testSettings2D(), []*PlayerSimState{
			{ID: "a", Snake: []Vec{{X: 5, Y: 5}}, Direction: DirRight, Alive: true},
			{ID: "b", Snake: []Vec{{X: 20, Y: 20}}, Direction: DirUp, Alive: true},
		}, []Vec{{X: 6, Y: 5}, {X: 14, Y: 2}})
		g.rng = rand.New(rand.NewSource(77))
		return g
	}

	g1, g2 := build(), build()
	e.tick("one", g1)
	e.tick("two", g2)

	assert.Equal(t, g1.state, g2.state, "same pre-tick state and seed must yield the same post-tick state")
}

func TestSpawnFoodAvoidsOccupiedCells(t *testing.T) {
	settings := testSettings2D()
	settings.BoardSize = BoardSmall
	board := settings.Board()

	state := &GameState{
		Players: []*PlayerSimState{
			{ID: "a", Snake: []Vec{{X: 1, Y: 1}, {X: 1, Y: 2}, {X: 1, Y: 3}}, Alive: true},
		},
		Food: []Vec{{X: 4, Y: 4}},
	}
	placed := spawnFood(state, board, 20, rand.New(rand.NewSource(3)))

	require.Len(t, placed, 20)
	seen := map[Vec]bool{{X: 4, Y: 4}: true}
	for _, seg := range state.Players[0].Snake {
		seen[seg] = true
	}
	for _, f := range placed {
		assert.True(t, board.Contains(f))
		assert.False(t, seen[f], "food landed on an occupied cell: %v", f)
		seen[f] = true
	}
}

func TestStateReturnsDeepSnapshot(t *testing.T) {
	e := newTestEngine()
	g := newManualGame(testSettings2D(), []*PlayerSimState{
		{ID: "a", Snake: []Vec{{X: 5, Y: 5}}, Direction: DirRight, Alive: true},
	}, []Vec{{X: 9, Y: 9}})
	e.games["room"] = g

	snap := e.State("room")
	snap.Players[0].Snake[0] = Vec{X: 0, Y: 0}
	snap.Players[0].Score = 999
	snap.Food[0] = Vec{X: 0, Y: 0}

	assert.Equal(t, Vec{X: 5, Y: 5}, g.state.Players[0].Snake[0])
	assert.Equal(t, 0, g.state.Players[0].Score)
	assert.Equal(t, Vec{X: 9, Y: 9}, g.state.Food[0])
}

func TestResultsRankedByScore(t *testing.T) {
	e := newTestEngine()
	g := newManualGame(testSettings2D(), []*PlayerSimState{
		{ID: "low", Score: 10},
		{ID: "high", Score: 50},
		{ID: "mid", Score: 30},
	}, nil)
	e.games["room"] = g

	results, _ := e.Results("room")
	require.Len(t, results, 3)
	assert.Equal(t, "high", results[0].PlayerID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "mid", results[1].PlayerID)
	assert.Equal(t, 2, results[1].Rank)
	assert.Equal(t, "low", results[2].PlayerID)
	assert.Equal(t, 3, results[2].Rank)
}

func TestDropDiscardsGame(t *testing.T) {
	e := newTestEngine()
	_, err := e.Start("room", []string{"a", "b"}, testSettings2D())
	require.NoError(t, err)

	e.Drop("room")
	assert.Nil(t, e.State("room"))
	assert.Equal(t, 0, e.ActiveLoops())
}

func TestStartPositions3DUseAllSlots(t *testing.T) {
	settings := testSettings2D()
	settings.Is3D = true
	board := settings.Board()

	seen := map[Vec]bool{}
	for i := 0; i < 8; i++ {
		pos := startPosition(i, board, true)
		assert.True(t, board.Contains(pos), "slot %d off board: %v", i, pos)
		assert.False(t, seen[pos], "slot %d duplicates %v", i, pos)
		seen[pos] = true
		assert.True(t, startDirection(i, true).Valid(true))
	}
}
