package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPlayers() *PlayerRegistry {
	return NewPlayerRegistry(zap.NewNop().Sugar())
}

func TestValidatePlayerName(t *testing.T) {
	cases := []struct {
		name  string
		input string
		ok    bool
	}{
		{"simple", "Alice", true},
		{"with space", "Snake Fan 42", true},
		{"trimmed to valid", "  Bob  ", true},
		{"min length", "ab", true},
		{"max length", "abcdefghijklmnopqrst", true},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"too short", "a", false},
		{"too long", "abcdefghijklmnopqrstu", false},
		{"punctuation", "nope!", false},
		{"unicode", "günther", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePlayerName(tc.input)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestColorAllocationOrder(t *testing.T) {
	p := newTestPlayers()

	first := p.AvailableColor("room", "")
	assert.Equal(t, PlayerColors[0], first)
	p.Upsert("p1", "s1", "One", first, "room")

	second := p.AvailableColor("room", "")
	assert.Equal(t, PlayerColors[1], second)
}

func TestColorPreferenceHonoredWhenFree(t *testing.T) {
	p := newTestPlayers()

	got := p.AvailableColor("room", PlayerColors[2])
	assert.Equal(t, PlayerColors[2], got, "free palette entry should be honored")

	p.Upsert("p1", "s1", "One", PlayerColors[2], "room")
	got = p.AvailableColor("room", PlayerColors[2])
	assert.Equal(t, PlayerColors[0], got, "taken preference falls back to first unused")

	assert.Equal(t, PlayerColors[0], p.AvailableColor("room", "#123456"),
		"off-palette preference is ignored")
}

func TestColorPaletteExhaustionFallsBack(t *testing.T) {
	p := newTestPlayers()
	for i, c := range PlayerColors {
		p.Upsert(string(rune('a'+i)), "", "P"+string(rune('a'+i)), c, "room")
	}
	assert.Equal(t, PlayerColors[0], p.AvailableColor("room", ""))
}

func TestUpsertRebindPreservesReady(t *testing.T) {
	p := newTestPlayers()
	p.Upsert("p1", "s1", "Alice", PlayerColors[0], "room")
	p.SetReady("p1", true)

	rec := p.Upsert("p1", "s2", "Alice", PlayerColors[0], "room")
	assert.True(t, rec.Ready, "reconnect must not reset readiness")
	assert.Equal(t, "s2", rec.SessionID)
	assert.Nil(t, p.GetBySession("s1"), "old session binding is dropped")
	require.NotNil(t, p.GetBySession("s2"))
}

func TestBotsStayReady(t *testing.T) {
	p := newTestPlayers()
	p.AddBot("bot1", "Viper7", PlayerColors[1], "room", BotHard)

	rec := p.SetReady("bot1", false)
	require.NotNil(t, rec)
	assert.True(t, rec.Ready)
}

func TestNameAvailableIsCaseInsensitivePerRoom(t *testing.T) {
	p := newTestPlayers()
	p.Upsert("p1", "s1", "Alice", PlayerColors[0], "roomA")

	assert.False(t, p.NameAvailable("roomA", "alice"))
	assert.False(t, p.NameAvailable("roomA", "  ALICE "))
	assert.True(t, p.NameAvailable("roomA", "Bob"))
	assert.True(t, p.NameAvailable("roomB", "Alice"), "names are scoped to the room")
}

func TestListInRoomKeepsJoinOrder(t *testing.T) {
	p := newTestPlayers()
	p.Upsert("p1", "s1", "First", PlayerColors[0], "room")
	time.Sleep(time.Millisecond)
	p.Upsert("p2", "s2", "Second", PlayerColors[1], "room")
	time.Sleep(time.Millisecond)
	p.AddBot("bot1", "Rookie1", PlayerColors[2], "room", BotEasy)

	list := p.ListInRoom("room")
	require.Len(t, list, 3)
	assert.Equal(t, "p1", list[0].ID)
	assert.Equal(t, "p2", list[1].ID)
	assert.Equal(t, "bot1", list[2].ID)
}

func TestFormatForBroadcastFlagsHostAndBots(t *testing.T) {
	p := newTestPlayers()
	p.Upsert("p1", "s1", "Host", PlayerColors[0], "room")
	time.Sleep(time.Millisecond)
	p.AddBot("bot1", "Hunter3", PlayerColors[1], "room", BotMedium)

	out := p.FormatForBroadcast("room", "p1")
	require.Len(t, out, 2)
	assert.True(t, out[0].IsHost)
	assert.False(t, out[0].IsBot)
	assert.False(t, out[1].IsHost)
	assert.True(t, out[1].IsBot)
	assert.True(t, out[1].Ready, "bots broadcast as ready")
}

func TestExpireSessionsRemovesStalePlayers(t *testing.T) {
	p := newTestPlayers()
	p.Upsert("p1", "stale", "Gone", PlayerColors[0], "room")
	p.Upsert("p2", "fresh", "Here", PlayerColors[1], "room")

	p.mu.Lock()
	p.sessions["stale"].lastSeen = time.Now().Add(-time.Hour)
	p.mu.Unlock()

	removed := p.ExpireSessions(10 * time.Minute)
	assert.Equal(t, []string{"p1"}, removed)
	assert.Nil(t, p.Get("p1"))
	assert.NotNil(t, p.Get("p2"))
}

func TestRemoveBySessionUnknown(t *testing.T) {
	p := newTestPlayers()
	assert.Equal(t, "", p.RemoveBySession("ghost"))
}
