package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBotService() (*BotService, *RoomRegistry, *PlayerRegistry) {
	log := zap.NewNop().Sugar()
	rooms := NewRoomRegistry(log)
	players := NewPlayerRegistry(log)
	ai := NewBotAI(log)
	return NewBotService(rooms, players, ai, log), rooms, players
}

func TestAddBotFillsRoomSlot(t *testing.T) {
	svc, rooms, players := newTestBotService()
	roomID, _ := rooms.Create("host", DefaultGameSettings())
	players.Upsert("host", "s1", "Host", PlayerColors[0], roomID)

	bot, err := svc.AddBot(roomID, BotHard)
	require.NoError(t, err)
	assert.True(t, bot.IsBot)
	assert.True(t, bot.Ready)
	assert.Equal(t, BotHard, bot.Difficulty)
	assert.NotEqual(t, PlayerColors[0], bot.Color, "bot must not share the host's color")

	room := rooms.Get(roomID)
	assert.Len(t, room.Players, 2)
	assert.True(t, svc.IsBot(bot.ID))
	assert.False(t, svc.IsBot("host"))
}

func TestAddBotRejectsFullRoom(t *testing.T) {
	svc, rooms, _ := newTestBotService()
	settings := DefaultGameSettings()
	settings.MaxPlayers = 2
	roomID, code := rooms.Create("host", settings)
	require.NotNil(t, rooms.Join("p2", code))

	_, err := svc.AddBot(roomID, BotEasy)
	assert.Error(t, err)
}

func TestAddBotRejectsUnknownRoomAndTier(t *testing.T) {
	svc, rooms, _ := newTestBotService()
	_, err := svc.AddBot("nope", BotEasy)
	assert.Error(t, err)

	roomID, _ := rooms.Create("host", DefaultGameSettings())
	_, err = svc.AddBot(roomID, BotDifficulty("impossible"))
	assert.Error(t, err)
}

func TestBotsGetDistinctNames(t *testing.T) {
	svc, rooms, _ := newTestBotService()
	roomID, _ := rooms.Create("host", DefaultGameSettings())

	a, err := svc.AddBot(roomID, BotMedium)
	require.NoError(t, err)
	b, err := svc.AddBot(roomID, BotMedium)
	require.NoError(t, err)
	assert.NotEqual(t, a.Name, b.Name)
	assert.NotEqual(t, a.Color, b.Color)
}

func TestRemoveBotChecksRoomAndKind(t *testing.T) {
	svc, rooms, players := newTestBotService()
	roomID, _ := rooms.Create("host", DefaultGameSettings())
	players.Upsert("host", "s1", "Host", PlayerColors[0], roomID)
	bot, err := svc.AddBot(roomID, BotEasy)
	require.NoError(t, err)

	assert.False(t, svc.RemoveBot(roomID, "host"), "humans cannot be removed as bots")
	assert.False(t, svc.RemoveBot("other-room", bot.ID))
	assert.True(t, svc.RemoveBot(roomID, bot.ID))
	assert.False(t, svc.RemoveBot(roomID, bot.ID), "second removal is a no-op")

	assert.Len(t, rooms.Get(roomID).Players, 1)
	assert.Nil(t, players.Get(bot.ID))
}

func TestRemoveAllInRoom(t *testing.T) {
	svc, rooms, players := newTestBotService()
	roomID, _ := rooms.Create("host", DefaultGameSettings())
	players.Upsert("host", "s1", "Host", PlayerColors[0], roomID)
	_, err := svc.AddBot(roomID, BotEasy)
	require.NoError(t, err)
	_, err = svc.AddBot(roomID, BotHard)
	require.NoError(t, err)

	assert.Equal(t, 2, svc.CountBots(roomID))
	assert.Equal(t, 1, svc.CountRealPlayers(roomID))

	svc.RemoveAllInRoom(roomID)
	assert.Empty(t, players.BotsInRoom(roomID))
	assert.Equal(t, []string{"host"}, rooms.Get(roomID).Players)
	assert.Equal(t, 0, svc.CountBots(roomID))
}
