package main

import (
	"fmt"

	"go.uber.org/zap"
)

// BotService coordinates the three places a bot lives: the player registry
// (roster entry), the room membership list, and the AI runtime. Keeping the
// three moves in one spot means a bot can never be half-added.
type BotService struct {
	rooms   *RoomRegistry
	players *PlayerRegistry
	ai      *BotAI
	log     *zap.SugaredLogger
}

func NewBotService(rooms *RoomRegistry, players *PlayerRegistry, ai *BotAI, log *zap.SugaredLogger) *BotService {
	return &BotService{rooms: rooms, players: players, ai: ai, log: log}
}

// AddBot creates a bot in the room. The bot gets a tier-flavored name that
// is unique in the room, the first free palette color, and is ready
// immediately.
func (s *BotService) AddBot(roomID string, difficulty BotDifficulty) (*PlayerRecord, error) {
	if !difficulty.Valid() {
		return nil, fmt.Errorf("unknown bot difficulty %q", difficulty)
	}
	room := s.rooms.Get(roomID)
	if room == nil {
		return nil, fmt.Errorf("room not found")
	}
	if len(room.Players) >= room.Settings.MaxPlayers {
		return nil, fmt.Errorf("room is full")
	}

	name := s.ai.NewBotName(difficulty)
	for tries := 0; !s.players.NameAvailable(roomID, name) && tries < 10; tries++ {
		name = s.ai.NewBotName(difficulty)
	}

	botID := "bot_" + newEntityID()
	color := s.players.AvailableColor(roomID, "")
	rec := s.players.AddBot(botID, name, color, roomID, difficulty)
	if !s.rooms.AddMember(roomID, botID) {
		s.players.Remove(botID)
		return nil, fmt.Errorf("room is full")
	}
	s.ai.Register(botID, difficulty)

	s.log.Infow("bot added", "room", roomID, "bot", name, "difficulty", difficulty)
	return rec, nil
}

// RemoveBot deletes a bot from the room. Returns false when the id is not a
// bot in that room.
func (s *BotService) RemoveBot(roomID, botID string) bool {
	rec := s.players.Get(botID)
	if rec == nil || !rec.IsBot || rec.RoomID != roomID {
		return false
	}
	s.ai.Unregister(botID)
	s.players.Remove(botID)
	s.rooms.Leave(botID)
	s.log.Infow("bot removed", "room", roomID, "bot", rec.Name)
	return true
}

// RemoveAllInRoom clears every bot from the room, typically on teardown.
func (s *BotService) RemoveAllInRoom(roomID string) {
	for _, bot := range s.players.BotsInRoom(roomID) {
		s.RemoveBot(roomID, bot.ID)
	}
}

// IsBot reports whether the id belongs to a bot.
func (s *BotService) IsBot(playerID string) bool {
	rec := s.players.Get(playerID)
	return rec != nil && rec.IsBot
}

// CountBots returns how many bots the room holds.
func (s *BotService) CountBots(roomID string) int {
	return len(s.players.BotsInRoom(roomID))
}

// CountRealPlayers returns how many human members the room holds.
func (s *BotService) CountRealPlayers(roomID string) int {
	n := 0
	for _, rec := range s.players.ListInRoom(roomID) {
		if !rec.IsBot {
			n++
		}
	}
	return n
}
