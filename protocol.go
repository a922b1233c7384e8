package main

import "encoding/json"

// Protocol: every WebSocket frame is a JSON envelope {"event":...,"data":...}.
// Payloads carry full words since lobby traffic is low-rate and only
// game-state-update runs hot.
//
//   Client → Server:
//     create-room          {playerName, gameSettings}
//     join-room            {roomCode, playerName}
//     player-ready         {ready}
//     start-game           {}
//     restart-game         {}
//     game-input           {direction}
//     game-input-3d        {direction}
//     chat-message         {message}
//     add-bot              {difficulty}
//     remove-bot           {botId}
//     update-game-settings {gameSettings}   (partial, merged over current)
//   Server → Client:
//     room-joined, room-code, player-list-update, game-started,
//     game-state-update, game-ended, chat-message, game-settings-updated,
//     bot-added, bot-removed, error

// Client → server event names.
const (
	EvCreateRoom     = "create-room"
	EvJoinRoom       = "join-room"
	EvPlayerReady    = "player-ready"
	EvStartGame      = "start-game"
	EvRestartGame    = "restart-game"
	EvGameInput      = "game-input"
	EvGameInput3D    = "game-input-3d"
	EvChatMessage    = "chat-message"
	EvAddBot         = "add-bot"
	EvRemoveBot      = "remove-bot"
	EvUpdateSettings = "update-game-settings"
)

// Server → client event names.
const (
	EvRoomJoined       = "room-joined"
	EvRoomCode         = "room-code"
	EvPlayerListUpdate = "player-list-update"
	EvGameStarted      = "game-started"
	EvGameStateUpdate  = "game-state-update"
	EvGameEnded        = "game-ended"
	EvSettingsUpdated  = "game-settings-updated"
	EvBotAdded         = "bot-added"
	EvBotRemoved       = "bot-removed"
	EvError            = "error"
)

// Envelope is the wire frame. Data stays raw on receive so each handler can
// decode its own payload type.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OutEnvelope is the send-side frame.
type OutEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// CreateRoomPayload opens a new room with the sender as host. Settings are
// optional; nil means defaults. PreferredColor is a hint, honored only when
// that palette entry is still free in the room.
type CreateRoomPayload struct {
	PlayerName     string        `json:"playerName"`
	PreferredColor string        `json:"preferredColor"`
	GameSettings   *GameSettings `json:"gameSettings"`
}

type JoinRoomPayload struct {
	RoomCode       string `json:"roomCode"`
	PlayerName     string `json:"playerName"`
	PreferredColor string `json:"preferredColor"`
}

type PlayerReadyPayload struct {
	Ready bool `json:"ready"`
}

// GameInputPayload carries a heading intent for either dimensionality.
type GameInputPayload struct {
	Direction Direction `json:"direction"`
}

type ChatMessagePayload struct {
	Message string `json:"message"`
}

type AddBotPayload struct {
	Difficulty BotDifficulty `json:"difficulty"`
}

type RemoveBotPayload struct {
	BotID string `json:"botId"`
}

// SettingsPatch is a partial settings update. Nil fields keep the room's
// current value, matching the merge-over-current semantics hosts expect.
type SettingsPatch struct {
	MaxPlayers *int    `json:"maxPlayers"`
	GameSpeed  *int    `json:"gameSpeed"`
	BoardSize  *string `json:"boardSize"`
	GameMode   *string `json:"gameMode"`
	Is3D       *bool   `json:"is3D"`
}

// Apply merges the patch over base and returns the result.
func (p SettingsPatch) Apply(base GameSettings) GameSettings {
	if p.MaxPlayers != nil {
		base.MaxPlayers = *p.MaxPlayers
	}
	if p.GameSpeed != nil {
		base.GameSpeed = *p.GameSpeed
	}
	if p.BoardSize != nil {
		base.BoardSize = *p.BoardSize
	}
	if p.GameMode != nil {
		base.GameMode = *p.GameMode
	}
	if p.Is3D != nil {
		base.Is3D = *p.Is3D
	}
	return base
}

type UpdateSettingsPayload struct {
	GameSettings SettingsPatch `json:"gameSettings"`
}

// RoomJoinedPayload confirms room entry to the joining client only.
type RoomJoinedPayload struct {
	RoomID       string       `json:"roomId"`
	PlayerID     string       `json:"playerId"`
	IsHost       bool         `json:"isHost"`
	GameSettings GameSettings `json:"gameSettings"`
}

type RoomCodePayload struct {
	Code string `json:"code"`
}

type PlayerListPayload struct {
	Players []PublicPlayer `json:"players"`
}

type GameStartedPayload struct {
	GameState *GameState `json:"gameState"`
}

// GameStateUpdatePayload is the hot-path broadcast frame.
type GameStateUpdatePayload struct {
	GameState *GameState `json:"gameState"`
	Timestamp int64      `json:"timestamp"`
}

type GameEndedPayload struct {
	Results  []GameResult `json:"results"`
	Duration int64        `json:"duration"`
}

// ChatBroadcastPayload is a chat line fanned out to the room. System lines
// use playerId "system".
type ChatBroadcastPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
}

type SettingsUpdatedPayload struct {
	GameSettings GameSettings `json:"gameSettings"`
}

// BotInfo describes a bot to the lobby.
type BotInfo struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Color      string        `json:"color"`
	Difficulty BotDifficulty `json:"difficulty"`
}

type BotAddedPayload struct {
	Bot BotInfo `json:"bot"`
}

type BotRemovedPayload struct {
	BotID string `json:"botId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
