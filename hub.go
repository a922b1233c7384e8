package main

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Conn wraps one WebSocket session. The mutex serializes writes; gorilla
// allows only one concurrent writer per connection.
type Conn struct {
	ID     string
	ws     *websocket.Conn
	mu     sync.Mutex
	closed bool
}

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ID: uuid.New().String(), ws: ws}
}

// Send writes one enveloped event to the socket. Writes after Close are
// silently dropped.
func (c *Conn) Send(event string, data any) error {
	payload, err := json.Marshal(OutEnvelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.ws.Close()
}

// Hub owns all live connections and dispatches their events to the room,
// player, bot and engine layers. One Hub serves the whole process.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn // session id -> conn

	rooms   *RoomRegistry
	players *PlayerRegistry
	engine  *Engine
	bots    *BotService
	cfg     Config
	log     *zap.SugaredLogger

	stop     chan struct{}
	stopOnce sync.Once
}

func NewHub(rooms *RoomRegistry, players *PlayerRegistry, engine *Engine, bots *BotService, cfg Config, log *zap.SugaredLogger) *Hub {
	return &Hub{
		conns:   make(map[string]*Conn),
		rooms:   rooms,
		players: players,
		engine:  engine,
		bots:    bots,
		cfg:     cfg,
		log:     log,
		stop:    make(chan struct{}),
	}
}

// Serve runs a connection until it drops. Blocks; callers run it per
// upgraded socket.
func (h *Hub) Serve(ws *websocket.Conn) {
	conn := NewConn(ws)
	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.mu.Unlock()
	h.log.Debugw("client connected", "session", conn.ID)

	defer func() {
		h.handleDisconnect(conn)
		h.mu.Lock()
		delete(h.conns, conn.ID)
		h.mu.Unlock()
		conn.Close()
		h.log.Debugw("client disconnected", "session", conn.ID)
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugw("read error", "session", conn.ID, "err", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.sendError(conn, "malformed message")
			continue
		}
		h.dispatch(conn, env)
	}
}

// dispatch routes one event. A panicking handler answers the sender with an
// error instead of taking the whole connection loop down.
func (h *Hub) dispatch(conn *Conn, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorw("handler panicked", "event", env.Event, "session", conn.ID, "panic", r)
			h.sendError(conn, "internal server error")
		}
	}()

	h.players.TouchSession(conn.ID)
	if rec := h.players.GetBySession(conn.ID); rec != nil {
		h.rooms.Touch(rec.RoomID)
	}

	switch env.Event {
	case EvCreateRoom:
		h.handleCreateRoom(conn, env.Data)
	case EvJoinRoom:
		h.handleJoinRoom(conn, env.Data)
	case EvPlayerReady:
		h.handlePlayerReady(conn, env.Data)
	case EvStartGame:
		h.handleStartGame(conn)
	case EvRestartGame:
		h.handleRestartGame(conn)
	case EvGameInput, EvGameInput3D:
		h.handleGameInput(conn, env.Data)
	case EvChatMessage:
		h.handleChat(conn, env.Data)
	case EvAddBot:
		h.handleAddBot(conn, env.Data)
	case EvRemoveBot:
		h.handleRemoveBot(conn, env.Data)
	case EvUpdateSettings:
		h.handleUpdateSettings(conn, env.Data)
	default:
		h.sendError(conn, "unknown event")
	}
}

func (h *Hub) handleCreateRoom(conn *Conn, data json.RawMessage) {
	var req CreateRoomPayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, "malformed message")
		return
	}
	if err := ValidatePlayerName(req.PlayerName); err != nil {
		h.sendError(conn, err.Error())
		return
	}

	settings := DefaultGameSettings()
	if req.GameSettings != nil {
		settings = *req.GameSettings
		if err := settings.Validate(); err != nil {
			h.sendError(conn, err.Error())
			return
		}
	}

	playerID := newEntityID()
	roomID, code := h.rooms.Create(playerID, settings)
	color := h.players.AvailableColor(roomID, req.PreferredColor)
	h.players.Upsert(playerID, conn.ID, strings.TrimSpace(req.PlayerName), color, roomID)

	conn.Send(EvRoomJoined, RoomJoinedPayload{
		RoomID:       roomID,
		PlayerID:     playerID,
		IsHost:       true,
		GameSettings: settings,
	})
	conn.Send(EvRoomCode, RoomCodePayload{Code: code})
	h.broadcastPlayerList(roomID)
	h.log.Infow("room created", "room", roomID, "code", code, "host", req.PlayerName)
}

func (h *Hub) handleJoinRoom(conn *Conn, data json.RawMessage) {
	var req JoinRoomPayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, "malformed message")
		return
	}
	if err := ValidatePlayerName(req.PlayerName); err != nil {
		h.sendError(conn, err.Error())
		return
	}

	name := strings.TrimSpace(req.PlayerName)
	playerID := newEntityID()
	room := h.rooms.Join(playerID, strings.ToUpper(strings.TrimSpace(req.RoomCode)))
	if room == nil {
		h.sendError(conn, "room not found or full")
		return
	}
	if !h.players.NameAvailable(room.ID, name) {
		h.rooms.Leave(playerID)
		h.sendError(conn, "name already taken")
		return
	}

	color := h.players.AvailableColor(room.ID, req.PreferredColor)
	h.players.Upsert(playerID, conn.ID, name, color, room.ID)

	conn.Send(EvRoomJoined, RoomJoinedPayload{
		RoomID:       room.ID,
		PlayerID:     playerID,
		IsHost:       false,
		GameSettings: room.Settings,
	})
	h.broadcastPlayerList(room.ID)
	h.systemChat(room.ID, name+" joined the room")
	h.log.Infow("player joined", "room", room.ID, "player", name)
}

func (h *Hub) handlePlayerReady(conn *Conn, data json.RawMessage) {
	var req PlayerReadyPayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, "malformed message")
		return
	}
	rec := h.players.GetBySession(conn.ID)
	if rec == nil {
		h.sendError(conn, "player not found")
		return
	}
	h.players.SetReady(rec.ID, req.Ready)
	h.broadcastPlayerList(rec.RoomID)
}

func (h *Hub) handleStartGame(conn *Conn) {
	rec := h.players.GetBySession(conn.ID)
	if rec == nil {
		h.sendError(conn, "player not found")
		return
	}
	room := h.rooms.Get(rec.RoomID)
	if room == nil {
		h.sendError(conn, "room not found")
		return
	}
	if !h.rooms.IsHost(rec.ID, room.ID) {
		h.sendError(conn, "only the host can start the game")
		return
	}

	roster := h.players.ListInRoom(room.ID)
	for _, p := range roster {
		if !p.Ready {
			h.sendError(conn, "not all players are ready")
			return
		}
	}

	ids := make([]string, len(roster))
	for i, p := range roster {
		ids[i] = p.ID
	}

	state, err := h.engine.Start(room.ID, ids, room.Settings)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}
	h.rooms.UpdateStatus(room.ID, RoomPlaying)

	h.broadcastRoom(room.ID, EvGameStarted, GameStartedPayload{GameState: state})
	go h.broadcastLoop(room.ID)
}

func (h *Hub) handleRestartGame(conn *Conn) {
	rec := h.players.GetBySession(conn.ID)
	if rec == nil {
		h.sendError(conn, "player not found")
		return
	}
	room := h.rooms.Get(rec.RoomID)
	if room == nil {
		h.sendError(conn, "room not found")
		return
	}
	if !h.rooms.IsHost(rec.ID, room.ID) {
		h.sendError(conn, "only the host can restart the game")
		return
	}

	// Drop, not Stop: discarding the state makes the broadcast loop exit
	// without announcing standings for the aborted game.
	h.engine.Drop(room.ID)
	h.rooms.UpdateStatus(room.ID, RoomWaiting)

	// Humans must ready up again; SetReady keeps bots ready.
	for _, p := range h.players.ListInRoom(room.ID) {
		h.players.SetReady(p.ID, false)
	}

	h.broadcastPlayerList(room.ID)
	h.systemChat(room.ID, "The game was restarted. All players must ready up again.")
}

func (h *Hub) handleGameInput(conn *Conn, data json.RawMessage) {
	var req GameInputPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	rec := h.players.GetBySession(conn.ID)
	if rec == nil {
		return
	}
	// Rejected intents (reversals, dead player, no game) are dropped
	// without an error frame; input is fire-and-forget.
	h.engine.SetHeading(rec.RoomID, rec.ID, req.Direction)
}

func (h *Hub) handleChat(conn *Conn, data json.RawMessage) {
	var req ChatMessagePayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, "malformed message")
		return
	}
	rec := h.players.GetBySession(conn.ID)
	if rec == nil {
		h.sendError(conn, "player not found")
		return
	}

	msg := strings.TrimSpace(req.Message)
	if msg == "" || len(msg) > ChatMaxLength {
		h.sendError(conn, "invalid message")
		return
	}

	h.broadcastRoom(rec.RoomID, EvChatMessage, ChatBroadcastPayload{
		PlayerID:   rec.ID,
		PlayerName: rec.Name,
		Message:    msg,
		Timestamp:  time.Now().UnixMilli(),
	})
}

func (h *Hub) handleAddBot(conn *Conn, data json.RawMessage) {
	var req AddBotPayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, "malformed message")
		return
	}
	_, room := h.hostAndIdleRoom(conn, "add bots")
	if room == nil {
		return
	}

	bot, err := h.bots.AddBot(room.ID, req.Difficulty)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}

	h.broadcastRoom(room.ID, EvBotAdded, BotAddedPayload{Bot: BotInfo{
		ID:         bot.ID,
		Name:       bot.Name,
		Color:      bot.Color,
		Difficulty: bot.Difficulty,
	}})
	h.broadcastPlayerList(room.ID)
	h.systemChat(room.ID, "Bot "+bot.Name+" ("+string(req.Difficulty)+") was added")
}

func (h *Hub) handleRemoveBot(conn *Conn, data json.RawMessage) {
	var req RemoveBotPayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, "malformed message")
		return
	}
	_, room := h.hostAndIdleRoom(conn, "remove bots")
	if room == nil {
		return
	}

	botName := "Unknown"
	if bot := h.players.Get(req.BotID); bot != nil {
		botName = bot.Name
	}
	if !h.bots.RemoveBot(room.ID, req.BotID) {
		h.sendError(conn, "bot could not be removed")
		return
	}

	h.broadcastRoom(room.ID, EvBotRemoved, BotRemovedPayload{BotID: req.BotID})
	h.broadcastPlayerList(room.ID)
	h.systemChat(room.ID, "Bot "+botName+" was removed")
}

func (h *Hub) handleUpdateSettings(conn *Conn, data json.RawMessage) {
	var req UpdateSettingsPayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, "malformed message")
		return
	}
	_, room := h.hostAndIdleRoom(conn, "change settings")
	if room == nil {
		return
	}

	updated := req.GameSettings.Apply(room.Settings)
	if err := updated.Validate(); err != nil {
		h.sendError(conn, err.Error())
		return
	}
	if err := h.rooms.UpdateSettings(room.ID, updated); err != nil {
		h.sendError(conn, err.Error())
		return
	}
	h.broadcastRoom(room.ID, EvSettingsUpdated, SettingsUpdatedPayload{GameSettings: updated})
}

// hostAndIdleRoom resolves the sender's player and room and enforces the
// host-only, lobby-only preconditions shared by bot and settings commands.
// Returns a nil room after answering the sender with the matching error.
func (h *Hub) hostAndIdleRoom(conn *Conn, action string) (*PlayerRecord, *Room) {
	rec := h.players.GetBySession(conn.ID)
	if rec == nil {
		h.sendError(conn, "player not found")
		return nil, nil
	}
	room := h.rooms.Get(rec.RoomID)
	if room == nil {
		h.sendError(conn, "room not found")
		return nil, nil
	}
	if !h.rooms.IsHost(rec.ID, room.ID) {
		h.sendError(conn, "only the host can "+action)
		return nil, nil
	}
	if room.Status == RoomPlaying {
		h.sendError(conn, "cannot "+action+" while the game is running")
		return nil, nil
	}
	return rec, room
}

// handleDisconnect cleans up after a dropped socket: the player leaves the
// room, a running game ends for the remaining players, and the last human
// out tears the room down.
func (h *Hub) handleDisconnect(conn *Conn) {
	playerID := h.players.RemoveBySession(conn.ID)
	if playerID == "" {
		return
	}

	roomID, wasLast, ok := h.rooms.Leave(playerID)
	if !ok {
		return
	}

	if wasLast {
		h.engine.Drop(roomID)
		h.bots.RemoveAllInRoom(roomID)
		return
	}

	h.broadcastPlayerList(roomID)
	if state := h.engine.State(roomID); state != nil && state.Status == GamePlaying {
		h.engine.Drop(roomID)
		h.rooms.UpdateStatus(roomID, RoomWaiting)
		h.broadcastRoom(roomID, EvGameEnded, GameEndedPayload{Results: []GameResult{}})
	}
}

// broadcastLoop pushes state frames to the room until the game ends, then
// sends the final standings. Runs at a fixed rate independent of the
// simulation tick so slow settings still render smoothly.
func (h *Hub) broadcastLoop(roomID string) {
	ticker := time.NewTicker(time.Second / BroadcastRate)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			state := h.engine.State(roomID)
			if state == nil {
				return
			}
			if state.Status == GameFinished {
				h.finishGame(roomID)
				return
			}
			h.broadcastRoom(roomID, EvGameStateUpdate, GameStateUpdatePayload{
				GameState: state,
				Timestamp: time.Now().UnixMilli(),
			})
		}
	}
}

// finishGame resolves player names into the standings and announces the end
// of the game.
func (h *Hub) finishGame(roomID string) {
	results, duration := h.engine.Results(roomID)
	for i := range results {
		if rec := h.players.Get(results[i].PlayerID); rec != nil {
			results[i].PlayerName = rec.Name
		} else {
			results[i].PlayerName = "Unknown"
		}
	}
	h.rooms.UpdateStatus(roomID, RoomFinished)
	h.broadcastRoom(roomID, EvGameEnded, GameEndedPayload{
		Results:  results,
		Duration: duration.Milliseconds(),
	})
}

// broadcastRoom fans one event out to every connected member of the room.
func (h *Hub) broadcastRoom(roomID, event string, data any) {
	members := h.players.ListInRoom(roomID)
	h.mu.RLock()
	var targets []*Conn
	for _, rec := range members {
		if rec.SessionID == "" {
			continue
		}
		if c, ok := h.conns[rec.SessionID]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(event, data); err != nil {
			h.log.Debugw("broadcast send failed", "room", roomID, "session", c.ID, "err", err)
		}
	}
}

func (h *Hub) broadcastPlayerList(roomID string) {
	room := h.rooms.Get(roomID)
	if room == nil {
		return
	}
	players := h.players.FormatForBroadcast(roomID, room.HostID)
	h.broadcastRoom(roomID, EvPlayerListUpdate, PlayerListPayload{Players: players})
}

func (h *Hub) systemChat(roomID, message string) {
	h.broadcastRoom(roomID, EvChatMessage, ChatBroadcastPayload{
		PlayerID:   "system",
		PlayerName: "System",
		Message:    message,
		Timestamp:  time.Now().UnixMilli(),
	})
}

func (h *Hub) sendError(conn *Conn, msg string) {
	conn.Send(EvError, ErrorPayload{Message: msg})
}

// StartSweeps arms the background expiry of idle rooms and stale sessions.
func (h *Hub) StartSweeps() {
	go func() {
		ticker := time.NewTicker(h.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				h.sweep()
			}
		}
	}()
}

func (h *Hub) sweep() {
	for _, roomID := range h.rooms.ExpireInactive(h.cfg.RoomIdleTimeout) {
		h.engine.Drop(roomID)
		h.bots.RemoveAllInRoom(roomID)
		for _, rec := range h.players.ListInRoom(roomID) {
			h.players.Remove(rec.ID)
		}
		h.log.Infow("expired idle room", "room", roomID)
	}

	for _, playerID := range h.players.ExpireSessions(h.cfg.SessionIdleTimeout) {
		if roomID, wasLast, ok := h.rooms.Leave(playerID); ok {
			if wasLast {
				h.engine.Drop(roomID)
				h.bots.RemoveAllInRoom(roomID)
			} else {
				h.broadcastPlayerList(roomID)
			}
		}
		h.log.Infow("expired stale session", "player", playerID)
	}
}

// Shutdown stops the sweep and broadcast loops.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.stop) })
}
