package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RoomStatus is the room lifecycle state.
type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

// Room is one isolated game session. Players holds member ids (humans and
// bots) in join order; that order is also the engine's processing order.
type Room struct {
	ID           string
	Code         string
	HostID       string
	Players      []string
	Settings     GameSettings
	Status       RoomStatus
	CreatedAt    time.Time
	LastActivity time.Time
}

// RoomInfo is the public view served over REST.
type RoomInfo struct {
	RoomID      string       `json:"roomId"`
	PlayerCount int          `json:"playerCount"`
	MaxPlayers  int          `json:"maxPlayers"`
	GameStatus  RoomStatus   `json:"gameStatus"`
	Settings    GameSettings `json:"gameSettings"`
}

// RoomRegistry owns room existence, codes, membership and lifecycle. It has
// no knowledge of simulation internals.
type RoomRegistry struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	codes       map[string]string // code -> roomId
	playerRooms map[string]string // playerId -> roomId
	log         *zap.SugaredLogger
}

// NewRoomRegistry creates an empty registry.
func NewRoomRegistry(log *zap.SugaredLogger) *RoomRegistry {
	return &RoomRegistry{
		rooms:       make(map[string]*Room),
		codes:       make(map[string]string),
		playerRooms: make(map[string]string),
		log:         log,
	}
}

// Create opens a new room with the given host as its first member.
func (r *RoomRegistry) Create(hostID string, settings GameSettings) (roomID, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID = newEntityID()
	code = r.newRoomCodeLocked()
	now := time.Now()

	r.rooms[roomID] = &Room{
		ID:           roomID,
		Code:         code,
		HostID:       hostID,
		Players:      []string{hostID},
		Settings:     settings,
		Status:       RoomWaiting,
		CreatedAt:    now,
		LastActivity: now,
	}
	r.codes[code] = roomID
	r.playerRooms[hostID] = roomID

	r.log.Infow("room created", "code", code, "room", roomID, "host", hostID)
	return roomID, code
}

// Join adds a player to the room identified by code. Returns nil when the
// code is unknown, the room is full or no longer waiting; joining a room the
// player is already in is an idempotent no-op returning the room.
func (r *RoomRegistry) Join(playerID, code string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.codes[code]
	if !ok {
		return nil
	}
	room := r.rooms[roomID]
	if room == nil || room.Status != RoomWaiting {
		return nil
	}
	for _, id := range room.Players {
		if id == playerID {
			return r.copyRoomLocked(room)
		}
	}
	if len(room.Players) >= room.Settings.MaxPlayers {
		return nil
	}

	room.Players = append(room.Players, playerID)
	room.LastActivity = time.Now()
	r.playerRooms[playerID] = roomID

	r.log.Infow("player joined room", "code", code, "player", playerID)
	return r.copyRoomLocked(room)
}

// AddMember appends a member (used for bots) without the waiting/code checks
// the human join path applies. The caller validates capacity and status.
func (r *RoomRegistry) AddMember(roomID, memberID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[roomID]
	if room == nil {
		return false
	}
	room.Players = append(room.Players, memberID)
	room.LastActivity = time.Now()
	r.playerRooms[memberID] = roomID
	return true
}

// Leave removes the player from whichever room holds them. When the last
// member leaves the room is destroyed; when the host leaves, the first
// remaining member is promoted silently.
func (r *RoomRegistry) Leave(playerID string) (roomID string, wasLast bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok = r.playerRooms[playerID]
	if !ok {
		return "", false, false
	}
	delete(r.playerRooms, playerID)

	room := r.rooms[roomID]
	if room == nil {
		return "", false, false
	}

	members := room.Players[:0]
	for _, id := range room.Players {
		if id != playerID {
			members = append(members, id)
		}
	}
	room.Players = members
	room.LastActivity = time.Now()

	if len(room.Players) == 0 {
		delete(r.rooms, roomID)
		delete(r.codes, room.Code)
		r.log.Infow("empty room deleted", "code", room.Code)
		return roomID, true, true
	}

	if room.HostID == playerID {
		room.HostID = room.Players[0]
		r.log.Infow("host reassigned", "code", room.Code, "host", room.HostID)
	}
	return roomID, false, true
}

// Get returns a copy of the room, or nil.
func (r *RoomRegistry) Get(roomID string) *Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[roomID]
	if room == nil {
		return nil
	}
	return r.copyRoomLocked(room)
}

// Info returns the public room view, or nil.
func (r *RoomRegistry) Info(roomID string) *RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[roomID]
	if room == nil {
		return nil
	}
	return &RoomInfo{
		RoomID:      room.ID,
		PlayerCount: len(room.Players),
		MaxPlayers:  room.Settings.MaxPlayers,
		GameStatus:  room.Status,
		Settings:    room.Settings,
	}
}

// Joinable lists waiting rooms with free slots.
func (r *RoomRegistry) Joinable() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []RoomInfo{}
	for _, room := range r.rooms {
		if room.Status == RoomWaiting && len(room.Players) < room.Settings.MaxPlayers {
			out = append(out, RoomInfo{
				RoomID:      room.ID,
				PlayerCount: len(room.Players),
				MaxPlayers:  room.Settings.MaxPlayers,
				GameStatus:  room.Status,
				Settings:    room.Settings,
			})
		}
	}
	return out
}

// UpdateStatus moves the room through its lifecycle and refreshes activity.
func (r *RoomRegistry) UpdateStatus(roomID string, status RoomStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room := r.rooms[roomID]; room != nil {
		room.Status = status
		room.LastActivity = time.Now()
	}
}

// UpdateSettings replaces the room settings. Rejected while a game runs.
func (r *RoomRegistry) UpdateSettings(roomID string, settings GameSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[roomID]
	if room == nil {
		return fmt.Errorf("room not found")
	}
	if room.Status == RoomPlaying {
		return fmt.Errorf("settings cannot be changed during a game")
	}
	room.Settings = settings
	room.LastActivity = time.Now()
	return nil
}

// Touch refreshes the room's activity timestamp.
func (r *RoomRegistry) Touch(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room := r.rooms[roomID]; room != nil {
		room.LastActivity = time.Now()
	}
}

// RoomOf returns the room id a player belongs to.
func (r *RoomRegistry) RoomOf(playerID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.playerRooms[playerID]
	return id, ok
}

// IsHost reports whether the player hosts the room.
func (r *RoomRegistry) IsHost(playerID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[roomID]
	return room != nil && room.HostID == playerID
}

// ExpireInactive removes rooms idle longer than maxIdle, dropping all member
// bindings. Returns the ids of removed rooms so the caller can tear down any
// attached simulation state.
func (r *RoomRegistry) ExpireInactive(maxIdle time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	var removed []string
	for id, room := range r.rooms {
		if room.LastActivity.Before(cutoff) {
			for _, pid := range room.Players {
				delete(r.playerRooms, pid)
			}
			delete(r.rooms, id)
			delete(r.codes, room.Code)
			removed = append(removed, id)
			r.log.Infow("inactive room expired", "code", room.Code)
		}
	}
	return removed
}

func (r *RoomRegistry) copyRoomLocked(room *Room) *Room {
	cp := *room
	cp.Players = append([]string(nil), room.Players...)
	return &cp
}

// newRoomCodeLocked generates a human-entry code, retrying on the rare
// collision with a live room.
func (r *RoomRegistry) newRoomCodeLocked() string {
	for {
		code := randomCode(RoomCodeLength)
		if _, taken := r.codes[code]; !taken {
			return code
		}
	}
}

func randomCode(n int) string {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(RoomCodeAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing means the process is in no state to
			// keep serving games.
			panic(err)
		}
		buf[i] = RoomCodeAlphabet[idx.Int64()]
	}
	return string(buf)
}

// newEntityID returns a random hex identifier for rooms, players and bots.
func newEntityID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
