package main

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BotDifficulty selects a bot's decision quality and thinking rate.
type BotDifficulty string

const (
	BotEasy   BotDifficulty = "easy"
	BotMedium BotDifficulty = "medium"
	BotHard   BotDifficulty = "hard"
)

// Valid reports whether the difficulty names a known tier.
func (d BotDifficulty) Valid() bool {
	return d == BotEasy || d == BotMedium || d == BotHard
}

// MoveDelay is how long a bot replays its cached heading before thinking
// again. Harder bots think more often.
func (d BotDifficulty) MoveDelay() time.Duration {
	switch d {
	case BotEasy:
		return BotDelayEasy
	case BotHard:
		return BotDelayHard
	default:
		return BotDelayMedium
	}
}

// PlayerRecord is the registry's view of one player or bot.
type PlayerRecord struct {
	ID        string
	Name      string
	Color     string
	RoomID    string
	SessionID string // empty for bots
	Ready     bool
	JoinedAt  time.Time

	IsBot      bool
	Difficulty BotDifficulty
}

// PublicPlayer is the player view broadcast to clients; the session handle
// stays server-side.
type PublicPlayer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Ready  bool   `json:"ready"`
	IsHost bool   `json:"isHost"`
	Score  int    `json:"score"`
	Alive  bool   `json:"alive"`
	IsBot  bool   `json:"isBot"`
}

type sessionInfo struct {
	playerID string
	lastSeen time.Time
}

var nameCharset = regexp.MustCompile(`^[a-zA-Z0-9 ]+$`)

// ValidatePlayerName checks the display-name rules. The error message is
// surfaced to the client.
func ValidatePlayerName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("name must not be empty")
	}
	if len(trimmed) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	if len(trimmed) > 20 {
		return fmt.Errorf("name must be at most 20 characters")
	}
	if !nameCharset.MatchString(trimmed) {
		return fmt.Errorf("name may only contain letters, numbers and spaces")
	}
	return nil
}

// PlayerRegistry owns player identity, session binding and readiness.
type PlayerRegistry struct {
	mu              sync.RWMutex
	players         map[string]*PlayerRecord
	sessions        map[string]*sessionInfo // sessionID -> session
	sessionToPlayer map[string]string       // sessionID -> playerID
	log             *zap.SugaredLogger
}

// NewPlayerRegistry creates an empty registry.
func NewPlayerRegistry(log *zap.SugaredLogger) *PlayerRegistry {
	return &PlayerRegistry{
		players:         make(map[string]*PlayerRecord),
		sessions:        make(map[string]*sessionInfo),
		sessionToPlayer: make(map[string]string),
		log:             log,
	}
}

// Upsert creates a player or re-binds an existing one to a new session.
// Re-binding preserves the ready flag and join time, which is what makes
// reconnects seamless.
func (p *PlayerRegistry) Upsert(playerID, sessionID, name, color, roomID string) *PlayerRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec := p.players[playerID]
	if rec == nil {
		rec = &PlayerRecord{ID: playerID, JoinedAt: time.Now()}
		p.players[playerID] = rec
	} else if rec.SessionID != "" && rec.SessionID != sessionID {
		delete(p.sessions, rec.SessionID)
		delete(p.sessionToPlayer, rec.SessionID)
	}

	rec.Name = strings.TrimSpace(name)
	rec.Color = color
	rec.RoomID = roomID
	rec.SessionID = sessionID

	if sessionID != "" {
		p.sessions[sessionID] = &sessionInfo{playerID: playerID, lastSeen: time.Now()}
		p.sessionToPlayer[sessionID] = playerID
	}
	return p.copyLocked(rec)
}

// AddBot registers a bot as a player variant: always ready, no session.
func (p *PlayerRegistry) AddBot(botID, name, color, roomID string, difficulty BotDifficulty) *PlayerRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec := &PlayerRecord{
		ID:         botID,
		Name:       name,
		Color:      color,
		RoomID:     roomID,
		Ready:      true,
		JoinedAt:   time.Now(),
		IsBot:      true,
		Difficulty: difficulty,
	}
	p.players[botID] = rec
	return p.copyLocked(rec)
}

// Get returns a copy of the player, or nil.
func (p *PlayerRegistry) Get(playerID string) *PlayerRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec := p.players[playerID]
	if rec == nil {
		return nil
	}
	return p.copyLocked(rec)
}

// GetBySession resolves a network session to its player.
func (p *PlayerRegistry) GetBySession(sessionID string) *PlayerRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.sessionToPlayer[sessionID]
	if !ok {
		return nil
	}
	rec := p.players[id]
	if rec == nil {
		return nil
	}
	return p.copyLocked(rec)
}

// SetReady flips the readiness flag. Bots stay ready regardless.
func (p *PlayerRegistry) SetReady(playerID string, ready bool) *PlayerRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec := p.players[playerID]
	if rec == nil {
		return nil
	}
	if rec.IsBot {
		rec.Ready = true
	} else {
		rec.Ready = ready
	}
	return p.copyLocked(rec)
}

// Remove drops a player and its session binding.
func (p *PlayerRegistry) Remove(playerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec := p.players[playerID]
	if rec == nil {
		return
	}
	if rec.SessionID != "" {
		delete(p.sessions, rec.SessionID)
		delete(p.sessionToPlayer, rec.SessionID)
	}
	delete(p.players, playerID)
}

// RemoveBySession drops the player bound to a session; used on disconnect.
// Returns the removed player id, or "" when the session is unknown (the
// disconnect path tolerates entities that are already gone).
func (p *PlayerRegistry) RemoveBySession(sessionID string) string {
	p.mu.Lock()
	playerID, ok := p.sessionToPlayer[sessionID]
	p.mu.Unlock()
	if !ok {
		return ""
	}
	p.Remove(playerID)
	return playerID
}

// ListInRoom returns the players bound to a room, join-ordered.
func (p *PlayerRegistry) ListInRoom(roomID string) []*PlayerRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*PlayerRecord
	for _, rec := range p.players {
		if rec.RoomID == roomID {
			out = append(out, p.copyLocked(rec))
		}
	}
	sortPlayersByJoin(out)
	return out
}

// BotsInRoom returns only the bot members of a room.
func (p *PlayerRegistry) BotsInRoom(roomID string) []*PlayerRecord {
	var out []*PlayerRecord
	for _, rec := range p.ListInRoom(roomID) {
		if rec.IsBot {
			out = append(out, rec)
		}
	}
	return out
}

// FormatForBroadcast builds the public player list for a room.
func (p *PlayerRegistry) FormatForBroadcast(roomID, hostID string) []PublicPlayer {
	players := p.ListInRoom(roomID)
	out := make([]PublicPlayer, 0, len(players))
	for _, rec := range players {
		out = append(out, PublicPlayer{
			ID:     rec.ID,
			Name:   rec.Name,
			Color:  rec.Color,
			Ready:  rec.Ready,
			IsHost: rec.ID == hostID,
			Score:  0,
			Alive:  true,
			IsBot:  rec.IsBot,
		})
	}
	return out
}

// AvailableColor picks the first palette entry unused in the room, honoring
// the requested color when it is a free palette entry. Falls back to the
// first palette color when the palette is exhausted.
func (p *PlayerRegistry) AvailableColor(roomID, requested string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	used := make(map[string]bool)
	for _, rec := range p.players {
		if rec.RoomID == roomID {
			used[rec.Color] = true
		}
	}
	if requested != "" && !used[requested] {
		for _, c := range PlayerColors {
			if c == requested {
				return requested
			}
		}
	}
	for _, c := range PlayerColors {
		if !used[c] {
			return c
		}
	}
	return PlayerColors[0]
}

// NameAvailable reports whether the name is free in the room,
// case-insensitively.
func (p *PlayerRegistry) NameAvailable(roomID, name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	want := strings.ToLower(strings.TrimSpace(name))
	for _, rec := range p.players {
		if rec.RoomID == roomID && strings.ToLower(rec.Name) == want {
			return false
		}
	}
	return true
}

// TouchSession refreshes a session's last-seen time.
func (p *PlayerRegistry) TouchSession(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s := p.sessions[sessionID]; s != nil {
		s.lastSeen = time.Now()
	}
}

// ExpireSessions removes players whose sessions have been unseen longer than
// maxIdle. Returns the removed player ids.
func (p *PlayerRegistry) ExpireSessions(maxIdle time.Duration) []string {
	p.mu.Lock()
	cutoff := time.Now().Add(-maxIdle)
	var stale []string
	for sid, s := range p.sessions {
		if s.lastSeen.Before(cutoff) {
			stale = append(stale, sid)
		}
	}
	p.mu.Unlock()

	var removed []string
	for _, sid := range stale {
		if pid := p.RemoveBySession(sid); pid != "" {
			removed = append(removed, pid)
			p.log.Infow("inactive session expired", "player", pid)
		}
	}
	return removed
}

func (p *PlayerRegistry) copyLocked(rec *PlayerRecord) *PlayerRecord {
	cp := *rec
	return &cp
}

func sortPlayersByJoin(players []*PlayerRecord) {
	sort.Slice(players, func(i, j int) bool {
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})
}
