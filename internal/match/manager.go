package match

import (
	"errors"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/chess-live/internal/game"
	"github.com/park285/chess-live/internal/obslog"
)

var (
	ErrRoomFull      = errors.New("room already has two occupants")
	ErrUnknownPlayer = errors.New("player not seated in room")
	ErrOutOfTurn     = errors.New("not this player's turn")
	ErrRoomNotFound  = errors.New("room not found")
	ErrStaleVersion  = errors.New("room moved past issued version")
)

// RoomEvents receives lifecycle notifications the manager cannot deliver
// itself: it knows nothing about transports. Callbacks run outside the
// registry lock.
type RoomEvents interface {
	// OpponentLeft fires when a human occupant remains in a room after the
	// other occupant departed.
	OpponentLeft(snapshot game.Snapshot, remainingConnID, departedConnID string)
}

// JoinResult reports the seat handed out by matchmaking. Seats is the
// occupant array observed under the lock so broadcasts address the tagged
// occupants, not strings recovered from the wire snapshot.
type JoinResult struct {
	RoomID   int
	Color    game.Color
	Players  int
	Seats    [2]game.Occupant
	Snapshot game.Snapshot
}

// AIGameResult reports the freshly created AI room.
type AIGameResult struct {
	RoomID   int
	AIColor  game.Color
	AIOpens  bool // AI holds white and must produce the opening move
	Version  uint64
	Position string
	Snapshot game.Snapshot
}

// MoveResult reports an accepted move and what the caller must do next.
type MoveResult struct {
	RoomID   int
	Move     game.Move
	Turn     game.Color // color to move after the flip
	NextIsAI bool
	Version  uint64 // room version observed after the append
	Position string
	Snapshot game.Snapshot
}

// Manager owns the room collection. One mutex serializes every registry and
// room mutation; nothing slow ever runs under it. The AI provider call in
// particular happens outside and re-enters through ApplyAIMove.
type Manager struct {
	mu     sync.Mutex
	rooms  map[int]*game.Room
	nextID int
	events RoomEvents
}

func NewManager(events RoomEvents) *Manager {
	return &Manager{rooms: make(map[int]*game.Room), nextID: 1, events: events}
}

// SetEvents binds the lifecycle listener. The transport layer depends on the
// manager, so wiring happens in two steps; call before serving traffic.
func (m *Manager) SetEvents(events RoomEvents) {
	m.mu.Lock()
	m.events = events
	m.mu.Unlock()
}

// Join seats connID per first-fit matchmaking: the requested room when it is
// joinable, otherwise the oldest joinable room, otherwise a new one. A
// connection already seated in the chosen room keeps its seat (no
// double-increment).
func (m *Manager) Join(requestedID, connID string) (*JoinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.chooseRoomLocked(requestedID)
	if r == nil {
		r = m.createRoomLocked(false)
	}

	if _, color, ok := r.SeatOf(connID); ok {
		return &JoinResult{RoomID: r.ID, Color: color, Players: r.Occupancy, Seats: r.Seats, Snapshot: r.Snapshot()}, nil
	}
	if r.Occupancy >= 2 {
		// Defensive: selection only offers joinable rooms, but a full room
		// must never be mutated.
		obslog.L().Warn("room_full", zap.Int("room_id", r.ID), zap.String("conn_id", connID))
		return nil, ErrRoomFull
	}

	seat := 0
	if !r.Seats[0].IsEmpty() {
		seat = 1
	}
	r.Seats[seat] = game.Human(connID)
	r.Occupancy++

	color := game.SeatColor(seat)
	obslog.L().Info("room_join",
		zap.Int("room_id", r.ID),
		zap.String("conn_id", connID),
		zap.String("color", string(color)),
		zap.Int("players", r.Occupancy),
	)
	return &JoinResult{RoomID: r.ID, Color: color, Players: r.Occupancy, Seats: r.Seats, Snapshot: r.Snapshot()}, nil
}

// chooseRoomLocked resolves the requested id when joinable, else scans in
// insertion order (ids are monotonic, so ascending id order is insertion
// order). AI rooms are never offered.
func (m *Manager) chooseRoomLocked(requestedID string) *game.Room {
	if id, err := strconv.Atoi(requestedID); err == nil {
		if r, ok := m.rooms[id]; ok && joinable(r) {
			return r
		}
	}
	ids := make([]int, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if r := m.rooms[id]; joinable(r) {
			return r
		}
	}
	return nil
}

func joinable(r *game.Room) bool { return !r.AI && r.Occupancy < 2 }

func (m *Manager) createRoomLocked(ai bool) *game.Room {
	r := &game.Room{ID: m.nextID, AI: ai, Turn: game.White}
	m.nextID++
	m.rooms[r.ID] = r
	obslog.L().Info("room_create", zap.Int("room_id", r.ID), zap.Bool("ai", ai))
	return r
}

// CreateAIGame evicts connID from every room it occupies, then allocates a
// room with the human at humanColor and the AI sentinel opposite. The room
// starts at occupancy 2 with white to move.
func (m *Manager) CreateAIGame(connID string, humanColor game.Color) (*AIGameResult, error) {
	m.mu.Lock()
	departures := m.evictLocked(connID)

	r := m.createRoomLocked(true)
	r.Occupancy = 2
	r.Seats[game.SeatIndex(humanColor)] = game.Human(connID)
	r.Seats[game.SeatIndex(humanColor.Opposite())] = game.AISentinel()

	res := &AIGameResult{
		RoomID:   r.ID,
		AIColor:  humanColor.Opposite(),
		AIOpens:  humanColor == game.Black,
		Version:  r.Version,
		Position: game.PositionString(r.History),
		Snapshot: r.Snapshot(),
	}
	m.mu.Unlock()

	m.notify(departures)
	obslog.L().Info("ai_room_create",
		zap.Int("room_id", res.RoomID),
		zap.String("conn_id", connID),
		zap.String("human_color", string(humanColor)),
		zap.Bool("ai_opens", res.AIOpens),
	)
	return res, nil
}

// SubmitMove is the turn coordinator: it accepts a move only from the seated
// connection whose color holds the turn, appends it and flips the turn. A
// rejection leaves the room untouched.
func (m *Manager) SubmitMove(roomID int, connID string, mv game.Move) (*MoveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	_, color, seated := r.SeatOf(connID)
	if !seated {
		obslog.L().Warn("move_reject", zap.Int("room_id", roomID), zap.String("conn_id", connID), zap.String("reason", "unknown_player"))
		return nil, ErrUnknownPlayer
	}
	if color != r.Turn {
		obslog.L().Warn("move_reject", zap.Int("room_id", roomID), zap.String("conn_id", connID), zap.String("reason", "out_of_turn"))
		return nil, ErrOutOfTurn
	}
	return m.acceptLocked(r, mv), nil
}

// ApplyAIMove re-enters the acceptance path for a completed AI request. The
// room may have been deleted, or may have moved past the version the request
// was issued for; both outcomes discard the move.
func (m *Manager) ApplyAIMove(roomID int, issuedVersion uint64, mv game.Move) (*MoveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if r.Version != issuedVersion || !r.ToMove().IsAI() {
		obslog.L().Info("ai_move_discard", zap.Int("room_id", roomID), zap.Uint64("issued", issuedVersion), zap.Uint64("current", r.Version))
		return nil, ErrStaleVersion
	}
	return m.acceptLocked(r, mv), nil
}

func (m *Manager) acceptLocked(r *game.Room, mv game.Move) *MoveResult {
	r.History = append(r.History, mv)
	r.Turn = r.Turn.Opposite()
	r.Version++

	obslog.L().Info("move_accept",
		zap.Int("room_id", r.ID),
		zap.String("from", mv.From),
		zap.String("to", mv.To),
		zap.String("turn", string(r.Turn)),
		zap.Int("moves", len(r.History)),
	)
	return &MoveResult{
		RoomID:   r.ID,
		Move:     mv,
		Turn:     r.Turn,
		NextIsAI: r.ToMove().IsAI(),
		Version:  r.Version,
		Position: game.PositionString(r.History),
		Snapshot: r.Snapshot(),
	}
}

// Disconnect clears connID from every room it occupies, deleting rooms per
// the lifecycle rules and notifying any remaining human opponent.
func (m *Manager) Disconnect(connID string) {
	m.mu.Lock()
	departures := m.evictLocked(connID)
	m.mu.Unlock()
	m.notify(departures)
}

type departure struct {
	snapshot  game.Snapshot
	remaining string
	departed  string
}

// evictLocked removes connID from all rooms. An AI room dies the instant its
// human seat disconnects; a non-AI room dies at occupancy 0 and stays alive
// with a freed seat at occupancy 1.
func (m *Manager) evictLocked(connID string) []departure {
	var out []departure
	for id, r := range m.rooms {
		idx, _, ok := r.SeatOf(connID)
		if !ok {
			continue
		}
		r.Seats[idx] = game.Occupant{}
		r.Occupancy--
		r.Version++

		if r.AI {
			delete(m.rooms, id)
			obslog.L().Info("room_delete", zap.Int("room_id", id), zap.String("reason", "ai_human_left"))
			continue
		}
		if r.Occupancy <= 0 {
			delete(m.rooms, id)
			obslog.L().Info("room_delete", zap.Int("room_id", id), zap.String("reason", "empty"))
			continue
		}
		if opp := r.Seats[1-idx]; opp.IsHuman() {
			out = append(out, departure{snapshot: r.Snapshot(), remaining: opp.ConnID, departed: connID})
		}
	}
	return out
}

func (m *Manager) notify(departures []departure) {
	m.mu.Lock()
	ev := m.events
	m.mu.Unlock()
	if ev == nil {
		return
	}
	for _, d := range departures {
		ev.OpponentLeft(d.snapshot, d.remaining, d.departed)
	}
}

// RoomByConn returns the id of the first room (in insertion order) seating
// connID. Inbound chat and signaling events carry no room id, so the handler
// resolves it the same way the matchmaker scans.
func (m *Manager) RoomByConn(connID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if _, _, ok := m.rooms[id].SeatOf(connID); ok {
			return id, true
		}
	}
	return 0, false
}

// Occupants returns the seat array of a room.
func (m *Manager) Occupants(roomID int) ([2]game.Occupant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return [2]game.Occupant{}, false
	}
	return r.Seats, true
}

// Opponent resolves the other seat of a room relative to connID.
func (m *Manager) Opponent(roomID int, connID string) (game.Occupant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return game.Occupant{}, false
	}
	return r.Opponent(connID)
}

// SnapshotOf returns the wire snapshot of a room.
func (m *Manager) SnapshotOf(roomID int) (game.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return game.Snapshot{}, false
	}
	return r.Snapshot(), true
}

// RoomCount reports the number of live rooms.
func (m *Manager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}
