// Package relay fans events out to the occupants of a room. It is the only
// place outbound event names live; the AI sentinel has no transport endpoint,
// so every delivery path skips it.
package relay

import (
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-live/internal/game"
	"github.com/park285/chess-live/internal/match"
	"github.com/park285/chess-live/internal/msgcat"
	"github.com/park285/chess-live/internal/obslog"
)

// Outbound event names.
const (
	EvtRoom            = "room"
	EvtPlayer          = "player"
	EvtMoveReceived    = "move-received"
	EvtReceivedMessage = "received-message"
	EvtMessageSent     = "message-sent"
	EvtDisconnected    = "disconnected"
	EvtOpponentData    = "opponent-data"
	EvtPeerConnected   = "peer-connected"
	EvtIncomingCall    = "incoming-call"
	EvtCallEnded       = "call-ended"
	EvtStatus          = "status"
)

// Status variants.
const (
	StatusError = "error"
	StatusInfo  = "info"
	StatusWarn  = "warn"
)

// Emitter delivers one event to one connection.
type Emitter interface {
	Emit(connID, event string, payload any) error
}

// PlayerInfo is the `player` payload sent to a freshly seated connection.
type PlayerInfo struct {
	PlayerID string     `json:"playerId"`
	Players  int        `json:"players"`
	Color    game.Color `json:"color"`
	RoomID   int        `json:"roomId"`
}

// ChatMessage is the `received-message` / `message-sent` payload.
type ChatMessage struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
}

// OpponentData describes the computer opponent of an AI room.
type OpponentData struct {
	Name string `json:"name"`
	IsAI bool   `json:"isAI"`
}

// StatusPayload is the `status` payload for informational and error feedback.
type StatusPayload struct {
	Variant string `json:"variant"`
	Message string `json:"message"`
}

type Relay struct {
	emitter Emitter
	rooms   *match.Manager
	cat     *msgcat.Catalog
}

func New(emitter Emitter, rooms *match.Manager, cat *msgcat.Catalog) *Relay {
	return &Relay{emitter: emitter, rooms: rooms, cat: cat}
}

func (r *Relay) emit(connID, event string, payload any) {
	if err := r.emitter.Emit(connID, event, payload); err != nil {
		obslog.L().Debug("emit_drop", zap.String("conn_id", connID), zap.String("event", event), zap.Error(err))
	}
}

// SendRoom delivers a room snapshot to one connection.
func (r *Relay) SendRoom(connID string, snap game.Snapshot) {
	r.emit(connID, EvtRoom, snap)
}

// BroadcastRoom delivers a room snapshot to every human occupant of the
// given seat array.
func (r *Relay) BroadcastRoom(seats [2]game.Occupant, snap game.Snapshot) {
	for _, id := range humanIDs(seats) {
		r.emit(id, EvtRoom, snap)
	}
}

// SendPlayer delivers seat assignment to the joining connection.
func (r *Relay) SendPlayer(connID string, info PlayerInfo) {
	r.emit(connID, EvtPlayer, info)
}

// SendOpponentData announces the AI opponent to the human seat.
func (r *Relay) SendOpponentData(connID string, data OpponentData) {
	r.emit(connID, EvtOpponentData, data)
}

// BroadcastMove delivers an accepted move to every human occupant, in the
// order the turn coordinator accepted it.
func (r *Relay) BroadcastMove(roomID int, mv game.Move) {
	seats, ok := r.rooms.Occupants(roomID)
	if !ok {
		return
	}
	for _, id := range humanIDs(seats) {
		r.emit(id, EvtMoveReceived, mv)
	}
}

// Chat delivers text to the human opponent and always echoes a confirmation
// back to the sender. The returned flag tells the caller the opponent is the
// AI so it can solicit a reply.
func (r *Relay) Chat(roomID int, senderConnID, text string) (aiOpponent bool) {
	msg := ChatMessage{Sender: senderConnID, Text: text, Timestamp: time.Now().UnixMilli()}
	if opp, ok := r.rooms.Opponent(roomID, senderConnID); ok {
		switch {
		case opp.IsHuman():
			r.emit(opp.ConnID, EvtReceivedMessage, msg)
		case opp.IsAI():
			aiOpponent = true
		}
	}
	r.emit(senderConnID, EvtMessageSent, msg)
	return aiOpponent
}

// AIChat delivers a sentinel-authored chat line to every human occupant.
func (r *Relay) AIChat(roomID int, text string) {
	if text == "" {
		return
	}
	seats, ok := r.rooms.Occupants(roomID)
	if !ok {
		return
	}
	msg := ChatMessage{Sender: game.AISeatName, Text: text, Timestamp: time.Now().UnixMilli()}
	for _, id := range humanIDs(seats) {
		r.emit(id, EvtReceivedMessage, msg)
	}
}

// Signal forwards a call-signaling event to the human opponent. When the
// opponent is the AI sentinel nothing is delivered; the sender gets an
// informational status instead.
func (r *Relay) Signal(roomID int, senderConnID, outEvent string, payload any) {
	opp, ok := r.rooms.Opponent(roomID, senderConnID)
	if !ok {
		r.SendStatus(senderConnID, StatusError, "status.room_missing", nil)
		return
	}
	switch {
	case opp.IsHuman():
		r.emit(opp.ConnID, outEvent, payload)
	case opp.IsAI():
		r.SendStatus(senderConnID, StatusInfo, "status.ai_no_call", nil)
	}
}

// SendDisconnected tells a connection its opponent's transport went away.
func (r *Relay) SendDisconnected(connID, departedConnID string) {
	r.emit(connID, EvtDisconnected, departedConnID)
}

// SendStatus renders a catalog key and delivers it as a `status` event.
func (r *Relay) SendStatus(connID, variant, key string, data any) {
	msg := r.cat.MustRender(key, data, key)
	r.emit(connID, EvtStatus, StatusPayload{Variant: variant, Message: msg})
}

func humanIDs(seats [2]game.Occupant) []string {
	ids := make([]string, 0, 2)
	for _, occ := range seats {
		if occ.IsHuman() {
			ids = append(ids, occ.ConnID)
		}
	}
	return ids
}
