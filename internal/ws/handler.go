// Package ws owns the websocket transport: accepting connections, decoding
// event envelopes, dispatching them to matchmaking and relay, and running
// the asynchronous AI turn that re-enters the room through its version gate.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-live/internal/game"
	"github.com/park285/chess-live/internal/genai"
	"github.com/park285/chess-live/internal/match"
	"github.com/park285/chess-live/internal/obslog"
	"github.com/park285/chess-live/internal/relay"
)

// Handler accepts websocket connections and drives the event loop for each.
// It also implements match.RoomEvents so departures reach the remaining
// occupant.
type Handler struct {
	hub     *Hub
	rooms   *match.Manager
	relay   *relay.Relay
	ai      *genai.Provider
	origins []string
}

func NewHandler(hub *Hub, rooms *match.Manager, rl *relay.Relay, ai *genai.Provider, origins []string) *Handler {
	h := &Handler{hub: hub, rooms: rooms, relay: rl, ai: ai, origins: origins}
	rooms.SetEvents(h)
	return h
}

// OpponentLeft implements match.RoomEvents: the survivor gets the shrunken
// room snapshot followed by the departed id.
func (h *Handler) OpponentLeft(snapshot game.Snapshot, remainingConnID, departedConnID string) {
	h.relay.SendRoom(remainingConnID, snapshot)
	h.relay.SendDisconnected(remainingConnID, departedConnID)
}

// ServeWS upgrades the request and runs the per-connection read loop. One
// goroutine reads, so events from a single client are processed in order;
// AI work forks off so a slow model never blocks the loop.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_fail", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	conn := newConn(connID, sock)
	h.hub.add(conn)
	obslog.L().Info("conn_open", zap.String("conn_id", connID), zap.String("remote", r.RemoteAddr))

	defer func() {
		h.hub.remove(connID)
		h.rooms.Disconnect(connID)
		sock.Close(websocket.StatusNormalClosure, "")
		obslog.L().Info("conn_close", zap.String("conn_id", connID))
	}()

	ctx := r.Context()
	for {
		var env Envelope
		if err := wsjson.Read(ctx, sock, &env); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				obslog.L().Debug("conn_read_end", zap.String("conn_id", connID), zap.Error(err))
			}
			return
		}
		h.dispatch(conn, &env)
	}
}

func (h *Handler) dispatch(conn *Conn, env *Envelope) {
	switch env.Event {
	case EvtJoin:
		h.onJoin(conn, env.Data)
	case EvtStartAIGame:
		h.onStartAIGame(conn, env.Data)
	case EvtMove:
		h.onMove(conn, env.Data)
	case EvtSendMessage:
		h.onSendMessage(conn, env.Data)
	case EvtPeerReady:
		h.onSignal(conn, env.Data, relay.EvtPeerConnected)
	case EvtInitiateCall:
		h.onSignal(conn, env.Data, relay.EvtIncomingCall)
	case EvtCallEnded:
		h.onSignal(conn, env.Data, relay.EvtCallEnded)
	default:
		obslog.L().Debug("event_unknown", zap.String("conn_id", conn.id), zap.String("event", env.Event))
		h.relay.SendStatus(conn.id, relay.StatusWarn, "status.unknown_event", map[string]string{"Event": env.Event})
	}
}

// onJoin seats the connection via first-fit matchmaking. The payload is an
// optional room id; anything undecodable falls through to "no preference".
func (h *Handler) onJoin(conn *Conn, data json.RawMessage) {
	var requested string
	if len(data) > 0 {
		var n json.Number
		if err := json.Unmarshal(data, &requested); err != nil {
			if err := json.Unmarshal(data, &n); err == nil {
				requested = n.String()
			}
		}
	}

	res, err := h.rooms.Join(requested, conn.id)
	if err != nil {
		h.relay.SendStatus(conn.id, relay.StatusError, "status.room_full", nil)
		return
	}
	h.relay.BroadcastRoom(res.Seats, res.Snapshot)
	h.relay.SendPlayer(conn.id, relay.PlayerInfo{
		PlayerID: conn.id,
		Players:  res.Players,
		Color:    res.Color,
		RoomID:   res.RoomID,
	})
}

// onStartAIGame allocates a dedicated AI room, announces the computer
// opponent, and forks greeting plus (when the human chose black) the
// opening move.
func (h *Handler) onStartAIGame(conn *Conn, data json.RawMessage) {
	var payload startAIGamePayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			h.relay.SendStatus(conn.id, relay.StatusError, "status.bad_payload", nil)
			return
		}
	}
	humanColor, ok := game.ParseColor(payload.PlayerColor)
	if !ok {
		humanColor = game.White
	}

	res, err := h.rooms.CreateAIGame(conn.id, humanColor)
	if err != nil {
		h.relay.SendStatus(conn.id, relay.StatusError, "status.bad_payload", nil)
		return
	}
	h.relay.SendRoom(conn.id, res.Snapshot)
	h.relay.SendPlayer(conn.id, relay.PlayerInfo{
		PlayerID: conn.id,
		Players:  2,
		Color:    humanColor,
		RoomID:   res.RoomID,
	})
	h.relay.SendOpponentData(conn.id, relay.OpponentData{Name: game.AISeatName, IsAI: true})

	go h.aiGreeting(res.RoomID, humanColor)
	if res.AIOpens {
		go h.aiTurn(res.RoomID, res.Version, res.Position, res.AIColor)
	}
}

func (h *Handler) onMove(conn *Conn, data json.RawMessage) {
	var mv game.Move
	if err := json.Unmarshal(data, &mv); err != nil || mv.From == "" || mv.To == "" {
		h.relay.SendStatus(conn.id, relay.StatusError, "status.bad_payload", nil)
		return
	}

	roomID, ok := h.rooms.RoomByConn(conn.id)
	if !ok {
		h.relay.SendStatus(conn.id, relay.StatusError, "status.room_missing", nil)
		return
	}
	res, err := h.rooms.SubmitMove(roomID, conn.id, mv)
	if err != nil {
		h.relay.SendStatus(conn.id, relay.StatusError, statusKeyFor(err), nil)
		return
	}
	h.relay.BroadcastMove(roomID, res.Move)
	if res.NextIsAI {
		go h.aiTurn(roomID, res.Version, res.Position, res.Turn)
	}
}

func statusKeyFor(err error) string {
	switch {
	case errors.Is(err, match.ErrOutOfTurn):
		return "status.out_of_turn"
	case errors.Is(err, match.ErrUnknownPlayer):
		return "status.unknown_player"
	case errors.Is(err, match.ErrRoomNotFound):
		return "status.room_missing"
	case errors.Is(err, match.ErrRoomFull):
		return "status.room_full"
	default:
		return "status.bad_payload"
	}
}

func (h *Handler) onSendMessage(conn *Conn, data json.RawMessage) {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		h.relay.SendStatus(conn.id, relay.StatusError, "status.bad_payload", nil)
		return
	}
	roomID, ok := h.rooms.RoomByConn(conn.id)
	if !ok {
		h.relay.SendStatus(conn.id, relay.StatusError, "status.room_missing", nil)
		return
	}
	if h.relay.Chat(roomID, conn.id, text) {
		go h.aiChat(roomID, text)
	}
}

// onSignal forwards call-signaling traffic to the human opponent. The room
// id in the payload is advisory; the connection's own seating wins when the
// payload is absent or unparseable.
func (h *Handler) onSignal(conn *Conn, data json.RawMessage, outEvent string) {
	var payload signalPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			h.relay.SendStatus(conn.id, relay.StatusError, "status.bad_payload", nil)
			return
		}
	}

	roomID, ok := h.resolveRoom(conn.id, payload.RoomID)
	if !ok {
		h.relay.SendStatus(conn.id, relay.StatusError, "status.room_missing", nil)
		return
	}

	var out any
	switch outEvent {
	case relay.EvtPeerConnected:
		out = peerConnectedPayload{PeerID: payload.PeerID}
	case relay.EvtIncomingCall:
		out = signalPayload{RoomID: json.Number(strconv.Itoa(roomID)), PeerID: payload.PeerID}
	default:
		out = signalPayload{RoomID: json.Number(strconv.Itoa(roomID))}
	}
	h.relay.Signal(roomID, conn.id, outEvent, out)
}

func (h *Handler) resolveRoom(connID string, raw json.Number) (int, bool) {
	if id, err := strconv.Atoi(raw.String()); err == nil {
		if _, ok := h.rooms.SnapshotOf(id); ok {
			return id, true
		}
	}
	return h.rooms.RoomByConn(connID)
}

// aiTurn runs one model request outside every lock and re-enters through the
// version gate, so a room that moved on (or died) simply discards the result.
func (h *Handler) aiTurn(roomID int, issuedVersion uint64, position string, aiColor game.Color) {
	res := h.ai.RequestMove(context.Background(), position, aiColor)
	if res.Move == nil {
		// Exhausted retries: the humans hear about it in chat and the turn
		// stays with the AI seat untouched.
		h.relay.AIChat(roomID, res.Chat)
		return
	}
	applied, err := h.rooms.ApplyAIMove(roomID, issuedVersion, *res.Move)
	if err != nil {
		return
	}
	h.relay.BroadcastMove(roomID, applied.Move)
	h.relay.AIChat(roomID, res.Chat)
}

func (h *Handler) aiGreeting(roomID int, humanColor game.Color) {
	h.relay.AIChat(roomID, h.ai.InitialGreeting(context.Background(), humanColor))
}

func (h *Handler) aiChat(roomID int, message string) {
	h.relay.AIChat(roomID, h.ai.ChatReply(context.Background(), message))
}
