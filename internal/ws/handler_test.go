package ws

import (
	"encoding/json"
	"testing"

	"github.com/park285/chess-live/internal/game"
	"github.com/park285/chess-live/internal/match"
)

func TestStatusKeyFor(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{match.ErrOutOfTurn, "status.out_of_turn"},
		{match.ErrUnknownPlayer, "status.unknown_player"},
		{match.ErrRoomNotFound, "status.room_missing"},
		{match.ErrRoomFull, "status.room_full"},
		{json.Unmarshal([]byte("{"), &struct{}{}), "status.bad_payload"},
	}
	for _, c := range cases {
		if got := statusKeyFor(c.err); got != c.want {
			t.Fatalf("statusKeyFor(%v) = %q want %q", c.err, got, c.want)
		}
	}
}

func TestEnvelopeDecode(t *testing.T) {
	raw := []byte(`{"event":"move","data":{"from":"e2","to":"e4","piece":"P"}}`)
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Event != "move" {
		t.Fatalf("event wrong: %q", env.Event)
	}
	var mv game.Move
	if err := json.Unmarshal(env.Data, &mv); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if mv.From != "e2" || mv.To != "e4" {
		t.Fatalf("move wrong: %+v", mv)
	}
}

func TestMarshalRawNilPayload(t *testing.T) {
	raw, err := marshalRaw(nil)
	if err != nil || raw != nil {
		t.Fatalf("nil payload: %v %v", raw, err)
	}
	raw, err = marshalRaw(map[string]int{"a": 1})
	if err != nil || string(raw) != `{"a":1}` {
		t.Fatalf("payload encoding: %s %v", raw, err)
	}
}

func TestResolveRoomPrefersPayloadThenSeating(t *testing.T) {
	m := match.NewManager(nil)
	h := &Handler{rooms: m}

	a, err := m.Join("", "alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	// Valid payload id wins.
	id, ok := h.resolveRoom("alice", json.Number("1"))
	if !ok || id != a.RoomID {
		t.Fatalf("payload id not honored: %d %v", id, ok)
	}
	// Garbage payload falls back to the connection's own seat.
	id, ok = h.resolveRoom("alice", json.Number(""))
	if !ok || id != a.RoomID {
		t.Fatalf("seating fallback broken: %d %v", id, ok)
	}
	// Stale payload id also falls back.
	id, ok = h.resolveRoom("alice", json.Number("99"))
	if !ok || id != a.RoomID {
		t.Fatalf("stale id fallback broken: %d %v", id, ok)
	}
	// No payload and no seat: unresolvable.
	if _, ok := h.resolveRoom("nobody", json.Number("")); ok {
		t.Fatalf("unseated connection resolved a room")
	}
}

func TestHubEmitUnknownConnection(t *testing.T) {
	h := NewHub()
	if err := h.Emit("ghost", "room", nil); err == nil {
		t.Fatalf("unknown connection must error")
	}
	if h.Len() != 0 {
		t.Fatalf("hub should be empty")
	}
}
