package game

import "strings"

// Color identifies a chess side using the wire form ("w" / "b").
type Color string

const (
	White Color = "w"
	Black Color = "b"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// ParseColor accepts the wire forms and the long names.
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "w", "white":
		return White, true
	case "b", "black":
		return Black, true
	default:
		return "", false
	}
}

// SeatKind tags an Occupant variant.
type SeatKind int

const (
	SeatEmpty SeatKind = iota
	SeatHuman
	SeatAI
)

// Occupant is one of Human(connID) | AISentinel | Empty. The tagged form keeps
// "is this seat the computer" a type-level question instead of a magic string.
type Occupant struct {
	Kind   SeatKind
	ConnID string
}

func Human(connID string) Occupant { return Occupant{Kind: SeatHuman, ConnID: connID} }
func AISentinel() Occupant         { return Occupant{Kind: SeatAI} }

func (o Occupant) IsHuman() bool { return o.Kind == SeatHuman }
func (o Occupant) IsAI() bool    { return o.Kind == SeatAI }
func (o Occupant) IsEmpty() bool { return o.Kind == SeatEmpty }

// AISeatName is how the sentinel seat is rendered on the wire.
const AISeatName = "AI"

// Move is an opaque tuple relayed as-is. No legality checking happens anywhere
// on the server; From/To/Piece are whatever the client (or the model) said.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Piece     string `json:"piece"`
	Color     string `json:"color,omitempty"`
	Promotion string `json:"promotion,omitempty"`
}

// Room is a two-seat match context. Seat 0 plays white, seat 1 plays black;
// the seat array is never resized. All mutation runs under the match manager's
// lock, so the struct itself carries no synchronization.
type Room struct {
	ID        int
	AI        bool
	Seats     [2]Occupant
	Occupancy int
	Turn      Color
	History   []Move

	// Version increments on every accepted move and on deletion-relevant
	// mutations; in-flight AI continuations compare it before applying.
	Version uint64
}

// SeatColor maps a seat index to its color.
func SeatColor(idx int) Color {
	if idx == 0 {
		return White
	}
	return Black
}

// SeatIndex maps a color to its seat.
func SeatIndex(c Color) int {
	if c == White {
		return 0
	}
	return 1
}

// SeatOf returns the seat index and color held by connID, or ok=false.
func (r *Room) SeatOf(connID string) (idx int, c Color, ok bool) {
	for i, occ := range r.Seats {
		if occ.IsHuman() && occ.ConnID == connID {
			return i, SeatColor(i), true
		}
	}
	return 0, "", false
}

// Opponent returns the occupant of the other seat relative to connID.
func (r *Room) Opponent(connID string) (Occupant, bool) {
	idx, _, ok := r.SeatOf(connID)
	if !ok {
		return Occupant{}, false
	}
	return r.Seats[1-idx], true
}

// ToMove returns the occupant whose turn it is.
func (r *Room) ToMove() Occupant {
	return r.Seats[SeatIndex(r.Turn)]
}

// Snapshot is the wire shape of the `room` event.
type Snapshot struct {
	ID      int             `json:"id"`
	Players int             `json:"players"`
	Seats   map[int]*string `json:"pid"`
	IsAI    bool            `json:"isAI"`
}

// Snapshot renders the room for broadcast: human seats carry their connection
// id, the sentinel seat carries AISeatName, empty seats are null.
func (r *Room) Snapshot() Snapshot {
	seats := make(map[int]*string, 2)
	for i, occ := range r.Seats {
		switch occ.Kind {
		case SeatHuman:
			id := occ.ConnID
			seats[i] = &id
		case SeatAI:
			name := AISeatName
			seats[i] = &name
		default:
			seats[i] = nil
		}
	}
	return Snapshot{ID: r.ID, Players: r.Occupancy, Seats: seats, IsAI: r.AI}
}

// PositionString flattens the move history into the opaque position notation
// handed to the AI provider ("startpos" or "startpos moves e2e4 ..."). The
// server never interprets it.
func PositionString(history []Move) string {
	if len(history) == 0 {
		return "startpos"
	}
	var b strings.Builder
	b.WriteString("startpos moves")
	for _, mv := range history {
		b.WriteByte(' ')
		b.WriteString(mv.From)
		b.WriteString(mv.To)
		b.WriteString(mv.Promotion)
	}
	return b.String()
}
