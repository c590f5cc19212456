package game

import "testing"

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want Color
		ok   bool
	}{
		{"w", White, true},
		{"white", White, true},
		{" WHITE ", White, true},
		{"b", Black, true},
		{"black", Black, true},
		{"", "", false},
		{"green", "", false},
	}
	for _, c := range cases {
		got, ok := ParseColor(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("ParseColor(%q) = %q,%v want %q,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestSeatColorRoundTrip(t *testing.T) {
	if SeatColor(0) != White || SeatColor(1) != Black {
		t.Fatalf("seat colors wrong: %v %v", SeatColor(0), SeatColor(1))
	}
	for _, c := range []Color{White, Black} {
		if SeatColor(SeatIndex(c)) != c {
			t.Fatalf("round trip broken for %v", c)
		}
	}
}

func TestRoomSeatOfAndOpponent(t *testing.T) {
	r := &Room{ID: 1, Turn: White}
	r.Seats[0] = Human("alice")
	r.Seats[1] = AISentinel()
	r.Occupancy = 2

	idx, color, ok := r.SeatOf("alice")
	if !ok || idx != 0 || color != White {
		t.Fatalf("SeatOf(alice) = %d,%v,%v", idx, color, ok)
	}
	if _, _, ok := r.SeatOf("bob"); ok {
		t.Fatalf("unseated connection resolved a seat")
	}

	opp, ok := r.Opponent("alice")
	if !ok || !opp.IsAI() {
		t.Fatalf("Opponent(alice) = %+v,%v want AI sentinel", opp, ok)
	}
	if !r.ToMove().IsHuman() {
		t.Fatalf("white to move should be the human seat")
	}
	r.Turn = Black
	if !r.ToMove().IsAI() {
		t.Fatalf("black to move should be the AI seat")
	}
}

func TestSnapshotSeats(t *testing.T) {
	r := &Room{ID: 7, AI: true, Occupancy: 2}
	r.Seats[0] = Human("alice")
	r.Seats[1] = AISentinel()

	snap := r.Snapshot()
	if snap.ID != 7 || snap.Players != 2 || !snap.IsAI {
		t.Fatalf("snapshot header wrong: %+v", snap)
	}
	if snap.Seats[0] == nil || *snap.Seats[0] != "alice" {
		t.Fatalf("seat 0 should carry the connection id: %v", snap.Seats[0])
	}
	if snap.Seats[1] == nil || *snap.Seats[1] != AISeatName {
		t.Fatalf("seat 1 should carry %q: %v", AISeatName, snap.Seats[1])
	}

	r.Seats[1] = Occupant{}
	snap = r.Snapshot()
	if snap.Seats[1] != nil {
		t.Fatalf("empty seat should be nil, got %v", *snap.Seats[1])
	}
}

func TestPositionString(t *testing.T) {
	if got := PositionString(nil); got != "startpos" {
		t.Fatalf("empty history: %q", got)
	}
	history := []Move{
		{From: "e2", To: "e4", Piece: "P"},
		{From: "e7", To: "e5", Piece: "p"},
		{From: "a7", To: "a8", Piece: "P", Promotion: "q"},
	}
	want := "startpos moves e2e4 e7e5 a7a8q"
	if got := PositionString(history); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
