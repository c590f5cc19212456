package genai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-live/internal/game"
	"github.com/park285/chess-live/internal/msgcat"
)

func testCatalog(t *testing.T) *msgcat.Catalog {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	return cat
}

// stubProvider builds a provider whose transport is the given script: each
// call consumes the next entry.
func stubProvider(t *testing.T, script ...func() (string, error)) (*Provider, *int) {
	t.Helper()
	calls := 0
	p := &Provider{
		cat:         testCatalog(t),
		maxAttempts: 3,
		generate: func(ctx context.Context, prompt string) (string, error) {
			if calls >= len(script) {
				t.Fatalf("unexpected generate call %d", calls+1)
			}
			step := script[calls]
			calls++
			return step()
		},
	}
	return p, &calls
}

func ok(text string) func() (string, error) {
	return func() (string, error) { return text, nil }
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

func TestRequestMoveParsesAndStampsOwnership(t *testing.T) {
	p, calls := stubProvider(t, ok(`Here is my move:
{"move":{"from":"e7","to":"e5"},"chat":"A classic reply."}`))

	res := p.RequestMove(context.Background(), "startpos moves e2e4", game.Black)
	if res.Move == nil {
		t.Fatalf("move missing: %+v", res)
	}
	if res.Move.From != "e7" || res.Move.To != "e5" {
		t.Fatalf("squares wrong: %+v", res.Move)
	}
	if res.Move.Piece != "p" || res.Move.Color != "b" {
		t.Fatalf("ownership must come from the AI color, got %+v", res.Move)
	}
	if res.Chat != "A classic reply." {
		t.Fatalf("chat wrong: %q", res.Chat)
	}
	if *calls != 1 {
		t.Fatalf("want 1 call, got %d", *calls)
	}
}

func TestRequestMoveRetriesThenSucceeds(t *testing.T) {
	p, calls := stubProvider(t,
		fail(errors.New("upstream 503")),
		ok("I resign... just kidding, no JSON here"),
		ok(`{"move":{"from":"g1","to":"f3"}}`),
	)

	res := p.RequestMove(context.Background(), "startpos", game.White)
	if res.Move == nil || res.Move.From != "g1" {
		t.Fatalf("retry did not recover: %+v", res)
	}
	if res.Move.Piece != "P" {
		t.Fatalf("white piece marker wrong: %q", res.Move.Piece)
	}
	if *calls != 3 {
		t.Fatalf("want 3 calls, got %d", *calls)
	}
}

func TestRequestMoveExhaustionKeepsFixedMessage(t *testing.T) {
	p, calls := stubProvider(t,
		ok("no json"),
		ok(`{"chat":"I refuse to move"}`), // object without a move field
		fail(errors.New("timeout")),
	)

	res := p.RequestMove(context.Background(), "startpos", game.White)
	if res.Move != nil {
		t.Fatalf("exhausted request must carry no move: %+v", res.Move)
	}
	if !strings.Contains(res.Chat, "could not produce") {
		t.Fatalf("failure message wrong: %q", res.Chat)
	}
	if *calls != 3 {
		t.Fatalf("want all attempts consumed, got %d", *calls)
	}
}

func TestRequestMoveCancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, calls := stubProvider(t)

	res := p.RequestMove(ctx, "startpos", game.White)
	if res.Move != nil || *calls != 0 {
		t.Fatalf("cancelled context must not reach the transport: %+v calls=%d", res, *calls)
	}
}

func TestRequestMoveDisabledShortCircuits(t *testing.T) {
	p := NewProvider(ProviderConfig{APIKey: "", Model: "gemini-2.5-flash"}, testCatalog(t))
	if !p.Disabled() {
		t.Fatalf("provider without credentials must be disabled")
	}
	res := p.RequestMove(context.Background(), "startpos", game.White)
	if res.Move != nil || res.Chat == "" {
		t.Fatalf("degraded mode result wrong: %+v", res)
	}
}

func TestInitialGreeting(t *testing.T) {
	p, _ := stubProvider(t, ok("  Welcome to the board!  "))
	if got := p.InitialGreeting(context.Background(), game.White); got != "Welcome to the board!" {
		t.Fatalf("greeting not trimmed: %q", got)
	}

	p, _ = stubProvider(t, fail(errors.New("down")))
	if got := p.InitialGreeting(context.Background(), game.White); !strings.Contains(got, "Good luck") {
		t.Fatalf("transport failure fallback wrong: %q", got)
	}

	p, _ = stubProvider(t, ok("   "))
	if got := p.InitialGreeting(context.Background(), game.Black); !strings.Contains(got, "Hello") {
		t.Fatalf("empty reply fallback wrong: %q", got)
	}
}

func TestChatReply(t *testing.T) {
	p, _ := stubProvider(t, ok("Nice opening."))
	if got := p.ChatReply(context.Background(), "what do you think?"); got != "Nice opening." {
		t.Fatalf("reply wrong: %q", got)
	}

	p, _ = stubProvider(t, fail(errors.New("down")))
	if got := p.ChatReply(context.Background(), "hello"); got == "" {
		t.Fatalf("transport failure should yield a fallback line")
	}

	disabled := NewProvider(ProviderConfig{}, testCatalog(t))
	if got := disabled.ChatReply(context.Background(), "hello"); got != "" {
		t.Fatalf("disabled provider must stay silent, got %q", got)
	}
}

func TestBackoffDurationCapsAndGrows(t *testing.T) {
	if backoffDuration(1) != 100*time.Millisecond {
		t.Fatalf("first backoff: %v", backoffDuration(1))
	}
	if backoffDuration(2) != 200*time.Millisecond {
		t.Fatalf("second backoff: %v", backoffDuration(2))
	}
	if backoffDuration(50) != backoffDuration(6) {
		t.Fatalf("backoff must cap: %v vs %v", backoffDuration(50), backoffDuration(6))
	}
}

func TestMovePromptNamesColorAndPosition(t *testing.T) {
	prompt := movePrompt("startpos moves e2e4", game.Black)
	for _, want := range []string{"BLACK", "startpos moves e2e4", `"from"`} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
