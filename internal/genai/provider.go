package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-live/internal/game"
	"github.com/park285/chess-live/internal/msgcat"
	"github.com/park285/chess-live/internal/obslog"
)

// generateFunc is the transport seam; tests stub it instead of the network.
type generateFunc func(ctx context.Context, prompt string) (string, error)

// MoveResult is the outcome of a move request. Move is nil when every attempt
// failed; Chat carries the model's table talk or the failure message.
type MoveResult struct {
	Move *game.Move
	Chat string
}

// Provider builds prompts, calls the generation service and parses what comes
// back. When no credential is configured at startup it runs degraded: every
// operation short-circuits to its fallback result.
type Provider struct {
	generate    generateFunc
	cat         *msgcat.Catalog
	maxAttempts int
	disabled    bool
}

type ProviderConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxAttempts int
	Timeout     time.Duration
}

func NewProvider(cfg ProviderConfig, cat *msgcat.Catalog) *Provider {
	p := &Provider{cat: cat, maxAttempts: cfg.MaxAttempts}
	if p.maxAttempts <= 0 {
		p.maxAttempts = 3
	}
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.Model) == "" {
		p.disabled = true
		obslog.L().Warn("ai_disabled", zap.String("reason", "missing api key or model"))
		return p
	}
	client := NewClient(cfg.BaseURL, cfg.Model, cfg.APIKey, WithTimeout(cfg.Timeout))
	p.generate = client.GenerateText
	obslog.L().Info("ai_configured", zap.String("model", cfg.Model))
	return p
}

// NewProviderWithGenerate builds a provider over a caller-supplied generation
// transport instead of the HTTP client. A nil transport yields a degraded
// provider, same as missing credentials.
func NewProviderWithGenerate(generate func(ctx context.Context, prompt string) (string, error), cat *msgcat.Catalog, maxAttempts int) *Provider {
	p := &Provider{generate: generate, cat: cat, maxAttempts: maxAttempts}
	if p.maxAttempts <= 0 {
		p.maxAttempts = 3
	}
	if generate == nil {
		p.disabled = true
	}
	return p
}

// modelReply is the JSON object the prompt demands from the model.
type modelReply struct {
	Move *struct {
		From      string `json:"from"`
		To        string `json:"to"`
		Promotion string `json:"promotion"`
	} `json:"move"`
	Chat string `json:"chat"`
}

// RequestMove asks the model for a move for aiColor in the given position.
// Transport failures, missing JSON and objects without a move field all count
// as failed attempts; after maxAttempts the result carries a nil move and the
// fixed failure message. The caller must not hold any room lock around this.
func (p *Provider) RequestMove(ctx context.Context, position string, aiColor game.Color) *MoveResult {
	if p.disabled {
		return &MoveResult{Chat: p.cat.MustRender("ai.not_configured", nil, "AI is not configured.")}
	}

	prompt := movePrompt(position, aiColor)
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		obslog.L().Debug("ai_move_attempt", zap.Int("attempt", attempt), zap.String("position", position))

		text, err := p.generate(ctx, prompt)
		if err != nil {
			obslog.L().Warn("ai_move_transport_error", zap.Int("attempt", attempt), zap.Error(err))
			p.pause(ctx, attempt)
			continue
		}

		raw := ExtractJSONObject(text)
		if raw == "" {
			obslog.L().Warn("ai_move_no_json", zap.Int("attempt", attempt), zap.String("text", truncate(text, 256)))
			p.pause(ctx, attempt)
			continue
		}
		var reply modelReply
		if err := json.Unmarshal([]byte(raw), &reply); err != nil || reply.Move == nil {
			obslog.L().Warn("ai_move_parse_error", zap.Int("attempt", attempt), zap.String("json", truncate(raw, 256)))
			p.pause(ctx, attempt)
			continue
		}

		// Piece and color are stamped from aiColor, never taken from the model.
		mv := &game.Move{
			From:      reply.Move.From,
			To:        reply.Move.To,
			Piece:     pieceFor(aiColor),
			Color:     string(aiColor),
			Promotion: reply.Move.Promotion,
		}
		obslog.L().Info("ai_move_ok", zap.Int("attempt", attempt), zap.String("from", mv.From), zap.String("to", mv.To))
		return &MoveResult{Move: mv, Chat: reply.Chat}
	}

	obslog.L().Warn("ai_move_exhausted", zap.Int("attempts", p.maxAttempts))
	return &MoveResult{Chat: p.cat.MustRender("ai.move_failed", nil, "The AI could not produce a move.")}
}

// InitialGreeting generates the opening chat line for a new AI game. Single
// attempt; any failure yields a fixed fallback so game start is never blocked.
func (p *Provider) InitialGreeting(ctx context.Context, humanColor game.Color) string {
	if p.disabled {
		return p.cat.MustRender("ai.not_configured", nil, "AI is not configured.")
	}
	text, err := p.generate(ctx, greetingPrompt(humanColor))
	if err != nil {
		obslog.L().Warn("ai_greeting_error", zap.Error(err))
		return p.cat.MustRender("ai.greeting_fallback", nil, "Hello! Good luck.")
	}
	if s := strings.TrimSpace(text); s != "" {
		return s
	}
	return p.cat.MustRender("ai.greeting_empty", nil, "Hello!")
}

// ChatReply answers a human chat message. Single attempt; returns "" when the
// provider is unconfigured (the caller drops it) and a fixed fallback on
// transport failure.
func (p *Provider) ChatReply(ctx context.Context, message string) string {
	if p.disabled {
		return ""
	}
	text, err := p.generate(ctx, chatPrompt(message))
	if err != nil {
		obslog.L().Warn("ai_chat_error", zap.Error(err))
		return p.cat.MustRender("ai.chat_fallback", nil, "Sorry, could you repeat that?")
	}
	if s := strings.TrimSpace(text); s != "" {
		return s
	}
	return p.cat.MustRender("ai.chat_fallback", nil, "Sorry, could you repeat that?")
}

// Disabled reports whether the provider runs in degraded mode.
func (p *Provider) Disabled() bool { return p.disabled }

func (p *Provider) pause(ctx context.Context, attempt int) {
	if attempt >= p.maxAttempts {
		return
	}
	t := time.NewTimer(backoffDuration(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base
}

func pieceFor(c game.Color) string {
	if c == game.White {
		return "P"
	}
	return "p"
}

func colorName(c game.Color) string {
	if c == game.White {
		return "WHITE"
	}
	return "BLACK"
}

func movePrompt(position string, aiColor game.Color) string {
	return fmt.Sprintf(`YOU ARE THE GAME'S ARTIFICIAL INTELLIGENCE (%s pieces)
and you MUST answer ONLY with a move in the JSON format below,
even if it is your first turn or the position notation implies it is not your turn:

{
  "move": { "from": "a2", "to": "a4", "promotion": "q" },
  "chat": "Optional comment"
}

RULES:
1. You ALWAYS play the %s pieces.
2. Ignore whose turn the position implies - assume it is your move.
3. The move must be for your own pieces.
4. Include "promotion" only when promoting a pawn.

Current position: %s
Your color: %s
`, colorName(aiColor), strings.ToLower(colorName(aiColor)), position, aiColor)
}

func greetingPrompt(humanColor game.Color) string {
	return fmt.Sprintf(`You are a chess AI. A new game against a human player just started.
Write one short, friendly message to open the chat.
The human plays the %s pieces.
Answer ONLY with the message text, no extra formatting.
`, strings.ToLower(colorName(humanColor)))
}

func chatPrompt(message string) string {
	return fmt.Sprintf(`You are a chess AI in the middle of a game. The human player just sent this chat message:
%q
Reply briefly and kindly, as if chatting during the game.
Answer ONLY with the message text, no extra formatting.
`, message)
}
