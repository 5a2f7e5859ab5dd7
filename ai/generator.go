// Package ai implements the Styx collaborator against any OpenAI-compatible
// chat completions endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"styx-chat/contract"
	"styx-chat/domain/chat"
	"styx-chat/errors"
)

const (
	// historyWindow caps how many prior messages make it into the prompt,
	// on top of whatever the caller already trimmed.
	historyWindow = 8

	defaultModel       = "meta-llama-3.1-8b-instruct"
	defaultTemperature = 0.7
	defaultMaxTokens   = 512
)

// Config configures the completions endpoint and request behavior.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Generator speaks the /v1/chat/completions protocol. It enforces its own
// timeout; a canceled or overrun request surfaces as ErrGeneration.
type Generator struct {
	cfg Config
	log *slog.Logger
}

func NewGenerator(cfg Config, log *slog.Logger) *Generator {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Generator{cfg: cfg, log: log}
}

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string     `json:"model"`
	Messages    []chatTurn `json:"messages"`
	Temperature float64    `json:"temperature"`
	MaxTokens   int        `json:"max_tokens"`
	Stream      bool       `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *Generator) Generate(ctx context.Context, req contract.GenerationRequest) (string, error) {
	model := req.ModelOverride
	if strings.TrimSpace(model) == "" {
		model = g.cfg.Model
	}

	payload := completionRequest{
		Model:       model,
		Messages:    g.buildConversation(req),
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		Stream:      false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", errors.ErrGeneration, err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost,
		strings.TrimRight(g.cfg.BaseURL, "/")+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", errors.ErrGeneration, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	start := time.Now()
	resp, err := g.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: status %d: %s", errors.ErrGeneration, resp.StatusCode, detail)
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", errors.ErrGeneration, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", errors.ErrGeneration)
	}

	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	g.log.Info("generated reply", "model", model, "latency_ms", time.Since(start).Milliseconds())
	return reply, nil
}

// buildConversation assembles the prompt: the Styx system prompt, a window
// of recent history as role-tagged turns, then the triggering message. Human
// turns are prefixed with the author's name so the model can tell speakers
// apart.
func (g *Generator) buildConversation(req contract.GenerationRequest) []chatTurn {
	turns := []chatTurn{{Role: "system", Content: systemPrompt(req.PromptOverride)}}

	history := req.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, m := range history {
		switch m.Type {
		case chat.MessageTypeUser:
			turns = append(turns, chatTurn{Role: "user", Content: fmt.Sprintf("%s: %s", m.SenderName, m.Content)})
		case chat.MessageTypeAI:
			turns = append(turns, chatTurn{Role: "assistant", Content: m.Content})
		}
	}

	turns = append(turns, chatTurn{Role: "user", Content: fmt.Sprintf("%s: %s", req.Username, req.Content)})
	return turns
}

func systemPrompt(roomPrompt string) string {
	now := time.Now().Format("2006-01-02 15:04:05")
	if strings.TrimSpace(roomPrompt) != "" {
		return fmt.Sprintf(`You are Styx, an AI assistant participating in this chat room.

Room-specific instructions:
%s

Basic guidelines:
- Your name is Styx - use this if you need to refer to yourself
- Keep responses concise but informative unless the room prompt specifies otherwise
- You can see the chat history and respond to the current conversation context
- Address users by name when appropriate
- Current time: %s

Follow the room-specific instructions above while maintaining natural conversation.`, roomPrompt, now)
	}
	return fmt.Sprintf(`You are Styx, a helpful AI assistant participating in a group chat.

Guidelines:
- Be friendly, engaging, and conversational
- Keep responses concise but informative (2-3 sentences max unless asked for details)
- You can see the chat history and respond to the current conversation context
- Address users by name when appropriate
- Your name is Styx - use this if you need to refer to yourself
- Don't overly mention that you're an AI unless specifically asked
- Be helpful but not overly formal
- You can engage in casual conversation as well as answer questions
- If someone asks about technical topics, provide accurate and helpful information

Current time: %s

Respond naturally as if you're another participant in the chat.`, now)
}
