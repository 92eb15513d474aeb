// Package fallback generates a short local reply when the external agent
// misses the reply window. It keeps a rolling conversation so consecutive
// fallback replies stay coherent, and tries a chain of models in order.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	anyllm "github.com/mozilla-ai/any-llm-go"

	"github.com/quorumbot/quorum/internal/resilience"
)

// DefaultSystemPrompt instructs the model to behave like a meeting
// participant rather than a chat assistant.
const DefaultSystemPrompt = "You are a helpful and witty voice assistant in a " +
	"live meeting. Keep responses SHORT, one or two sentences at most. Be " +
	"natural and conversational. No markdown, no formatting, no asterisks."

const (
	// historyLimit bounds the rolling conversation; past it the oldest
	// exchanges are dropped, always keeping the system message.
	historyLimit = 12
	historyKeep  = 10

	maxReplyTokens   = 100
	replyTemperature = 0.7

	// minReplyLen rejects degenerate completions ("", ".", "ok") so they
	// never reach the speech dispatcher.
	minReplyLen = 3
)

// Backend produces one chat completion for the given conversation.
type Backend interface {
	Complete(ctx context.Context, messages []anyllm.Message) (string, error)
}

// ProviderBackend adapts an any-llm-go provider and a model name to [Backend].
type ProviderBackend struct {
	Provider anyllm.Provider
	Model    string
}

// Complete implements [Backend].
func (b ProviderBackend) Complete(ctx context.Context, messages []anyllm.Message) (string, error) {
	temp := replyTemperature
	maxTokens := maxReplyTokens
	resp, err := b.Provider.Completion(ctx, anyllm.CompletionParams{
		Model:       b.Model,
		Messages:    messages,
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("fallback: completion with %s: %w", b.Model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("fallback: empty choices from %s", b.Model)
	}
	return resp.Choices[0].Message.ContentString(), nil
}

// Responder holds the rolling conversation and the model chain. Safe for
// concurrent use, though the coordinator calls it from one goroutine.
type Responder struct {
	mu      sync.Mutex
	history []anyllm.Message
	chain   *resilience.Chain[Backend]
}

// Option is a functional option for configuring the Responder.
type Option func(*Responder)

// WithFallbackModel appends another backend, tried when earlier ones fail.
func WithFallbackModel(name string, b Backend) Option {
	return func(r *Responder) {
		r.chain.AddFallback(name, b)
	}
}

// New creates a Responder. systemPrompt may be empty, in which case
// [DefaultSystemPrompt] is used.
func New(systemPrompt string, primaryName string, primary Backend, opts ...Option) *Responder {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	r := &Responder{
		history: []anyllm.Message{{
			Role:    anyllm.RoleSystem,
			Content: systemPrompt,
		}},
		chain: resilience.NewChain(primary, primaryName, resilience.ChainConfig{}),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reply generates a response to heard. The heard text joins the rolling
// conversation even when every model fails, so a later round still has the
// context.
func (r *Responder) Reply(ctx context.Context, heard string) (string, error) {
	r.mu.Lock()
	r.history = append(r.history, anyllm.Message{Role: anyllm.RoleUser, Content: heard})
	r.trimLocked()
	messages := make([]anyllm.Message, len(r.history))
	copy(messages, r.history)
	r.mu.Unlock()

	reply, err := resilience.DoWithResult(r.chain, func(b Backend) (string, error) {
		raw, err := b.Complete(ctx, messages)
		if err != nil {
			return "", err
		}
		text := CleanReply(raw)
		if len(text) < minReplyLen {
			return "", fmt.Errorf("fallback: degenerate reply %q", text)
		}
		return text, nil
	})
	if err != nil {
		return "", fmt.Errorf("fallback: all models failed: %w", err)
	}

	r.mu.Lock()
	r.history = append(r.history, anyllm.Message{Role: anyllm.RoleAssistant, Content: reply})
	r.trimLocked()
	r.mu.Unlock()

	slog.Debug("fallback reply generated", "heard_len", len(heard), "reply_len", len(reply))
	return reply, nil
}

// trimLocked drops the oldest exchanges once the history exceeds the limit.
// The system message at index 0 always survives.
func (r *Responder) trimLocked() {
	if len(r.history) <= historyLimit {
		return
	}
	trimmed := make([]anyllm.Message, 0, historyKeep+1)
	trimmed = append(trimmed, r.history[0])
	trimmed = append(trimmed, r.history[len(r.history)-historyKeep:]...)
	r.history = trimmed
}

// CleanReply strips reasoning-model thinking blocks and surrounding
// whitespace. Everything before a closing </think> tag is discarded.
func CleanReply(raw string) string {
	if idx := strings.LastIndex(raw, "</think>"); idx >= 0 {
		raw = raw[idx+len("</think>"):]
	}
	return strings.TrimSpace(raw)
}
