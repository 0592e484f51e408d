// Package llmclient is the HTTP client for the external chat+embedding
// service NPC cognition depends on. Every call that can
// fail — timeout, network error, non-success status, malformed body —
// returns nil rather than an error: callers never need to distinguish
// "the model declined" from "the network hiccuped", only "no answer".
package llmclient

import "context"

// Profile selects model, temperature, and token caps for one call.
// NPC is the short/hot profile used for per-turn cognition; Story is the
// long/cool profile used for slower narrative generation.
type Profile string

const (
	ProfileNPC   Profile = "npc"
	ProfileStory Profile = "story"
)

// Role values for conversation history turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a multi-turn conversation.
type Turn struct {
	Role    string
	Content string
}

// Client is the contract every NPC decision loop and the goal/context
// machinery depends on.
type Client interface {
	// Complete sends a single system+user exchange and returns the
	// model's text, or nil on any failure.
	Complete(ctx context.Context, systemPrompt, userMessage string, profile Profile) (*string, error)

	// CompleteWithHistory sends a full conversation. The returned text
	// (or nil) follows the same failure semantics as Complete.
	CompleteWithHistory(ctx context.Context, systemPrompt string, history []Turn, profile Profile) (*string, error)

	// Embed returns a dense embedding vector for text, or nil on failure.
	Embed(ctx context.Context, text string) ([]float32, error)
}
