package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hollowmere/npccore/internal/config"
)

// ProfileSettings holds the resolved model/temperature/token-cap triple
// for one Profile.
type ProfileSettings struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// HTTPClient implements Client against an Ollama-shaped chat/embed HTTP
// API: POST {base}/api/chat and POST {base}/api/embed.
type HTTPClient struct {
	baseURL        string
	bearerToken    string
	embeddingModel string
	httpClient     *http.Client
	profiles       map[Profile]ProfileSettings
}

// NewHTTPClient builds a client from resolved configuration. The
// underlying http.Client's timeout is the maximum of both profiles'
// timeouts; each request additionally carries its own
// profile-specific context deadline so a hot NPC turn doesn't wait out a
// slow Story-profile timeout.
func NewHTTPClient(cfg config.LLMConfig) *HTTPClient {
	bearer := cfg.APIKey
	if bearer == "" {
		bearer = firstNonEmptyEnv("NPCCORE_LLM_API_KEY", "LLM_API_KEY")
	}

	return &HTTPClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		bearerToken:    bearer,
		embeddingModel: cfg.EmbeddingModel,
		httpClient:     &http.Client{Timeout: cfg.EffectiveTimeout()},
		profiles: map[Profile]ProfileSettings{
			ProfileNPC: {
				Model:       cfg.Model,
				Temperature: cfg.Temperature,
				MaxTokens:   cfg.MaxTokens,
				Timeout:     time.Duration(cfg.TimeoutMs) * time.Millisecond,
			},
			ProfileStory: {
				Model:       cfg.StoryModel,
				Temperature: cfg.StoryTemperature,
				MaxTokens:   cfg.StoryMaxTokens,
				Timeout:     time.Duration(cfg.StoryTimeoutMs) * time.Millisecond,
			},
		},
	}
}

func firstNonEmptyEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// chatMessage is the snake_case wire shape of one conversation turn.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
	Messages []chatMessage `json:"messages"`
}

type chatResponseMessage struct {
	Content string `json:"content"`
}

type chatResponse struct {
	Message  *chatResponseMessage `json:"message"`
	Response string               `json:"response"`
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Complete implements Client.
func (c *HTTPClient) Complete(ctx context.Context, systemPrompt, userMessage string, profile Profile) (*string, error) {
	return c.CompleteWithHistory(ctx, systemPrompt, []Turn{{Role: RoleUser, Content: userMessage}}, profile)
}

// CompleteWithHistory implements Client.
func (c *HTTPClient) CompleteWithHistory(ctx context.Context, systemPrompt string, history []Turn, profile Profile) (*string, error) {
	settings, ok := c.profiles[profile]
	if !ok {
		settings = c.profiles[ProfileNPC]
	}

	messages := make([]chatMessage, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: RoleSystem, Content: systemPrompt})
	}
	for _, t := range history {
		messages = append(messages, chatMessage{Role: t.Role, Content: t.Content})
	}

	reqBody := chatRequest{
		Model:  settings.Model,
		Stream: false,
		Options: chatOptions{
			Temperature: settings.Temperature,
			NumPredict:  settings.MaxTokens,
		},
		Messages: messages,
	}

	callCtx, cancel := context.WithTimeout(ctx, settings.Timeout)
	defer cancel()

	var resp chatResponse
	if !c.doJSON(callCtx, "/api/chat", reqBody, &resp, string(profile)) {
		return nil, nil
	}

	text := resp.Response
	if resp.Message != nil && resp.Message.Content != "" {
		text = resp.Message.Content // message.content wins when both present
	}
	if text == "" {
		return nil, nil
	}
	return &text, nil
}

// Embed implements Client.
func (c *HTTPClient) Embed(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.httpClient.Timeout)
	defer cancel()

	var resp embedResponse
	if !c.doJSON(callCtx, "/api/embed", embedRequest{Model: c.embeddingModel, Input: text}, &resp, "embed") {
		return nil, nil
	}
	if len(resp.Embeddings) == 0 {
		return nil, nil
	}
	return resp.Embeddings[0], nil
}

// doJSON issues a POST with a JSON body and decodes a JSON response into
// out. Returns false on any transient failure (timeout, network error,
// non-2xx status, malformed body) after logging it —
// these never surface as errors to callers.
func (c *HTTPClient) doJSON(ctx context.Context, path string, body, out any, label string) bool {
	log := slog.With("llm_path", path, "profile", label)

	payload, err := json.Marshal(body)
	if err != nil {
		log.Error("failed to marshal LLM request", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		log.Error("failed to build LLM request", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("LLM request failed", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("LLM request returned non-success status", "status", resp.StatusCode)
		return false
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("failed to read LLM response body", "error", err)
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Warn("failed to decode LLM response body", "error", err)
		return false
	}
	return true
}

// ProfileSettingsFor exposes the resolved settings for a profile.
func (c *HTTPClient) ProfileSettingsFor(p Profile) ProfileSettings {
	return c.profiles[p]
}
