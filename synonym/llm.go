package synonym

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/loreweave/loreweave/errors"
	"github.com/loreweave/loreweave/internal/httpclient"
)

const (
	// DefaultModel is the fallback model when none is configured
	DefaultModel = "openai/gpt-4o-mini"

	defaultBaseURL = "https://openrouter.ai/api/v1"
)

// LLMConfig holds LLM generator configuration.
type LLMConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	RatePerSec float64            // call pacing; 0 = 1/sec
	Logger     *zap.SugaredLogger // nil = nop logger
}

// LLMGenerator asks a chat-completions endpoint for alternative surface
// forms. Calls are paced with a token bucket independent of the endpoint
// rate limiter, since the generation service is a different upstream.
type LLMGenerator struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *httpclient.Client
	pacer      *rate.Limiter
	logger     *zap.SugaredLogger
}

// NewLLMGenerator creates an LLM-backed generator.
func NewLLMGenerator(cfg LLMConfig) *LLMGenerator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &LLMGenerator{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpclient.New(120 * time.Second),
		pacer:      rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		logger:     logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Synonyms asks the model for up to max alternative surface forms. The
// answer is expected as a JSON string array; surrounding prose is
// tolerated by scanning for the first bracketed block.
func (g *LLMGenerator) Synonyms(ctx context.Context, name, declaredType, language string, max int) ([]string, error) {
	if err := g.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"List up to %d alternative names, spellings or translations for the %s entity %q that an encyclopedia might use as an article title. Language: %s. Answer with a JSON array of strings only.",
		max, orUnknown(declaredType), name, language,
	)

	reqBody, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
		MaxTokens:   300,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal synonym request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "create synonym request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "synonym request")
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.Mark(errors.Newf("synonym endpoint throttled: %s", resp.Status), errors.ErrThrottled)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("synonym endpoint returned %s", resp.Status)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode synonym response"), errors.ErrMalformed)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.Mark(errors.New("synonym response has no choices"), errors.ErrMalformed)
	}

	candidates, err := extractStringArray(parsed.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	// Dedup against the original name; models like echoing it back
	seen := map[string]bool{strings.ToLower(name): true}
	var out []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || seen[strings.ToLower(c)] {
			continue
		}
		seen[strings.ToLower(c)] = true
		out = append(out, c)
		if len(out) >= max {
			break
		}
	}

	g.logger.Debugw("Generated synonyms",
		"entity", name,
		"count", len(out),
	)
	return out, nil
}

// extractStringArray parses a JSON string array from content, tolerating
// surrounding prose and markdown fences.
func extractStringArray(content string) ([]string, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, errors.Mark(errors.New("no JSON array in synonym answer"), errors.ErrMalformed)
	}

	var out []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse synonym array"), errors.ErrMalformed)
	}
	return out, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unspecified"
	}
	return s
}
