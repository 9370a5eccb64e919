// Package genai provides the HTTP client for the hosted generation and
// embedding models. Both are opaque remote collaborators: the rest of the
// system only sees text in, text or vectors out, and a detectable quota
// signal.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/benkyo/internal/models"
	"github.com/philippgille/chromem-go"
)

// Default configuration values.
const (
	DefaultBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGenerationModel = "gemini-2.0-flash"
	DefaultEmbeddingModel  = "gemini-embedding-001"
	DefaultTimeout         = 120 * time.Second
)

// ErrQuota marks a rate-limit rejection from the remote service. Callers
// retry these with backoff; everything else is terminal.
var ErrQuota = errors.New("quota exceeded")

// IsQuotaErr reports whether err carries the remote quota signal. Besides
// the sentinel, it pattern-matches rewrapped error text, since the vector
// store rewraps embedding errors without preserving the chain.
func IsQuotaErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuota) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "RESOURCE_EXHAUSTED")
}

// Config holds client settings. APIKey is required.
type Config struct {
	APIKey          string
	BaseURL         string
	GenerationModel string
	EmbeddingModel  string
	Timeout         time.Duration
}

// Client talks to the generative language REST API.
type Client struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	genModel string
	embModel string
}

// NewClient creates a client for the hosted models.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("genai: API key is required (set GEMINI_API_KEY)")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.GenerationModel == "" {
		cfg.GenerationModel = DefaultGenerationModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		client:   &http.Client{Timeout: cfg.Timeout},
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		genModel: cfg.GenerationModel,
		embModel: cfg.EmbeddingModel,
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *content  `json:"system_instruction,omitempty"`
	Contents          []content `json:"contents"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error,omitempty"`
}

// Chat sends message as the newest user turn of a conversation seeded with
// system and the prior history. History is read-only input: the caller owns
// appending new turns after it has decided to keep them.
func (c *Client) Chat(ctx context.Context, system string, history []models.Turn, message string) (string, error) {
	req := generateRequest{
		Contents: make([]content, 0, len(history)+1),
	}
	if system != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	for _, turn := range history {
		req.Contents = append(req.Contents, content{Role: turn.Role, Parts: []part{{Text: turn.Text}}})
	}
	req.Contents = append(req.Contents, content{Role: models.RoleUser, Parts: []part{{Text: message}}})

	var resp generateResponse
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.genModel)
	if err := c.post(ctx, url, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", statusError(resp.Error)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("genai: empty generation response")
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}

type embedRequest struct {
	Content  content `json:"content"`
	TaskType string  `json:"taskType,omitempty"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
	Error *apiError `json:"error,omitempty"`
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	req := embedRequest{
		Content:  content{Parts: []part{{Text: text}}},
		TaskType: "RETRIEVAL_DOCUMENT",
	}
	var resp embedResponse
	url := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, c.embModel)
	if err := c.post(ctx, url, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, statusError(resp.Error)
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("genai: empty embedding response")
	}
	return resp.Embedding.Values, nil
}

// EmbeddingFunc adapts Embed for injection into the vector store, which
// invokes it internally during add and query.
func (c *Client) EmbeddingFunc() chromem.EmbeddingFunc {
	return c.Embed
}

// post sends a JSON request and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("genai: status 429: %w", ErrQuota)
	}
	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error *apiError `json:"error"`
		}
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != nil {
			return statusError(errResp.Error)
		}
		return fmt.Errorf("genai: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError converts an API error payload into a Go error, preserving the
// quota sentinel for RESOURCE_EXHAUSTED.
func statusError(e *apiError) error {
	if e.Code == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED" {
		return fmt.Errorf("genai: %s: %w", e.Message, ErrQuota)
	}
	return fmt.Errorf("genai: %s (status %s)", e.Message, e.Status)
}
