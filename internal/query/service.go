// Package query answers questions from the ingested notes, grounding every
// reply in retrieved chunks and their citations.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/benkyo/internal/models"
	"github.com/hyperjump/benkyo/internal/retry"
	"github.com/hyperjump/benkyo/internal/vector"
	"go.uber.org/zap"
)

// DefaultTopK is how many chunks are retrieved per question.
const DefaultTopK = 5

// contextSeparator joins retrieved chunks in the prompt.
const contextSeparator = "\n\n---\n\n"

// noContextPlaceholder stands in when retrieval finds nothing, so the model
// is told explicitly that the notes are silent instead of receiving an
// empty block.
const noContextPlaceholder = "No relevant notes found."

// systemInstruction fixes the tutor persona. The citation format here must
// match the [SOURCE: ..., PAGE/SLIDE: ...] markers built in contextBlock.
const systemInstruction = `You are a personal university tutor. Answer the student's question using ONLY the provided notes.

Rules:
1. Every statement you make must cite where it came from, using the exact marker shown in the notes, e.g. [SOURCE: lecture1.pdf, PAGE/SLIDE: 3].
2. If the notes do not contain the answer, say so plainly instead of guessing.
3. Passages starting with "[Diagram Content]:" are text recognized from a diagram. When you use one, describe what the diagram shows.
4. Keep explanations clear and aimed at exam preparation.`

// Generator produces a model reply for a conversation. Satisfied by the
// genai client.
type Generator interface {
	Chat(ctx context.Context, system string, history []models.Turn, message string) (string, error)
}

// Config tunes the query service. Zero values take the defaults.
type Config struct {
	TopK         int
	QuotaBackoff time.Duration
	MaxRetries   int
}

// Service answers questions over the vector store. All failures are
// reported as user-readable reply strings: the conversation surface has no
// other channel, so an error never escapes as an error value.
type Service struct {
	index     vector.Index
	generator Generator
	cfg       Config
	retryable func(error) bool
	logger    *zap.Logger
}

// NewService creates a query service. retryable decides which backend
// errors are quota stalls worth waiting out. logger may be nil.
func NewService(cfg Config, index vector.Index, generator Generator,
	retryable func(error) bool, logger *zap.Logger) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.QuotaBackoff == 0 {
		cfg.QuotaBackoff = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{index: index, generator: generator, cfg: cfg, retryable: retryable, logger: logger}
}

// Answer retrieves the chunks nearest to question and asks the model to
// reply from them. history is prior conversation turns and is never
// modified; the caller appends the new turns itself if it keeps them.
func (s *Service) Answer(ctx context.Context, question string, history []models.Turn) string {
	policy := retry.Policy{
		MaxAttempts: s.cfg.MaxRetries,
		Backoff:     s.cfg.QuotaBackoff,
		Retryable:   s.retryable,
	}
	onWait := func(wait time.Duration) {
		s.logger.Warn("quota exhausted during query, backing off", zap.Duration("wait", wait))
	}

	var hits []models.Hit
	err := policy.Do(ctx, onWait, func() error {
		var qerr error
		hits, qerr = s.index.Query(ctx, question, s.cfg.TopK)
		return qerr
	})
	if err != nil {
		s.logger.Error("retrieval failed", zap.Error(err))
		return fmt.Sprintf("Database error: %v", err)
	}

	prompt := fmt.Sprintf("NOTES:\n%s\n\nQUESTION: %s", contextBlock(hits), question)

	var answer string
	err = policy.Do(ctx, onWait, func() error {
		var gerr error
		answer, gerr = s.generator.Chat(ctx, systemInstruction, history, prompt)
		return gerr
	})
	if err != nil {
		s.logger.Error("generation failed", zap.Error(err))
		return fmt.Sprintf("Error generating answer: %v", err)
	}
	return answer
}

// contextBlock renders retrieved hits as citation-tagged passages.
func contextBlock(hits []models.Hit) string {
	if len(hits) == 0 {
		return noContextPlaceholder
	}
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("[SOURCE: %s, PAGE/SLIDE: %d]\n%s", h.Source, h.Page, h.Text)
	}
	return strings.Join(blocks, contextSeparator)
}
